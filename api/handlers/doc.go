/*
Package handlers implements the HTTP request handlers for the reelflow API.

Every endpoint writes the same JSON envelope (Response) and maps typed
domain errors to HTTP status codes in one place. The handlers are thin:
request decoding, path/query extraction, and delegation to the continuity
session service.

Core types:

  - SessionHandler — session CRUD, settings, style references, scene
    proxies, and credit usage under /api/v1/sessions
  - ShotHandler — shot creation and generation; generation is queued on a
    bounded worker pool and answered with 202 unless ?wait=true
  - HealthHandler — liveness, readiness, and version endpoints with
    pluggable dependency checks
  - Response / ErrorInfo — the unified envelope and its error payload
  - ResponseWriter — status-capturing wrapper used by middleware
*/
package handlers
