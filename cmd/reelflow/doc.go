/*
Package main is the reelflow executable: the HTTP API for continuity
shot generation, plus database migration and health subcommands.

Subcommands: serve, migrate (up, down, status, version, force, reset),
version, and health.

The serve command loads YAML/env configuration, connects the database and
Redis, builds the provider registry from configured API keys, and runs two
listeners: the API server and a separate Prometheus metrics port. The
middleware chain covers panic recovery, request IDs, OTel tracing,
security headers, request logging, metrics, CORS, per-IP rate limiting,
and optional JWT authentication.

Version, BuildTime, and GitCommit are injected at build time via ldflags.
*/
package main
