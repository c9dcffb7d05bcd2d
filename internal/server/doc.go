// Package server manages the HTTP/HTTPS server lifecycle: non-blocking
// start, graceful shutdown, and SIGINT/SIGTERM handling.
//
// Manager wraps net/http.Server with a listener and an asynchronous
// error channel. Start and StartTLS serve from a background goroutine;
// WaitForShutdown blocks until a signal or server error arrives and then
// drains in-flight requests within the configured shutdown timeout.
package server
