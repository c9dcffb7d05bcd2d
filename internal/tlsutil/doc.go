// Package tlsutil provides the hardened TLS settings shared by the video
// provider and media service HTTP clients (TLS 1.2+, AEAD cipher suites
// only).
package tlsutil
