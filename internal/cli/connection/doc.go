// Package connection provides the HTTP client used by attendmesh-cli.
//
// Every request carries the bearer token (when logged in), a request ID
// and the CLI user agent. ParseResponse unwraps the server's JSON envelope
// and turns error envelopes into *APIError.
package connection
