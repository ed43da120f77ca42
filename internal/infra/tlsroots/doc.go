// Package tlsroots loads TLS material.
//
// The server side uses a Reloader, which serves the configured key pair and
// swaps it when the files change on disk. The CLI side uses a Pool to trust
// a private CA in addition to the system roots.
package tlsroots
