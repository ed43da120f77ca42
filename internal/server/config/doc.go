// Package config defines the attendmesh-server configuration structure,
// its defaults, validation and a log-safe copy.
package config
