// Package config provides CLI configuration for attendmesh.
//
//   - spec.go: CLIConfig struct (~/.attendmesh/cli.yaml)
//   - loader.go: loading, saving and merging overrides
//   - token.go: the session token file shared with "watch"
//
// The token lives in its own file so a running "watch" observes a logout
// performed by another invocation.
package config
