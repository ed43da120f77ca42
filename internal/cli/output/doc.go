// Package output provides output formatting for attendmesh-cli.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned tables; types opt in through Tabular
//   - json.go, yaml.go: machine-readable output for scripting
package output
