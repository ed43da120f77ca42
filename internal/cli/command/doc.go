// Package command provides the attendmesh-cli commands, built on
// urfave/cli/v2:
//
//   - root.go: App, global flags, config and client resolution
//   - auth.go: login, logout, whoami
//   - attendance.go: start, break, end, status, policy
//   - watch.go: holds an attendance open and runs the close/revive protocol
//   - export.go: daily report download and server-side save
//   - employee.go, admin.go: staff commands
//   - config.go: local configuration
//   - shell.go: interactive mode
//
// Actions write to c.App.Writer so tests can capture output.
package command
