// Package buildinfo exposes the version stamped into attendmesh binaries.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/attendmesh/internal/infra/buildinfo.Version=v1.0.0"
//
// Values left unset fall back to what the Go toolchain embeds (module
// version, vcs.revision, vcs.time).
package buildinfo
