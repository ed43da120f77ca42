// Package lifecycle implements the client half of the attendance
// close/revive protocol.
//
// An Instance corresponds to one run of a client that holds an attendance
// open (the CLI watch command). At load it consumes the Last-Unload Marker
// left by the previous run and asks the server to revive the attendance
// when that run ended less than the grace window ago. At teardown it
// records a fresh marker and sends a single end notification, first as a
// fire-and-forget beacon and, when no beacon can be queued, as a detached
// keep-alive request.
//
// Nothing in this package returns an error from Unload or Reconcile:
// storage and transport failures are logged and reflected in the returned
// Dispatch or Outcome only.
package lifecycle
