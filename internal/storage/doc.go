// Package storage provides the storage engine for attendmesh.
//
// The engine keeps every record in the memory store and, when a data
// directory is configured, writes each mutation through to an embedded
// Badger database before acknowledging it.
//
// Architecture:
//
//   - Memory Store: serves all reads using sharded concurrent maps
//   - KV Engine: durable copy of users, tokens and attendances (Badger)
//
// On startup Recover scans the KV engine and reloads the memory store.
// Without a KV engine the server runs memory-only and loses state on exit.
package storage
