// Package memory provides in-memory storage for attendmesh.
//
// It implements the service repositories using concurrent-safe
// data structures with sharded locking.
//
// Features:
//
//   - Sharded Storage: records distributed across cmap shards
//   - Secondary Indexes: attendances and tokens by UserID, users by username
//   - Optimistic Locking: Version-based concurrency control
//   - Attendance Quotas: Configurable per-user history limit
//
// Thread Safety:
//
// All operations are thread-safe. Mutations touching more than one index
// hold the store lock; single-key reads go straight to the shard.
package memory
