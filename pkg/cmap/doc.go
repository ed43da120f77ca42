// Package cmap provides a sharded map safe for concurrent use.
//
// Keys are spread over a fixed power-of-two number of shards, each guarded
// by its own RWMutex, so writers to different keys rarely contend.
//
//	m := cmap.New[string, *domain.Attendance]()
//	m.Set(a.ID, a)
//	a, ok := m.Get(id)
package cmap
