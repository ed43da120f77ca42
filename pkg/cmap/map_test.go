package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultShards},
		{-3, DefaultShards},
		{1, 1},
		{5, 8},
		{64, 64},
	}
	for _, tt := range tests {
		if got := len(NewWithShards[string, int](tt.in).shards); got != tt.want {
			t.Errorf("NewWithShards(%d) has %d shards, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMap_Basic(t *testing.T) {
	m := New[string, int]()

	if _, ok := m.Get("a"); ok {
		t.Fatal("empty map returned a value")
	}
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	if v, ok := m.Get("a"); !ok || v != 3 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if !m.Has("b") || m.Has("c") {
		t.Error("Has mismatch")
	}
	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}

	m.Delete("b")
	m.Delete("missing")
	if m.Has("b") || m.Count() != 1 {
		t.Error("Delete did not remove b")
	}

	if v, ok := m.Pop("a"); !ok || v != 3 {
		t.Errorf("Pop(a) = %d, %v", v, ok)
	}
	if _, ok := m.Pop("a"); ok {
		t.Error("second Pop should miss")
	}
}

func TestMap_GetOrSet(t *testing.T) {
	m := New[string, *int]()
	one, two := 1, 2

	got, loaded := m.GetOrSet("k", &one)
	if loaded || got != &one {
		t.Errorf("first GetOrSet = %v, %v", got, loaded)
	}
	got, loaded = m.GetOrSet("k", &two)
	if !loaded || got != &one {
		t.Errorf("second GetOrSet = %v, %v", got, loaded)
	}
}

func TestMap_Range(t *testing.T) {
	m := NewWithShards[int, string](4)
	for i := 0; i < 50; i++ {
		m.Set(i, fmt.Sprint(i))
	}

	var keys []int
	m.Range(func(k int, v string) bool {
		if v != fmt.Sprint(k) {
			t.Errorf("value for %d = %q", k, v)
		}
		keys = append(keys, k)
		return true
	})
	sort.Ints(keys)
	if len(keys) != 50 || keys[0] != 0 || keys[49] != 49 {
		t.Errorf("Range visited %d keys", len(keys))
	}

	n := 0
	m.Range(func(int, string) bool {
		n++
		return n < 5
	})
	if n != 5 {
		t.Errorf("Range after stop visited %d, want 5", n)
	}

	// Deleting during Range must not deadlock.
	m.Range(func(k int, _ string) bool {
		m.Delete(k)
		return true
	})
	if m.Count() != 0 {
		t.Errorf("Count after delete-all = %d", m.Count())
	}
}

func TestMap_Concurrent(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", w, i)
				m.Set(key, i)
				m.Get(key)
				m.GetOrSet("shared", w)
			}
		}(w)
	}
	wg.Wait()

	if got := m.Count(); got != 8*200+1 {
		t.Errorf("Count = %d, want %d", got, 8*200+1)
	}
}

func BenchmarkMap_SetGet(b *testing.B) {
	m := New[string, int]()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprint(i & 1023)
			m.Set(key, i)
			m.Get(key)
			i++
		}
	})
}
