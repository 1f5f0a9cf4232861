// Package kvstest provides an in-memory kvs.Primitives implementation so
// internal/kvs, internal/access, and internal/control can unit test
// against the KVS wrapper's domain logic without a running Redis —
// mirroring the teacher's preference for a lightweight in-memory double
// (entgo.io/ent's SQLite-backed enttest) over mocking every call site.
package kvstest

import (
	"context"
	"sort"
	"sync"
)

type zmember struct {
	member string
	score  float64
}

// Fake is a single-process, mutex-guarded implementation of kvs.Primitives.
// It is not a Redis reimplementation: it exists to exercise the gateway's
// own invariants (activation, ack correlation, last-writer-wins downlink)
// in fast unit tests.
type Fake struct {
	mu      sync.Mutex
	strings map[string]string
	lists   map[string][]string
	zsets   map[string][]zmember
	hashes  map[string]map[string]string
}

// New creates an empty Fake store.
func New() *Fake {
	return &Fake{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		zsets:   make(map[string][]zmember),
		hashes:  make(map[string]map[string]string),
	}
}

func (f *Fake) Close() error { return nil }

func (f *Fake) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = value
	return nil
}

func (f *Fake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *Fake) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.strings, k)
		delete(f.lists, k)
		delete(f.zsets, k)
		delete(f.hashes, k)
	}
	return nil
}

func (f *Fake) LPush(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append([]string{value}, f.lists[key]...)
	return nil
}

func (f *Fake) RPop(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	last := list[len(list)-1]
	f.lists[key] = list[:len(list)-1]
	return last, true, nil
}

func (f *Fake) ZAdd(_ context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.zsets[key]
	for i, m := range set {
		if m.member == member {
			set[i].score = score
			f.sortZSet(key)
			return nil
		}
	}
	f.zsets[key] = append(set, zmember{member: member, score: score})
	f.sortZSet(key)
	return nil
}

func (f *Fake) sortZSet(key string) {
	set := f.zsets[key]
	sort.Slice(set, func(i, j int) bool { return set[i].score < set[j].score })
}

func (f *Fake) ZRem(_ context.Context, key, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.zsets[key]
	for i, m := range set {
		if m.member == member {
			f.zsets[key] = append(set[:i], set[i+1:]...)
			break
		}
	}
	return nil
}

func (f *Fake) ZRank(_ context.Context, key, member string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.zsets[key] {
		if m.member == member {
			return int64(i), true, nil
		}
	}
	return 0, false, nil
}

func (f *Fake) ZCard(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.zsets[key])), nil
}

func (f *Fake) HSet(_ context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *Fake) HGet(_ context.Context, key, field string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.hashes[key][field]
	return v, ok, nil
}

func (f *Fake) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) HDel(_ context.Context, key string, fields ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.hashes[key]
	for _, field := range fields {
		delete(h, field)
	}
	return nil
}
