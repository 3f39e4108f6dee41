// Package lazy provides memoized accessors: a value is computed on first
// access and cached for every later access, including a failed computation.
package lazy

import "sync"

// Value computes its content once, on the first call to Get.
// It is not safe for concurrent use; see Sync for a guarded variant.
type Value[T any] struct {
	load  func() (T, error)
	val   T
	err   error
	ready bool
}

// New returns a Value backed by load.
func New[T any](load func() (T, error)) *Value[T] {
	return &Value[T]{load: load}
}

// Get returns the cached result, computing it on first use.
func (v *Value[T]) Get() (T, error) {
	if !v.ready {
		v.val, v.err = v.load()
		v.ready = true
		v.load = nil
	}

	return v.val, v.err
}

// Loaded reports whether the value has been computed.
func (v *Value[T]) Loaded() bool {
	return v.ready
}

// Sync is a Value that may be shared between goroutines.
type Sync[T any] struct {
	get    func() (T, error)
	mu     sync.Mutex
	loaded bool
}

// NewSync returns a concurrency-safe memoized accessor backed by load.
func NewSync[T any](load func() (T, error)) *Sync[T] {
	s := &Sync[T]{}

	once := sync.OnceValues(func() (T, error) {
		val, err := load()

		s.mu.Lock()
		s.loaded = true
		s.mu.Unlock()

		return val, err
	})
	s.get = once

	return s
}

// Get returns the cached result, computing it on first use. Concurrent
// callers block until the first computation finishes.
func (s *Sync[T]) Get() (T, error) {
	return s.get()
}

// Loaded reports whether the value has been computed.
func (s *Sync[T]) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded
}
