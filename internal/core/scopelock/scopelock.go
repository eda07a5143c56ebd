// Package scopelock provides per-key mutual exclusion.
//
// The ledger's unit of exclusion is the (company, product, warehouse) scope:
// exactly one of live insert, targeted replay or sweep replay may run for a
// scope at a time, while distinct scopes proceed with no coordination. The
// lock map grows and shrinks with demand; an idle scope holds no memory.
package scopelock

import "sync"

// Set is a collection of named locks. The zero value is not usable; use New.
type Set struct {
	mu    sync.Mutex
	locks map[string]*lock
}

type lock struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty lock set.
func New() *Set {
	return &Set{locks: make(map[string]*lock)}
}

// Lock acquires the lock for key, blocking until it is available, and
// returns the release function. The caller must invoke the release exactly
// once, typically via defer.
func (s *Set) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &lock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, key)
			}
			s.mu.Unlock()
		})
	}
}

// TryLock acquires the lock for key without blocking. It returns the release
// function and true on success, or nil and false if the lock is held.
func (s *Set) TryLock(key string) (func(), bool) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &lock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	if !l.mu.TryLock() {
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, key)
			}
			s.mu.Unlock()
		})
	}, true
}
