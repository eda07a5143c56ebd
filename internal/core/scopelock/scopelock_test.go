package scopelock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_MutualExclusion(t *testing.T) {
	s := New()

	release := s.Lock("a")

	acquired := make(chan struct{})
	go func() {
		r := s.Lock("a")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after release")
	}
}

func TestLock_DistinctKeysIndependent(t *testing.T) {
	s := New()

	releaseA := s.Lock("a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		r := s.Lock("b")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLock_ReleaseIdempotent(t *testing.T) {
	s := New()

	release := s.Lock("a")
	release()
	release() // second call is a no-op

	r := s.Lock("a")
	r()
}

func TestLock_MapShrinksWhenIdle(t *testing.T) {
	s := New()

	r1 := s.Lock("a")
	r2 := s.Lock("b")
	r1()
	r2()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.locks)
}

func TestTryLock(t *testing.T) {
	s := New()

	release, ok := s.TryLock("a")
	require.True(t, ok)

	_, ok = s.TryLock("a")
	assert.False(t, ok)

	release()

	r2, ok := s.TryLock("a")
	require.True(t, ok)
	r2()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.locks)
}

func TestLock_Contention(t *testing.T) {
	s := New()

	var n int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := s.Lock("counter")
			n++
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, n)
}
