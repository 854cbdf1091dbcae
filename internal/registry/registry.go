// Package registry is the thread-safe store of live connections, keyed by a
// monotonically increasing connection id.
//
// A single mutex guards the store. The lock also guards the entire send
// path: Do and ForEach run their callbacks while holding it, so concurrent
// writes to one connection serialize in lock-acquisition order — the only
// write-ordering guarantee the transport offers. The reactor never holds
// the lock during its polling syscall; it works from Snapshot copies and
// tolerates handles that went stale in between.
package registry

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HandshakeState tracks whether the HTTP Upgrade has completed for a
// connection. Records are only ever stored after a successful handshake, so
// every registered record is StateCompleted; StatePending exists for the
// record the negotiator holds before registration.
type HandshakeState int

const (
	StatePending HandshakeState = iota
	StateCompleted
)

// ErrDuplicateID is returned by Register when the id is already present.
var ErrDuplicateID = errors.New("registry: connection id already registered")

// Record is the registry's view of one live connection. The registry
// exclusively owns the set of records; callers outside the reactor reach
// transport handles only through registry operations.
type Record struct {
	ID         int
	FD         int
	RemoteAddr string
	State      HandshakeState

	// Limiter throttles inbound messages for this connection. Nil when
	// rate limiting is disabled.
	Limiter *rate.Limiter
}

// Entry is a point-in-time (id, handle) pair from Snapshot.
type Entry struct {
	ID int
	FD int
}

// Registry stores live connection records behind a single mutex.
type Registry struct {
	mu     sync.Mutex
	conns  map[int]*Record
	nextID int
}

func New() *Registry {
	return &Registry{
		conns:  make(map[int]*Record),
		nextID: 1,
	}
}

// NextID returns the next connection id. Ids are unique and increase
// monotonically for the lifetime of the server process.
func (r *Registry) NextID() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	return id
}

// Register inserts a record. The id must not already exist.
func (r *Registry) Register(rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[rec.ID]; exists {
		return ErrDuplicateID
	}
	r.conns[rec.ID] = rec
	return nil
}

// Unregister removes and returns the record for id. Idempotent: a missing
// id returns (nil, false) without error.
func (r *Registry) Unregister(id int) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return rec, ok
}

// Lookup returns the record for id, if present.
func (r *Registry) Lookup(id int) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.conns[id]
	return rec, ok
}

// Snapshot copies all live (id, handle) pairs so the reactor can poll
// outside the lock. The copy may be stale by the time it is used; every
// I/O operation on a snapshotted handle must tolerate an invalid-handle
// result and self-heal by calling Unregister.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.conns))
	for id, rec := range r.conns {
		entries = append(entries, Entry{ID: id, FD: rec.FD})
	}
	return entries
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conns)
}

// Do runs fn with the record for id while holding the registry lock, and
// reports whether the record existed. This is the single-connection send
// path: holding the lock across the write serializes concurrent senders.
func (r *Registry) Do(id int, fn func(*Record)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.conns[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// ForEach runs fn for every record while holding the registry lock. This is
// the broadcast path.
func (r *Registry) ForEach(fn func(*Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.conns {
		fn(rec)
	}
}

// TryLockClear attempts to acquire the registry lock within timeout, and on
// success removes and returns every record. On timeout it returns
// (nil, false) and the store is left untouched — the shutdown path degrades
// to best-effort cleanup rather than hanging on a contended lock.
func (r *Registry) TryLockClear(timeout time.Duration) ([]*Record, bool) {
	deadline := time.Now().Add(timeout)
	for !r.mu.TryLock() {
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer r.mu.Unlock()

	records := make([]*Record, 0, len(r.conns))
	for _, rec := range r.conns {
		records = append(records, rec)
	}
	r.conns = make(map[int]*Record)
	return records, true
}
