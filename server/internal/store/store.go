package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/omnistream/omnistream/pkg/telemetry"
)

// Entry is a vehicle's latest packet together with receive bookkeeping.
// Entries are replaced, never mutated, so callers may hold on to one.
type Entry struct {
	Packet    *telemetry.Packet
	UpdatedAt time.Time
	FirstSeen time.Time
	Received  uint64
}

// Store is a thread-safe in-memory vehicle store, keyed by vehicle_id.
// A background goroutine (Run) periodically evicts vehicles that have not
// sent a packet within the configured TTL.
type Store struct {
	mu    sync.RWMutex
	data  map[string]*Entry
	total uint64
	ttl   time.Duration
	now   func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put records p as the latest packet for p.VehicleID and returns the new
// entry. Callers must not modify p after calling Put.
func (s *Store) Put(p *telemetry.Packet) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := &Entry{Packet: p, UpdatedAt: now, FirstSeen: now, Received: 1}
	if prev, ok := s.data[p.VehicleID]; ok {
		e.FirstSeen = prev.FirstSeen
		e.Received = prev.Received + 1
	}
	s.data[p.VehicleID] = e
	s.total++
	return e
}

// Get returns the Entry for vehicleID and whether one was found. The entry
// may be stale if TTL has elapsed but eviction has not run yet.
func (s *Store) Get(vehicleID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[vehicleID]
	return e, ok
}

// List returns all entries updated within the TTL, sorted by vehicle id.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Packet.VehicleID < out[j].Packet.VehicleID
	})
	return out
}

// Count returns the number of vehicles currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Total returns the number of packets stored since the server started.
func (s *Store) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// TTL returns the retention window for silent vehicles.
func (s *Store) TTL() time.Duration { return s.ttl }

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Info("store: evicted silent vehicles", "count", n)
			}
		}
	}
}
