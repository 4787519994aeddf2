// Package dht implements C5, the DHT store (§4.3): the set of aspects this
// instance holds on behalf of the space (distinct from its own local
// chain), plus the queue of entries awaiting dependency resolution before
// a holding workflow can validate them.
package dht

import (
	"container/heap"
	"sync"
	"time"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/aspectmap"
)

// Store is one instance's DHT shard: held aspects plus the pending-
// validation queue. All methods are safe for concurrent use, though in
// practice only the instance's action loop and holding loop touch it.
type Store struct {
	mu     sync.Mutex
	held   *aspectmap.Map
	queue  *readyQueue
	byAddr map[address.Address]*PendingValidation
	seq    uint64
}

// New returns an empty DHT store.
func New() *Store {
	return &Store{
		held:   aspectmap.New(),
		queue:  &readyQueue{},
		byAddr: make(map[address.Address]*PendingValidation),
	}
}

// HoldAspect records that this instance now holds aspectAddr of entry
// entryAddr. Idempotent.
func (s *Store) HoldAspect(entryAddr, aspectAddr address.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held.Add(entryAddr, aspectAddr)
}

// HasAspect reports whether this instance already holds aspectAddr of
// entryAddr.
func (s *Store) HasAspect(entryAddr, aspectAddr address.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held.Has(entryAddr, aspectAddr)
}

// HeldAspects returns the aspect addresses held for entryAddr, sorted.
func (s *Store) HeldAspects(entryAddr address.Address) []address.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held.Aspects(entryAddr)
}

// AllAspects returns a clone of the full held AspectMap, used to answer
// HandleGetGossipingEntryList (§4.9) and to build gossip diffs.
func (s *Store) AllAspects() *aspectmap.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held.Clone()
}

// Enqueue adds pending to the delay queue, eligible to run after delay has
// elapsed from now. If an item with the same key is already queued, it is
// replaced (the newer dependency set supersedes the old one).
func (s *Store) Enqueue(pending *PendingValidation, delay time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pending.Key()
	if existing, ok := s.byAddr[key]; ok {
		s.queue.remove(existing)
	}

	pending.Delay = delay
	pending.NextRunAt = now.Add(delay)
	s.seq++
	pending.seq = s.seq

	s.byAddr[key] = pending
	heap.Push(s.queue, pending)
}

// Remove drops pending from the queue entirely — used once a holding
// workflow finally succeeds or fails fatally.
func (s *Store) Remove(pending *PendingValidation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(pending)
}

func (s *Store) removeLocked(pending *PendingValidation) {
	key := pending.Key()
	if existing, ok := s.byAddr[key]; ok && existing == pending {
		delete(s.byAddr, key)
	}
	s.queue.remove(pending)
}

// NextQueuedReady pops and returns the earliest item whose NextRunAt is at
// or before now, if any. The returned item is removed from the queue and
// marked running; callers must either Remove it (done) or Enqueue it again
// with a new delay (still pending) — it is never both tracked as queued
// and returned by NextQueuedReady at once (§8 invariant 6).
func (s *Store) NextQueuedReady(now time.Time) (*PendingValidation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() == 0 {
		return nil, false
	}
	top := (*s.queue)[0]
	if top.NextRunAt.After(now) {
		return nil, false
	}
	item := heap.Pop(s.queue).(*PendingValidation)
	item.running = true
	delete(s.byAddr, item.Key())
	return item, true
}

// Len returns the number of items currently queued (not counting items
// popped via NextQueuedReady but not yet re-enqueued or removed).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// readyQueue is a min-heap ordered by NextRunAt, breaking ties by seq to
// preserve FIFO order among simultaneously-ready items.
type readyQueue []*PendingValidation

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].NextRunAt.Equal(q[j].NextRunAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].NextRunAt.Before(q[j].NextRunAt)
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) {
	*q = append(*q, x.(*PendingValidation))
}

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// remove deletes pending from the heap if present, wherever it sits.
func (q *readyQueue) remove(pending *PendingValidation) {
	for i, item := range *q {
		if item == pending {
			heap.Remove(q, i)
			return
		}
	}
}
