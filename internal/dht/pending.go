package dht

import (
	"time"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/model"
	"github.com/lux-nexus/switchboard/internal/xset"
)

// WorkflowKind distinguishes why an entry+header was queued, since
// SPEC_FULL's redesign decision (Open Question #1) makes ValidationPending
// retryable for DHT-side holding workflows but fatal for authoring: only
// holding workflows ever reach this queue.
type WorkflowKind uint8

const (
	WorkflowHoldEntry WorkflowKind = iota
	WorkflowHoldLink
	WorkflowRemoveLink
	WorkflowHoldUpdate
	WorkflowHoldDeletion
)

// PendingValidation is queued whenever a validator reports
// UnresolvedDependencies (§3 "PendingValidation", §4.7).
type PendingValidation struct {
	Entry   model.Entry
	Header  model.ChainHeader
	Missing xset.Set[address.Address]
	Kind    WorkflowKind

	// Delay is the current back-off duration; zero until the first retry.
	Delay time.Duration
	// NextRunAt is when this item becomes eligible to run again.
	NextRunAt time.Time
	// running is true while a holding-loop tick owns this item; it is
	// removed from the ready heap while running so no item is ever both
	// running and enqueued (§8 invariant 6).
	running bool

	// seq breaks ties between items with equal NextRunAt, preserving
	// FIFO among items that became ready simultaneously.
	seq uint64
}

// Key identifies a pending validation by its entry's address, used to
// deduplicate/locate items for removal.
func (p *PendingValidation) Key() address.Address {
	return p.Entry.Address()
}

const (
	initialDelay = 500 * time.Millisecond
	maxDelay     = time.Hour
)

// NextDelay computes the back-off for a requeue after another
// UnresolvedDependencies result (§4.7): doubles each time, starting at
// 500ms, capped at 1h.
func NextDelay(current time.Duration) time.Duration {
	if current == 0 {
		return initialDelay
	}
	d := current * 2
	if d > maxDelay {
		return maxDelay
	}
	return d
}
