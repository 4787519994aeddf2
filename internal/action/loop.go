package action

import (
	"context"
	"sync"

	"github.com/luxfi/log"
)

// Observer is notified of every Action after it has been applied to
// State. Observers run synchronously on the loop goroutine, in
// registration order, so they must not block or call back into the loop
// (that would deadlock on the single dispatch channel).
type Observer func(Action)

// Loop is the single-writer action loop described in §5: one goroutine
// owns State exclusively, draining a channel of dispatched actions and
// applying Reduce to each in arrival order. This is modeled on the
// teacher's single-threaded consensus engine loop (engine/consensus.go),
// which likewise serializes all state transitions onto one goroutine fed
// by a channel rather than guarding state with a mutex visible to callers.
type Loop struct {
	state *State
	log   log.Logger

	mu        sync.Mutex
	observers []weakObserver

	actions chan Action
	done    chan struct{}
}

// weakObserver pairs an Observer with a liveness flag so dead observers
// (e.g. a closed WebSocket session's forwarding func) can be pruned
// instead of accumulating forever.
type weakObserver struct {
	fn    Observer
	alive *bool
}

// NewLoop returns a Loop ready to Run, owning state.
func NewLoop(state *State, logger log.Logger) *Loop {
	return &Loop{
		state:   state,
		log:     logger,
		actions: make(chan Action, 256),
		done:    make(chan struct{}),
	}
}

// Observe registers fn to be called with every action after it is
// applied. It returns a cancel function; calling it marks the observer
// dead so the next dispatch prunes it.
func (l *Loop) Observe(fn Observer) (cancel func()) {
	alive := true
	l.mu.Lock()
	l.observers = append(l.observers, weakObserver{fn: fn, alive: &alive})
	l.mu.Unlock()
	return func() { alive = false }
}

// Dispatch enqueues a for processing and returns immediately. Dispatch
// never blocks the caller on Reduce or observers running; it blocks only
// if the loop's internal queue is full, which signals backpressure.
func (l *Loop) Dispatch(ctx context.Context, a Action) error {
	select {
	case l.actions <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return errLoopStopped
	}
}

// Run drains the action queue until ctx is canceled or Stop is called,
// applying Reduce and then every live observer to each action in turn.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case a := <-l.actions:
			applied := Reduce(l.state, a)
			l.notify(applied)
		case <-l.done:
			for {
				select {
				case a := <-l.actions:
					l.notify(Reduce(l.state, a))
				default:
					return
				}
			}
		case <-ctx.Done():
			l.Stop()
			return
		}
	}
}

// Stop signals Run to exit after draining any already-queued actions.
func (l *Loop) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

// State returns the loop's State. Only safe to read from the loop
// goroutine itself (e.g. from inside an Observer) or after Run has
// returned; other callers must go through Dispatch.
func (l *Loop) State() *State {
	return l.state
}

func (l *Loop) notify(a Action) {
	l.mu.Lock()
	live := l.observers[:0]
	var toCall []Observer
	for _, o := range l.observers {
		if *o.alive {
			live = append(live, o)
			toCall = append(toCall, o.fn)
		}
	}
	l.observers = live
	l.mu.Unlock()

	for _, fn := range toCall {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.log.Error("action observer panicked", log.Stringer("action", a.Kind), log.String("recovered", fmtRecover(r)))
				}
			}()
			fn(a)
		}()
	}
}

func fmtRecover(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic"
}
