// Package switchboard implements C9, the space switchboard relay (§4.9):
// terminating signed sessions, tracking space membership, reconciling the
// set of aspects each member holds, and routing direct messages and
// publishes. Modeled on the teacher's networking/router/chain_router.go
// single-threaded dispatch loop: one goroutine owns the event stream,
// per-space state sits behind its own RWMutex so admin reads never block
// the loop, and all writes happen only from inside the loop goroutine
// (§5 "Switchboard single-threaded").
package switchboard

import (
	"sort"
	"sync"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/aspectmap"
)

// Space is identified by a space_address and owns the union of aspects
// any member has ever announced holding, plus current membership (§3
// "Space").
type Space struct {
	Address address.Address

	mu      sync.RWMutex
	members map[address.Address]string // agent -> connection URI
	all     *aspectmap.Map             // all_aspects
}

// NewSpace returns an empty space identified by addr.
func NewSpace(addr address.Address) *Space {
	return &Space{
		Address: addr,
		members: make(map[address.Address]string),
		all:     aspectmap.New(),
	}
}

// Join records agent as a member reachable at uri. Re-joining with a new
// uri simply updates the recorded connection.
func (s *Space) Join(agent address.Address, uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[agent] = uri
}

// Leave removes agent's membership. Returns true if the space is now
// empty (§8 "leaving the last member removes it" — the caller decides
// whether to actually drop the Space from the registry).
func (s *Space) Leave(agent address.Address) (empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, agent)
	return len(s.members) == 0
}

// URI returns the connection URI currently recorded for agent.
func (s *Space) URI(agent address.Address) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uri, ok := s.members[agent]
	return uri, ok
}

// Has reports whether agent is currently a member.
func (s *Space) Has(agent address.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[agent]
	return ok
}

// Members returns every joined agent, sorted by address byte order for
// reproducible fan-out/random-pick order in tests.
func (s *Space) Members() []address.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]address.Address, 0, len(s.members))
	for a := range s.members {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// OtherMembers returns every joined agent except excluding, sorted.
func (s *Space) OtherMembers(excluding address.Address) []address.Address {
	all := s.Members()
	out := make([]address.Address, 0, len(all))
	for _, a := range all {
		if a != excluding {
			out = append(out, a)
		}
	}
	return out
}

// MemberCount returns the number of currently joined agents.
func (s *Space) MemberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// AllAspects returns the space's all_aspects map directly; callers in the
// event-loop goroutine may mutate it (Add), admin-query callers should
// use AllAspects().Clone() for a point-in-time snapshot (aspectmap.Map
// is itself safe for concurrent reads while the loop writes).
func (s *Space) AllAspects() *aspectmap.Map {
	return s.all
}

// Registry tracks every Space the switchboard currently knows about,
// created on first JoinSpace and (per §8 boundary behavior) removable
// once empty.
type Registry struct {
	mu     sync.RWMutex
	spaces map[address.Address]*Space
}

// NewRegistry returns an empty space Registry.
func NewRegistry() *Registry {
	return &Registry{spaces: make(map[address.Address]*Space)}
}

// GetOrCreate returns the Space for addr, creating it if this is the
// first agent ever to join it (§8 "Joining an empty space creates it").
func (r *Registry) GetOrCreate(addr address.Address) *Space {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.spaces[addr]
	if !ok {
		sp = NewSpace(addr)
		r.spaces[addr] = sp
	}
	return sp
}

// Get returns the Space for addr without creating it.
func (r *Registry) Get(addr address.Address) (*Space, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.spaces[addr]
	return sp, ok
}

// DropIfEmpty removes addr's Space from the registry if it currently has
// no members (§8 "leaving the last member removes it").
func (r *Registry) DropIfEmpty(addr address.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.spaces[addr]
	if ok && sp.MemberCount() == 0 {
		delete(r.spaces, addr)
	}
}

// Len returns the number of tracked spaces, used by admin queries/tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spaces)
}
