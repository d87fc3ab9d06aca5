package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/HouseParty/internal/core"
	"github.com/dkeye/HouseParty/internal/domain"
)

// Registry tracks live connections and their group membership.
// Membership may be recorded before the connection binds.
type Registry struct {
	mu       sync.RWMutex
	conns    map[domain.ConnectionID]core.SignalConnection
	groups   map[domain.GroupID]map[domain.ConnectionID]struct{}
	memberOf map[domain.ConnectionID]map[domain.GroupID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[domain.ConnectionID]core.SignalConnection),
		groups:   make(map[domain.GroupID]map[domain.ConnectionID]struct{}),
		memberOf: make(map[domain.ConnectionID]map[domain.GroupID]struct{}),
	}
}

// Bind attaches a transport to id, replacing and returning any previous one.
func (r *Registry) Bind(id domain.ConnectionID, conn core.SignalConnection) core.SignalConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conns[id]
	r.conns[id] = conn
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound connection")
	return prev
}

// Unbind drops the connection and all its memberships if conn is still the
// one bound to id.
func (r *Registry) Unbind(id domain.ConnectionID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[id]; !ok || cur != conn {
		return false
	}
	delete(r.conns, id)
	for g := range r.memberOf[id] {
		members := r.groups[g]
		delete(members, id)
		if len(members) == 0 {
			delete(r.groups, g)
		}
	}
	delete(r.memberOf, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbound connection")
	return true
}

// AddToGroup is idempotent and reports whether membership changed.
func (r *Registry) AddToGroup(id domain.ConnectionID, group domain.GroupID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.groups[group]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		r.groups[group] = members
	}
	if _, ok := members[id]; ok {
		return false
	}
	members[id] = struct{}{}
	gs, ok := r.memberOf[id]
	if !ok {
		gs = make(map[domain.GroupID]struct{})
		r.memberOf[id] = gs
	}
	gs[group] = struct{}{}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("group", string(group)).Msg("added to group")
	return true
}

func (r *Registry) RemoveFromGroup(id domain.ConnectionID, group domain.GroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.groups[group]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
	delete(r.memberOf[id], group)
}

func (r *Registry) Connection(id domain.ConnectionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Member is a bound connection in a group.
type Member struct {
	ID   domain.ConnectionID
	Conn core.SignalConnection
}

// MembersOf snapshots the bound members of group so callers can send
// without holding the lock.
func (r *Registry) MembersOf(group domain.GroupID) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.groups[group]
	out := make([]Member, 0, len(members))
	for id := range members {
		if c, ok := r.conns[id]; ok {
			out = append(out, Member{ID: id, Conn: c})
		}
	}
	return out
}

func (r *Registry) GroupsOf(id domain.ConnectionID) []domain.GroupID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.GroupID, 0, len(r.memberOf[id]))
	for g := range r.memberOf[id] {
		out = append(out, g)
	}
	return out
}

// CloseAll closes and forgets every bound connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]core.SignalConnection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[domain.ConnectionID]core.SignalConnection)
	r.groups = make(map[domain.GroupID]map[domain.ConnectionID]struct{})
	r.memberOf = make(map[domain.ConnectionID]map[domain.GroupID]struct{})
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
