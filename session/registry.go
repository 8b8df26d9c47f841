package session

import (
	"fmt"
	"sync"

	"vocalink/core"
)

// Registry tracks every live session and the named broadcast groups they
// belong to. One mutex guards both maps; group membership and session
// lifetime change together.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	groups   map[string]*group
	logger   *core.Logger
}

func NewRegistry(logger *core.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		groups:   make(map[string]*group),
		logger:   logger,
	}
}

// Add registers a session. A duplicate ID is rejected.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already registered", s.ID)
	}
	r.sessions[s.ID] = s
	return nil
}

// Get looks a session up by ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deregisters a session, leaving its group first. It returns the name
// of the group the session left, if any, so the caller can notify the rest.
func (r *Registry) Remove(id string) (string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return "", nil
	}
	delete(r.sessions, id)
	return r.leaveGroupLocked(s)
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// AddToGroup puts a session into a named group, creating it on demand. A
// session belongs to at most one group; joining another moves it. Both the
// new roster and the roster of any group it left are returned for
// notification. Re-adding to the current group is a no-op.
func (r *Registry) AddToGroup(groupName, sessionID string) (joined []string, leftGroup string, left []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, "", nil, fmt.Errorf("unknown session %s", sessionID)
	}
	if s.Group() == groupName {
		g := r.groups[groupName]
		return g.roster(), "", nil, nil
	}

	leftGroup, left = r.leaveGroupLocked(s)

	g, ok := r.groups[groupName]
	if !ok {
		g = newGroup(groupName)
		r.groups[groupName] = g
	}
	g.add(sessionID)
	s.setGroup(groupName)
	return g.roster(), leftGroup, left, nil
}

// RemoveFromGroup takes a session out of the named group. Empty groups are
// deleted. Removing a member that is not in the group is a no-op; the current
// roster is returned for notification either way.
func (r *Registry) RemoveFromGroup(groupName, sessionID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	if s.Group() != groupName {
		if g, ok := r.groups[groupName]; ok {
			return g.roster(), nil
		}
		return nil, nil
	}
	_, roster := r.leaveGroupLocked(s)
	return roster, nil
}

// leaveGroupLocked detaches a session from whatever group it is in, deleting
// the group once empty. Caller holds the mutex.
func (r *Registry) leaveGroupLocked(s *Session) (string, []string) {
	name := s.Group()
	if name == "" {
		return "", nil
	}
	g, ok := r.groups[name]
	if ok {
		g.remove(s.ID)
		if len(g.members) == 0 {
			delete(r.groups, name)
			g = nil
		}
	}
	s.setGroup("")
	if g == nil {
		return name, nil
	}
	return name, g.roster()
}

// GroupMembers returns the roster of a group, or nil when it does not exist.
func (r *Registry) GroupMembers(groupName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupName]
	if !ok {
		return nil
	}
	return g.roster()
}

// Broadcast queues a frame to every member of a group except the sender.
// Delivery to one member never affects the others; members whose connection
// has already closed are pruned from the group.
func (r *Registry) Broadcast(groupName string, frame []byte, exceptID string) {
	r.mu.Lock()
	g, ok := r.groups[groupName]
	if !ok {
		r.mu.Unlock()
		return
	}
	var targets []*Session
	var stale []string
	for _, id := range g.members {
		if id == exceptID {
			continue
		}
		member, ok := r.sessions[id]
		if !ok || member.Closed() {
			stale = append(stale, id)
			continue
		}
		targets = append(targets, member)
	}
	for _, id := range stale {
		g.remove(id)
		r.logger.Debug("pruned closed session from group", "group", groupName, "session_id", id)
	}
	if len(g.members) == 0 {
		delete(r.groups, groupName)
	}
	r.mu.Unlock()

	for _, member := range targets {
		member.Send(frame)
	}
}

// CloseAll tears down every session, for server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.groups = make(map[string]*group)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
