package chat

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const maxIdentityLength = 64

// BanChecker reports whether a user is banned.
type BanChecker interface {
	IsBanned(userID string) bool
}

// Registry maps live connections to sessions.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Session
	byUser map[string]map[string]struct{}
	bans   BanChecker
	clock  Clock
}

// NewRegistry creates an empty registry. bans may be nil.
func NewRegistry(bans BanChecker, clock Clock) *Registry {
	return &Registry{
		conns:  make(map[string]*Session),
		byUser: make(map[string]map[string]struct{}),
		bans:   bans,
		clock:  clock,
	}
}

// Authenticate creates or overwrites the session of connID. It fails with
// ErrBanned for banned users and ErrInvalidInput for malformed identities.
func (r *Registry) Authenticate(connID string, id Identity) (Session, error) {
	id.UserID = strings.TrimSpace(id.UserID)
	id.Username = strings.TrimSpace(id.Username)
	if !validIdentityField(id.UserID) || !validIdentityField(id.Username) {
		return Session{}, ErrInvalidInput
	}
	if r.banned(id.UserID) {
		return Session{}, ErrBanned
	}
	if id.Role == "" {
		id.Role = RoleMember
	}

	now := r.clock.now()
	s := &Session{
		ConnID:      connID,
		UserID:      id.UserID,
		Username:    id.Username,
		Avatar:      id.Avatar,
		Role:        id.Role,
		ConnectedAt: now,
		LastSeen:    now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A ban recorded after this check resolves the user's connections
	// through r.mu and so sees the session inserted below.
	if r.banned(id.UserID) {
		return Session{}, ErrBanned
	}

	if prev, ok := r.conns[connID]; ok {
		s.ConnectedAt = prev.ConnectedAt
		if prev.UserID == s.UserID {
			s.Channel = prev.Channel
		}
		r.unindexLocked(prev)
	}
	r.conns[connID] = s
	if r.byUser[s.UserID] == nil {
		r.byUser[s.UserID] = make(map[string]struct{})
	}
	r.byUser[s.UserID][connID] = struct{}{}
	return *s, nil
}

func (r *Registry) banned(userID string) bool {
	return r.bans != nil && r.bans.IsBanned(userID)
}

// validIdentityField rejects empty, oversized and control-character values.
// The control-character ban keeps ConversationID unambiguous.
func validIdentityField(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > maxIdentityLength || !utf8.ValidString(s) {
		return false
	}
	for _, c := range s {
		if unicode.IsControl(c) {
			return false
		}
	}
	return true
}

// Get returns the session bound to connID.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.conns[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// SetChannel moves connID into channelID and returns the channel it left.
func (r *Registry) SetChannel(connID, channelID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.conns[connID]
	if !ok {
		return "", ErrNotAuthenticated
	}
	prev := s.Channel
	s.Channel = channelID
	return prev, nil
}

// RestoreChannel moves connID back to prev if it is still in channelID. It
// undoes a SetChannel whose join failed without clobbering a later move.
func (r *Registry) RestoreChannel(connID, channelID, prev string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.conns[connID]
	if !ok || s.Channel != channelID {
		return false
	}
	s.Channel = prev
	return true
}

// EvictChannel clears channelID from every session in it and returns the
// affected connections.
func (r *Registry) EvictChannel(channelID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, s := range r.conns {
		if s.Channel == channelID {
			s.Channel = ""
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Touch records activity on connID.
func (r *Registry) Touch(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.conns[connID]
	if ok {
		s.LastSeen = r.clock.now()
	}
	return ok
}

// Remove drops the session of connID. A second call returns false.
func (r *Registry) Remove(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.conns[connID]
	if !ok {
		return Session{}, false
	}
	delete(r.conns, connID)
	r.unindexLocked(s)
	return *s, true
}

func (r *Registry) unindexLocked(s *Session) {
	set := r.byUser[s.UserID]
	delete(set, s.ConnID)
	if len(set) == 0 {
		delete(r.byUser, s.UserID)
	}
}

// ConnectionsOf lists the live connections of userID.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ConnectionsIn lists the connections currently in channelID.
func (r *Registry) ConnectionsIn(channelID string) []string {
	return r.filter(func(s *Session) bool { return s.Channel == channelID })
}

// Moderators lists connections holding the moderator role.
func (r *Registry) Moderators() []string {
	return r.filter(func(s *Session) bool { return s.Role.IsModerator() })
}

// All lists every live connection.
func (r *Registry) All() []string {
	return r.filter(func(*Session) bool { return true })
}

func (r *Registry) filter(keep func(*Session) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, s := range r.conns {
		if keep(s) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// FindByUsername resolves a case-insensitive username to a user id among
// live sessions.
func (r *Registry) FindByUsername(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.conns {
		if strings.EqualFold(s.Username, username) {
			return s.UserID, true
		}
	}
	return "", false
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
