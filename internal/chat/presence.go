package chat

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultVoiceRooms is the voice room set created at boot.
func DefaultVoiceRooms() []VoiceRoom {
	return []VoiceRoom{
		{ID: "vc-general", Name: "General Voice", Icon: "🔊"},
		{ID: "vc-anime", Name: "Anime Watch Party", Icon: "📺"},
		{ID: "vc-gaming", Name: "Gaming Session", Icon: "🎮"},
	}
}

var validStatuses = []string{"online", "away", "dnd", "invisible"}

// OnlineUser is one live connection as shown in the member list.
type OnlineUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar,omitempty"`
	Role        Role      `json:"role"`
	SocketID    string    `json:"socketId"`
	Status      string    `json:"status"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// OnlineSnapshot is the payload of an online users update.
type OnlineSnapshot struct {
	Count int          `json:"count"`
	Users []OnlineUser `json:"users"`
}

type typingState struct {
	channel string
	at      time.Time
}

// Presence tracks who is online, their status, typing indicators and voice
// room membership. One mutex covers all of it so a disconnect never leaves a
// user online but out of voice, or the reverse, to an observer.
type Presence struct {
	mu      sync.Mutex
	online  map[string]OnlineUser
	status  map[string]UserStatus
	typing  map[string]typingState
	rooms   []*VoiceRoom
	voiceOf map[string]string
	clock   Clock
}

// NewPresence creates a tracker with the given voice rooms.
func NewPresence(rooms []VoiceRoom, clock Clock) *Presence {
	p := &Presence{
		online:  make(map[string]OnlineUser),
		status:  make(map[string]UserStatus),
		typing:  make(map[string]typingState),
		voiceOf: make(map[string]string),
		clock:   clock,
	}
	for _, r := range rooms {
		r.Participants = nil
		room := r
		p.rooms = append(p.rooms, &room)
	}
	return p
}

// Connect marks a session online.
func (p *Presence) Connect(s Session) OnlineSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[s.ConnID] = OnlineUser{
		ID:          s.UserID,
		Username:    s.Username,
		Avatar:      s.Avatar,
		Role:        s.Role,
		SocketID:    s.ConnID,
		ConnectedAt: s.ConnectedAt,
	}
	return p.snapshotLocked()
}

// Disconnect removes connID from the online set and userID from any voice
// room in one step. It returns the updated online snapshot and the voice
// rooms whose membership changed.
func (p *Presence) Disconnect(connID, userID string) (OnlineSnapshot, []VoiceRoom) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, connID)

	var changed []VoiceRoom
	if room := p.leaveVoiceLocked(userID); room != nil {
		changed = append(changed, cloneRoom(room))
	}
	if !p.userOnlineLocked(userID) {
		delete(p.typing, userID)
	}
	return p.snapshotLocked(), changed
}

func (p *Presence) userOnlineLocked(userID string) bool {
	for _, u := range p.online {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Snapshot returns the current online set.
func (p *Presence) Snapshot() OnlineSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Presence) snapshotLocked() OnlineSnapshot {
	users := make([]OnlineUser, 0, len(p.online))
	for _, u := range p.online {
		u.Status = "online"
		if st, ok := p.status[u.ID]; ok {
			u.Status = st.Status
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].ConnectedAt.Equal(users[j].ConnectedAt) {
			return users[i].ConnectedAt.Before(users[j].ConnectedAt)
		}
		return users[i].SocketID < users[j].SocketID
	})
	return OnlineSnapshot{Count: len(users), Users: users}
}

// SetStatus records a user's declared status.
func (p *Presence) SetStatus(userID, status, custom, activity string) (UserStatus, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !slices.Contains(validStatuses, status) {
		return UserStatus{}, ErrInvalidInput
	}
	st := UserStatus{
		UserID:       userID,
		Status:       status,
		CustomStatus: custom,
		Activity:     activity,
		UpdatedAt:    p.clock.now(),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[userID] = st
	return st, nil
}

// Status returns the declared status of userID.
func (p *Presence) Status(userID string) (UserStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.status[userID]
	return st, ok
}

// SetTyping marks userID as typing in channelID.
func (p *Presence) SetTyping(userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typing[userID] = typingState{channel: channelID, at: p.clock.now()}
}

// ClearTyping drops the typing indicator of userID.
func (p *Presence) ClearTyping(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.typing, userID)
}

// Typing lists users typing in channelID within ttl.
func (p *Presence) Typing(channelID string, ttl time.Duration) []string {
	now := p.clock.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for id, t := range p.typing {
		if t.channel == channelID && now.Sub(t.at) < ttl {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// PruneTyping removes indicators older than ttl.
func (p *Presence) PruneTyping(ttl time.Duration) int {
	now := p.clock.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, t := range p.typing {
		if now.Sub(t.at) >= ttl {
			delete(p.typing, id)
			n++
		}
	}
	return n
}

// VoiceRooms returns every voice room with its participants.
func (p *Presence) VoiceRooms() []VoiceRoom {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]VoiceRoom, len(p.rooms))
	for i, r := range p.rooms {
		out[i] = cloneRoom(r)
	}
	return out
}

func (p *Presence) roomLocked(id string) *VoiceRoom {
	for _, r := range p.rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// JoinVoice moves userID into roomID, leaving any other room first. It
// returns the rooms whose membership changed, previous room first; joining
// the current room changes nothing.
func (p *Presence) JoinVoice(userID, roomID string) ([]VoiceRoom, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room := p.roomLocked(roomID)
	if room == nil {
		return nil, ErrNotFound
	}
	if p.voiceOf[userID] == roomID {
		return nil, nil
	}
	var changed []VoiceRoom
	if prev := p.leaveVoiceLocked(userID); prev != nil {
		changed = append(changed, cloneRoom(prev))
	}
	room.Participants = append(room.Participants, userID)
	p.voiceOf[userID] = roomID
	return append(changed, cloneRoom(room)), nil
}

// LeaveVoice removes userID from roomID. changed is false when the user was
// not in that room.
func (p *Presence) LeaveVoice(userID, roomID string) (VoiceRoom, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room := p.roomLocked(roomID)
	if room == nil {
		return VoiceRoom{}, false, ErrNotFound
	}
	if p.voiceOf[userID] != roomID {
		return cloneRoom(room), false, nil
	}
	p.leaveVoiceLocked(userID)
	return cloneRoom(room), true, nil
}

// VoiceRoomOf returns the room userID is in.
func (p *Presence) VoiceRoomOf(userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.voiceOf[userID]
	return id, ok
}

func (p *Presence) leaveVoiceLocked(userID string) *VoiceRoom {
	id, ok := p.voiceOf[userID]
	if !ok {
		return nil
	}
	delete(p.voiceOf, userID)
	room := p.roomLocked(id)
	if room == nil {
		return nil
	}
	if i := slices.Index(room.Participants, userID); i >= 0 {
		room.Participants = slices.Delete(room.Participants, i, i+1)
	}
	return room
}

func cloneRoom(r *VoiceRoom) VoiceRoom {
	out := *r
	out.Participants = slices.Clone(r.Participants)
	if out.Participants == nil {
		out.Participants = []string{}
	}
	return out
}
