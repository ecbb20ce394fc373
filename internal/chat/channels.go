package chat

import (
	"slices"
	"strings"
	"sync"
	"unicode"
)

// DefaultLogCap is the number of messages retained per channel.
const DefaultLogCap = 500

// DefaultChannels is the channel set created at boot.
func DefaultChannels() []Channel {
	return []Channel{
		{ID: "general", Name: "general", Icon: "💬", Description: "General anime discussion", Category: "text"},
		{ID: "recommendations", Name: "recommendations", Icon: "📺", Description: "Share and find anime", Category: "text"},
		{ID: "fanart", Name: "fanart", Icon: "🎨", Description: "Showcase your art", Category: "text"},
		{ID: "cosplay", Name: "cosplay", Icon: "👘", Description: "Cosplay photos", Category: "text"},
		{ID: "gaming", Name: "gaming", Icon: "🎮", Description: "Gaming discussions", Category: "text"},
		{ID: "music", Name: "music", Icon: "🎵", Description: "Anime OSTs & J-Pop", Category: "text"},
		{ID: "offtopic", Name: "off-topic", Icon: "🌟", Description: "Random stuff", Category: "text"},
	}
}

// Draft is the author-supplied part of a new message.
type Draft struct {
	AuthorID string
	Author   string
	Avatar   string
	Role     Role
	Content  string
	Type     MessageType
	Image    string
	Mentions []string
	ReplyTo  string
}

type channelState struct {
	mu     sync.Mutex
	info   Channel
	log    []*Message
	pinned []string
}

func (c *channelState) findLocked(messageID string) (int, *Message) {
	for i, m := range c.log {
		if m.ID == messageID {
			return i, m
		}
	}
	return -1, nil
}

func (c *channelState) isPinnedLocked(messageID string) bool {
	return slices.Contains(c.pinned, messageID)
}

func (c *channelState) unpinLocked(messageID string) bool {
	i := slices.Index(c.pinned, messageID)
	if i < 0 {
		return false
	}
	c.pinned = slices.Delete(c.pinned, i, i+1)
	return true
}

// snapshotLocked deep-copies m so callers never share maps with the log.
func (c *channelState) snapshotLocked(m *Message) Message {
	out := *m
	out.Reactions = make(map[string][]string, len(m.Reactions))
	for emoji, voters := range m.Reactions {
		out.Reactions[emoji] = slices.Clone(voters)
	}
	out.Mentions = slices.Clone(m.Mentions)
	if out.Mentions == nil {
		out.Mentions = []string{}
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	out.Pinned = c.isPinnedLocked(m.ID)
	return out
}

// ChannelStore owns channels and their message logs. The channel map has
// its own lock; each channel's log, pins and reactions are guarded by a
// per-channel mutex so posts to different channels never contend.
type ChannelStore struct {
	mu       sync.RWMutex
	channels map[string]*channelState
	order    []string
	logCap   int
	clock    Clock
}

// NewChannelStore creates a store seeded with the given channels.
func NewChannelStore(seed []Channel, logCap int, clock Clock) *ChannelStore {
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	s := &ChannelStore{
		channels: make(map[string]*channelState),
		logCap:   logCap,
		clock:    clock,
	}
	now := clock.now()
	for _, ch := range seed {
		if ch.CreatedAt.IsZero() {
			ch.CreatedAt = now
		}
		s.channels[ch.ID] = &channelState{info: ch}
		s.order = append(s.order, ch.ID)
	}
	return s
}

func (s *ChannelStore) channel(id string) (*channelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[id]
	if !ok {
		return nil, ErrUnknownChannel
	}
	return c, nil
}

// Exists reports whether channelID is a live channel.
func (s *ChannelStore) Exists(channelID string) bool {
	_, err := s.channel(channelID)
	return err == nil
}

// List returns channel metadata in creation order.
func (s *ChannelStore) List() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.channels[id].info)
	}
	return out
}

// Count returns the number of channels.
func (s *ChannelStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

// History returns the log of channelID oldest first, and its pinned ids.
func (s *ChannelStore) History(channelID string) ([]Message, []string, error) {
	c, err := s.channel(channelID)
	if err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.log))
	for i, m := range c.log {
		out[i] = c.snapshotLocked(m)
	}
	return out, slices.Clone(c.pinned), nil
}

// Message looks up one message.
func (s *ChannelStore) Message(channelID, messageID string) (Message, error) {
	c, err := s.channel(channelID)
	if err != nil {
		return Message{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, m := c.findLocked(messageID)
	if m == nil {
		return Message{}, ErrNotFound
	}
	return c.snapshotLocked(m), nil
}

// Post appends a message to channelID, evicting the oldest entries beyond
// the log cap. Mute and content checks belong to the caller.
func (s *ChannelStore) Post(channelID string, d Draft) (Message, error) {
	if d.Type == MessageImage {
		if strings.TrimSpace(d.Image) == "" {
			return Message{}, ErrInvalidInput
		}
	} else if strings.TrimSpace(d.Content) == "" {
		return Message{}, ErrInvalidInput
	}

	c, err := s.channel(channelID)
	if err != nil {
		return Message{}, err
	}

	now := s.clock.now()
	m := &Message{
		ID:        newID("msg", now),
		ChannelID: channelID,
		AuthorID:  d.AuthorID,
		Author:    d.Author,
		Avatar:    d.Avatar,
		Role:      d.Role,
		Content:   d.Content,
		Type:      ParseMessageType(string(d.Type)),
		Image:     d.Image,
		CreatedAt: now,
		Reactions: make(map[string][]string),
		Mentions:  dedupe(d.Mentions),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d.ReplyTo != "" {
		if _, target := c.findLocked(d.ReplyTo); target != nil {
			m.ReplyTo = d.ReplyTo
		}
	}

	c.log = append(c.log, m)
	if over := len(c.log) - s.logCap; over > 0 {
		for _, old := range c.log[:over] {
			c.unpinLocked(old.ID)
		}
		n := copy(c.log, c.log[over:])
		clear(c.log[n:])
		c.log = c.log[:n]
	}
	return c.snapshotLocked(m), nil
}

// Edit replaces the content of a message. Only the author may edit.
func (s *ChannelStore) Edit(channelID, messageID, editorID, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrInvalidInput
	}
	c, err := s.channel(channelID)
	if err != nil {
		return Message{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, m := c.findLocked(messageID)
	if m == nil {
		return Message{}, ErrNotFound
	}
	if m.AuthorID != editorID {
		return Message{}, ErrForbidden
	}
	now := s.clock.now()
	m.Content = content
	m.Edited = true
	m.EditedAt = &now
	return c.snapshotLocked(m), nil
}

// Delete removes a message. The author and moderators may delete.
func (s *ChannelStore) Delete(channelID, messageID, requesterID string, role Role) error {
	c, err := s.channel(channelID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i, m := c.findLocked(messageID)
	if m == nil {
		return ErrNotFound
	}
	if m.AuthorID != requesterID && !role.IsModerator() {
		return ErrForbidden
	}
	c.log = slices.Delete(c.log, i, i+1)
	c.unpinLocked(messageID)
	return nil
}

// Pin adds messageID to the pinned set. Pinning twice reports changed=false.
func (s *ChannelStore) Pin(role Role, channelID, messageID string) (bool, error) {
	if !role.IsModerator() {
		return false, ErrUnauthorized
	}
	c, err := s.channel(channelID)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, m := c.findLocked(messageID); m == nil {
		return false, ErrNotFound
	}
	if c.isPinnedLocked(messageID) {
		return false, nil
	}
	c.pinned = append(c.pinned, messageID)
	return true, nil
}

// Unpin removes messageID from the pinned set.
func (s *ChannelStore) Unpin(role Role, channelID, messageID string) (bool, error) {
	if !role.IsModerator() {
		return false, ErrUnauthorized
	}
	c, err := s.channel(channelID)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unpinLocked(messageID), nil
}

// Create adds a channel. Only moderators may create channels.
func (s *ChannelStore) Create(role Role, ch Channel, createdBy string) (Channel, error) {
	if !role.IsModerator() {
		return Channel{}, ErrUnauthorized
	}
	ch.ID = strings.TrimSpace(ch.ID)
	if !validChannelID(ch.ID) {
		return Channel{}, ErrInvalidInput
	}
	if strings.TrimSpace(ch.Name) == "" {
		ch.Name = ch.ID
	}
	if ch.Category == "" {
		ch.Category = "text"
	}
	ch.CreatedBy = createdBy
	ch.CreatedAt = s.clock.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[ch.ID]; ok {
		return Channel{}, ErrChannelExists
	}
	s.channels[ch.ID] = &channelState{info: ch}
	s.order = append(s.order, ch.ID)
	return ch, nil
}

// DeleteChannel removes a channel together with its log and pins.
func (s *ChannelStore) DeleteChannel(role Role, channelID string) error {
	if !role.IsModerator() {
		return ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; !ok {
		return ErrUnknownChannel
	}
	delete(s.channels, channelID)
	if i := slices.Index(s.order, channelID); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

func validChannelID(id string) bool {
	if id == "" || len(id) > maxIdentityLength {
		return false
	}
	for _, c := range id {
		if unicode.IsSpace(c) || unicode.IsControl(c) {
			return false
		}
	}
	return true
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
