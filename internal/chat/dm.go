package chat

import (
	"slices"
	"strings"
	"sync"
)

// ConversationID is the store key shared by both directions of a pair.
// The ids are sorted and joined with a NUL byte; identities containing
// control characters are rejected at login, so distinct pairs never collide.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	slices.Sort(pair)
	return strings.Join(pair, "\x00")
}

// DMStore keeps one chronological log per conversation.
type DMStore struct {
	mu    sync.Mutex
	logs  map[string][]DirectMessage
	clock Clock
}

// NewDMStore creates an empty direct message store.
func NewDMStore(clock Clock) *DMStore {
	return &DMStore{logs: make(map[string][]DirectMessage), clock: clock}
}

// Send appends a message to the sender/recipient conversation.
func (s *DMStore) Send(senderID, senderName, recipientID, content string, typ MessageType, image string) (DirectMessage, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return DirectMessage{}, ErrInvalidInput
	}
	typ = ParseMessageType(string(typ))
	if typ == MessageImage && strings.TrimSpace(image) == "" {
		return DirectMessage{}, ErrInvalidInput
	}
	if typ == MessageText && strings.TrimSpace(content) == "" {
		return DirectMessage{}, ErrInvalidInput
	}

	now := s.clock.now()
	m := DirectMessage{
		ID:             newID("dm", now),
		ConversationID: ConversationID(senderID, recipientID),
		SenderID:       senderID,
		SenderName:     senderName,
		RecipientID:    recipientID,
		Content:        content,
		Type:           typ,
		Image:          image,
		CreatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[m.ConversationID] = append(s.logs[m.ConversationID], m)
	return m, nil
}

// History returns the whole conversation between requester and other,
// oldest first.
func (s *DMStore) History(requesterID, otherID string) []DirectMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[ConversationID(requesterID, otherID)]
	out := make([]DirectMessage, len(log))
	copy(out, log)
	return out
}
