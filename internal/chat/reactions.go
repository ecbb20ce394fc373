package chat

import (
	"slices"
	"strings"
)

// AddReaction records userID's emoji on a message. Adding the same reaction
// twice reports changed=false.
func (s *ChannelStore) AddReaction(channelID, messageID, userID, emoji string) (bool, error) {
	if strings.TrimSpace(emoji) == "" {
		return false, ErrInvalidInput
	}
	c, err := s.channel(channelID)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, m := c.findLocked(messageID)
	if m == nil {
		return false, ErrNotFound
	}
	if slices.Contains(m.Reactions[emoji], userID) {
		return false, nil
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], userID)
	return true, nil
}

// RemoveReaction withdraws userID's emoji. An emoji left without voters is
// removed from the message.
func (s *ChannelStore) RemoveReaction(channelID, messageID, userID, emoji string) (bool, error) {
	c, err := s.channel(channelID)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, m := c.findLocked(messageID)
	if m == nil {
		return false, ErrNotFound
	}
	voters := m.Reactions[emoji]
	i := slices.Index(voters, userID)
	if i < 0 {
		return false, nil
	}
	voters = slices.Delete(voters, i, i+1)
	if len(voters) == 0 {
		delete(m.Reactions, emoji)
	} else {
		m.Reactions[emoji] = voters
	}
	return true, nil
}
