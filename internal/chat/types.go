// Package chat holds the shared state of the chat service: sessions,
// channels and their message logs, reactions, polls, direct messages,
// profiles, presence and moderation records.
//
// Every store guards its own state and hands out copies, so values returned
// from a store can be encoded or inspected without further locking.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of a session.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleBot       Role = "bot"
)

// ParseRole maps free-form input onto a known role, defaulting to member.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleModerator:
		return RoleModerator
	case RoleBot:
		return RoleBot
	default:
		return RoleMember
	}
}

// IsModerator reports whether r may run moderator-only operations.
func (r Role) IsModerator() bool {
	return r == RoleModerator
}

// MessageType distinguishes plain text from image posts.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// ParseMessageType defaults anything unknown to text.
func ParseMessageType(s string) MessageType {
	if MessageType(s) == MessageImage {
		return MessageImage
	}
	return MessageText
}

// Identity is what a client claims at login.
type Identity struct {
	UserID   string
	Username string
	Avatar   string
	Role     Role
}

// Session binds one live connection to an authenticated identity.
type Session struct {
	ConnID      string    `json:"socketId"`
	UserID      string    `json:"id"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar,omitempty"`
	Role        Role      `json:"role"`
	Channel     string    `json:"channel,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Profile is a user's leveling record. It outlives sessions.
type Profile struct {
	UserID       string    `json:"userId"`
	Level        int       `json:"level"`
	XP           int       `json:"xp"`
	MessageCount int       `json:"messageCount"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Message is one entry of a channel log.
type Message struct {
	ID        string              `json:"id"`
	ChannelID string              `json:"channel"`
	AuthorID  string              `json:"authorId"`
	Author    string              `json:"author"`
	Avatar    string              `json:"avatar,omitempty"`
	Role      Role                `json:"role"`
	Content   string              `json:"content"`
	Type      MessageType         `json:"type"`
	Image     string              `json:"image,omitempty"`
	CreatedAt time.Time           `json:"timestamp"`
	Edited    bool                `json:"edited"`
	EditedAt  *time.Time          `json:"editedAt,omitempty"`
	Reactions map[string][]string `json:"reactions"`
	Mentions  []string            `json:"mentions"`
	ReplyTo   string              `json:"replyTo,omitempty"`
	Pinned    bool                `json:"pinned"`
}

// Channel describes a text room. Its log lives in the ChannelStore.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"desc"`
	Category    string    `json:"category"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// VoiceRoom tracks membership only; no media flows through the server.
type VoiceRoom struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon"`
	Participants []string `json:"participants"`
}

// PollOption is one answer and the users who picked it.
type PollOption struct {
	Text   string   `json:"text"`
	Voters []string `json:"votes"`
}

// Poll is a channel-scoped vote.
type Poll struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channel"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Active    bool         `json:"active"`
}

// DirectMessage is one entry of a canonical two-party conversation.
type DirectMessage struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"-"`
	SenderID       string      `json:"senderId"`
	SenderName     string      `json:"senderName"`
	RecipientID    string      `json:"recipientId"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	Image          string      `json:"image,omitempty"`
	CreatedAt      time.Time   `json:"timestamp"`
}

// Mute blocks message sending until ExpiresAt.
type Mute struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"until"`
}

// Ban permanently blocks authentication.
type Ban struct {
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	BannedBy  string    `json:"bannedBy"`
	Permanent bool      `json:"permanent"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReportStatus is the lifecycle of a report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportResolved ReportStatus = "resolved"
)

// Report is a user complaint about a message.
type Report struct {
	ID             string       `json:"id"`
	ReporterID     string       `json:"reportedBy"`
	ReportedUserID string       `json:"reportedUser"`
	MessageID      string       `json:"messageId"`
	Reason         string       `json:"reason"`
	Content        string       `json:"content"`
	CreatedAt      time.Time    `json:"timestamp"`
	Status         ReportStatus `json:"status"`
	ResolvedBy     string       `json:"resolvedBy,omitempty"`
}

// UserStatus is the self-declared availability of a user.
type UserStatus struct {
	UserID       string    `json:"userId"`
	Status       string    `json:"status"`
	CustomStatus string    `json:"customStatus"`
	Activity     string    `json:"activity,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clock returns the current time. Stores take one so expiry can be tested.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// newID returns "<prefix>_<unix millis>_<random suffix>", which sorts
// roughly by creation time.
func newID(prefix string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, at.UnixMilli(), suffix)
}
