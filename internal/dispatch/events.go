package dispatch

import (
	"encoding/json"
	"time"

	"github.com/Tyrowin/aniconnect/internal/chat"
)

// Outbound event names.
const (
	EventLoadMessages      = "load_messages"
	EventNewMessage        = "new_message"
	EventMessageEdited     = "message_edited"
	EventMessageDeleted    = "message_deleted"
	EventReactionAdded     = "reaction_added"
	EventReactionRemoved   = "reaction_removed"
	EventUserTyping        = "user_typing"
	EventNewDM             = "new_dm"
	EventDMSent            = "dm_sent"
	EventDMHistory         = "dm_history"
	EventOnlineUsers       = "online_users_update"
	EventVoiceUpdate       = "voice_channel_update"
	EventUserStatus        = "user_status_update"
	EventNewPoll           = "new_poll"
	EventPollUpdated       = "poll_updated"
	EventLeveledUp         = "user_leveled_up"
	EventMessagePinned     = "message_pinned"
	EventMessageUnpinned   = "message_unpinned"
	EventChannelCreated    = "channel_created"
	EventChannelDeleted    = "channel_deleted"
	EventUserMuted         = "user_muted"
	EventBanned            = "banned"
	EventNewReport         = "new_report"
	EventReportSubmitted   = "report_submitted"
	EventReportResolved    = "report_resolved"
	EventServerStats       = "server_stats"
	EventLeaderboard       = "leaderboard_data"
	EventProfileData       = "profile_data"
	EventUserProfile       = "user_profile"
	EventReports           = "reports_data"
	EventUserJoinedChannel = "user_joined_channel"
	EventError             = "error"
)

// Event is a named outbound payload.
type Event struct {
	Name    string
	Payload any
}

// Encode renders the event as a wire frame.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Name, Data: data})
}

// Outbound pairs an event with its audience. When Disconnect is set every
// recipient connection is closed after delivery.
type Outbound struct {
	To         Audience
	Event      Event
	Disconnect bool
}

func send(to Audience, name string, payload any) Outbound {
	return Outbound{To: to, Event: Event{Name: name, Payload: payload}}
}

type loadMessagesPayload struct {
	Channel        string         `json:"channel"`
	Messages       []chat.Message `json:"messages"`
	PinnedMessages []string       `json:"pinnedMessages"`
	Polls          []chat.Poll    `json:"polls"`
	TypingUsers    []string       `json:"typingUsers"`
}

type userJoinedPayload struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

type messageEditedPayload struct {
	Channel    string    `json:"channel"`
	MessageID  string    `json:"messageId"`
	NewContent string    `json:"newContent"`
	EditedAt   time.Time `json:"editedAt"`
}

type messageRefPayload struct {
	Channel   string `json:"channel"`
	MessageID string `json:"messageId"`
}

type reactionPayload struct {
	Channel   string `json:"channel"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
	Username  string `json:"username,omitempty"`
}

type typingPayload struct {
	UserID  string `json:"userId"`
	Author  string `json:"author"`
	Channel string `json:"channel"`
}

type dmHistoryPayload struct {
	UserID   string               `json:"userId"`
	Messages []chat.DirectMessage `json:"messages"`
}

type voiceUpdatePayload struct {
	ChannelID    string   `json:"channelId"`
	Participants []string `json:"participants"`
}

type statusPayload struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Status       string `json:"status"`
	CustomStatus string `json:"customStatus"`
	Activity     string `json:"activity,omitempty"`
}

type leveledUpPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Level    int    `json:"level"`
}

type channelDeletedPayload struct {
	ChannelID string `json:"channelId"`
}

type mutedPayload struct {
	UserID   string    `json:"userId"`
	MutedBy  string    `json:"mutedBy"`
	Duration int       `json:"duration"`
	Until    time.Time `json:"until"`
}

type bannedPayload struct {
	Reason   string `json:"reason"`
	BannedBy string `json:"bannedBy"`
}

type reportSubmittedPayload struct {
	ReportID string `json:"reportId"`
}

type errorPayload struct {
	Code    chat.Code `json:"code"`
	Message string    `json:"message"`
	Event   string    `json:"event"`
}

// Stats is the aggregate server snapshot.
type Stats struct {
	TotalMessages int64 `json:"totalMessages"`
	TotalUsers    int   `json:"totalUsers"`
	ActiveUsers   int   `json:"activeUsers"`
	Channels      int   `json:"channels"`
	VoiceChannels int   `json:"voiceChannels"`
}

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	UserID       string `json:"userId"`
	Level        int    `json:"level"`
	XP           int    `json:"xp"`
	MessageCount int    `json:"messageCount"`
}

type profilePayload struct {
	User    chat.Session `json:"user"`
	Profile chat.Profile `json:"profile"`
}
