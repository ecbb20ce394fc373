package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/aniconnect/internal/chat"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Action is one decoded inbound client event. The set of implementations is
// closed: only this package can add variants, and Dispatcher.Handle switches
// over all of them.
type Action interface {
	Event() string
	action()
}

type (
	Login struct {
		ID           string `json:"id"`
		Username     string `json:"username"`
		Avatar       string `json:"avatar"`
		Role         string `json:"role"`
		ModeratorKey string `json:"moderatorKey"`
	}
	JoinChannel struct {
		Channel string `json:"channel"`
	}
	SendMessage struct {
		Channel  string   `json:"channel"`
		Content  string   `json:"content"`
		Type     string   `json:"type"`
		Image    string   `json:"image"`
		Mentions []string `json:"mentions"`
		ReplyTo  string   `json:"replyTo"`
	}
	EditMessage struct {
		Channel    string `json:"channel"`
		MessageID  string `json:"messageId"`
		NewContent string `json:"newContent"`
	}
	DeleteMessage struct {
		Channel   string `json:"channel"`
		MessageID string `json:"messageId"`
	}
	AddReaction struct {
		Channel   string `json:"channel"`
		MessageID string `json:"messageId"`
		Emoji     string `json:"emoji"`
	}
	RemoveReaction struct {
		Channel   string `json:"channel"`
		MessageID string `json:"messageId"`
		Emoji     string `json:"emoji"`
	}
	Typing struct {
		Channel string `json:"channel"`
	}
	SendDM struct {
		RecipientID string `json:"recipientId"`
		Content     string `json:"content"`
		Type        string `json:"type"`
		Image       string `json:"image"`
	}
	GetDMHistory struct {
		UserID string `json:"userId"`
	}
	JoinVoice struct {
		ChannelID string `json:"channelId"`
	}
	LeaveVoice struct {
		ChannelID string `json:"channelId"`
	}
	UpdateStatus struct {
		Status       string `json:"status"`
		CustomStatus string `json:"customStatus"`
		Activity     string `json:"activity"`
	}
	CreatePoll struct {
		Channel  string   `json:"channel"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Duration int      `json:"duration"`
	}
	VotePoll struct {
		Channel     string `json:"channel"`
		PollID      string `json:"pollId"`
		OptionIndex int    `json:"optionIndex"`
	}
	ClosePoll struct {
		PollID string `json:"pollId"`
	}
	PinMessage struct {
		Channel   string `json:"channel"`
		MessageID string `json:"messageId"`
	}
	UnpinMessage struct {
		Channel   string `json:"channel"`
		MessageID string `json:"messageId"`
	}
	ReportMessage struct {
		Channel   string `json:"channel"`
		MessageID string `json:"messageId"`
		UserID    string `json:"userId"`
		Reason    string `json:"reason"`
		Content   string `json:"content"`
	}
	ResolveReport struct {
		ReportID string `json:"reportId"`
	}
	MuteUser struct {
		UserID   string `json:"userId"`
		Duration int    `json:"duration"`
	}
	BanUser struct {
		UserID string `json:"userId"`
		Reason string `json:"reason"`
	}
	CreateChannel struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Icon     string `json:"icon"`
		Desc     string `json:"desc"`
		Category string `json:"category"`
	}
	DeleteChannel struct {
		ChannelID string `json:"channelId"`
	}
	GetProfile struct {
		UserID string `json:"userId"`
	}
	GetPoll struct {
		PollID string `json:"pollId"`
	}
	GetStats       struct{}
	GetLeaderboard struct{}
	GetReports     struct{}
	Heartbeat      struct{}
)

func (*Login) Event() string          { return "login" }
func (*JoinChannel) Event() string    { return "join_channel" }
func (*SendMessage) Event() string    { return "send_message" }
func (*EditMessage) Event() string    { return "edit_message" }
func (*DeleteMessage) Event() string  { return "delete_message" }
func (*AddReaction) Event() string    { return "add_reaction" }
func (*RemoveReaction) Event() string { return "remove_reaction" }
func (*Typing) Event() string         { return "typing" }
func (*SendDM) Event() string         { return "send_dm" }
func (*GetDMHistory) Event() string   { return "get_dm_history" }
func (*JoinVoice) Event() string      { return "join_voice" }
func (*LeaveVoice) Event() string     { return "leave_voice" }
func (*UpdateStatus) Event() string   { return "update_status" }
func (*CreatePoll) Event() string     { return "create_poll" }
func (*VotePoll) Event() string       { return "vote_poll" }
func (*ClosePoll) Event() string      { return "close_poll" }
func (*PinMessage) Event() string     { return "pin_message" }
func (*UnpinMessage) Event() string   { return "unpin_message" }
func (*ReportMessage) Event() string  { return "report_message" }
func (*ResolveReport) Event() string  { return "resolve_report" }
func (*MuteUser) Event() string       { return "mute_user" }
func (*BanUser) Event() string        { return "ban_user" }
func (*CreateChannel) Event() string  { return "create_channel" }
func (*DeleteChannel) Event() string  { return "delete_channel" }
func (*GetStats) Event() string       { return "get_stats" }
func (*GetLeaderboard) Event() string { return "get_leaderboard" }
func (*GetProfile) Event() string     { return "get_profile" }
func (*GetPoll) Event() string        { return "get_poll" }
func (*GetReports) Event() string     { return "get_reports" }
func (*Heartbeat) Event() string      { return "heartbeat" }

func (*Login) action()          {}
func (*JoinChannel) action()    {}
func (*SendMessage) action()    {}
func (*EditMessage) action()    {}
func (*DeleteMessage) action()  {}
func (*AddReaction) action()    {}
func (*RemoveReaction) action() {}
func (*Typing) action()         {}
func (*SendDM) action()         {}
func (*GetDMHistory) action()   {}
func (*JoinVoice) action()      {}
func (*LeaveVoice) action()     {}
func (*UpdateStatus) action()   {}
func (*CreatePoll) action()     {}
func (*VotePoll) action()       {}
func (*ClosePoll) action()      {}
func (*PinMessage) action()     {}
func (*UnpinMessage) action()   {}
func (*ReportMessage) action()  {}
func (*ResolveReport) action()  {}
func (*MuteUser) action()       {}
func (*BanUser) action()        {}
func (*CreateChannel) action()  {}
func (*DeleteChannel) action()  {}
func (*GetStats) action()       {}
func (*GetLeaderboard) action() {}
func (*GetProfile) action()     {}
func (*GetPoll) action()        {}
func (*GetReports) action()     {}
func (*Heartbeat) action()      {}

// Some events carry a bare id string instead of an object, e.g.
// {"event":"join_channel","data":"general"}. These accept both forms.

func (a *JoinChannel) UnmarshalJSON(b []byte) error {
	type plain JoinChannel
	return decodeIDOrObject(b, &a.Channel, (*plain)(a))
}

func (a *GetDMHistory) UnmarshalJSON(b []byte) error {
	type plain GetDMHistory
	return decodeIDOrObject(b, &a.UserID, (*plain)(a))
}

func (a *JoinVoice) UnmarshalJSON(b []byte) error {
	type plain JoinVoice
	return decodeIDOrObject(b, &a.ChannelID, (*plain)(a))
}

func (a *LeaveVoice) UnmarshalJSON(b []byte) error {
	type plain LeaveVoice
	return decodeIDOrObject(b, &a.ChannelID, (*plain)(a))
}

func (a *DeleteChannel) UnmarshalJSON(b []byte) error {
	type plain DeleteChannel
	return decodeIDOrObject(b, &a.ChannelID, (*plain)(a))
}

func (a *GetProfile) UnmarshalJSON(b []byte) error {
	type plain GetProfile
	return decodeIDOrObject(b, &a.UserID, (*plain)(a))
}

func (a *GetPoll) UnmarshalJSON(b []byte) error {
	type plain GetPoll
	return decodeIDOrObject(b, &a.PollID, (*plain)(a))
}

func decodeIDOrObject(b []byte, id *string, obj any) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, id)
	}
	return json.Unmarshal(b, obj)
}

// Decode turns a frame into its Action variant.
func Decode(env Envelope) (Action, error) {
	var a Action
	switch env.Event {
	case "login":
		a = &Login{}
	case "join_channel":
		a = &JoinChannel{}
	case "send_message":
		a = &SendMessage{}
	case "edit_message":
		a = &EditMessage{}
	case "delete_message":
		a = &DeleteMessage{}
	case "add_reaction":
		a = &AddReaction{}
	case "remove_reaction":
		a = &RemoveReaction{}
	case "typing":
		a = &Typing{}
	case "send_dm":
		a = &SendDM{}
	case "get_dm_history":
		a = &GetDMHistory{}
	case "join_voice":
		a = &JoinVoice{}
	case "leave_voice":
		a = &LeaveVoice{}
	case "update_status":
		a = &UpdateStatus{}
	case "create_poll":
		a = &CreatePoll{}
	case "vote_poll":
		a = &VotePoll{}
	case "close_poll":
		a = &ClosePoll{}
	case "pin_message":
		a = &PinMessage{}
	case "unpin_message":
		a = &UnpinMessage{}
	case "report_message":
		a = &ReportMessage{}
	case "resolve_report":
		a = &ResolveReport{}
	case "mute_user":
		a = &MuteUser{}
	case "ban_user":
		a = &BanUser{}
	case "create_channel":
		a = &CreateChannel{}
	case "delete_channel":
		a = &DeleteChannel{}
	case "get_stats":
		a = &GetStats{}
	case "get_leaderboard":
		a = &GetLeaderboard{}
	case "get_profile":
		a = &GetProfile{}
	case "get_poll":
		a = &GetPoll{}
	case "get_reports":
		a = &GetReports{}
	case "heartbeat":
		a = &Heartbeat{}
	default:
		return nil, fmt.Errorf("unknown event %q: %w", env.Event, chat.ErrInvalidInput)
	}

	if len(bytes.TrimSpace(env.Data)) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return a, nil
	}
	if err := json.Unmarshal(env.Data, a); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", env.Event, err, chat.ErrInvalidInput)
	}
	return a, nil
}
