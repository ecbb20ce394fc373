package dispatch

import (
	"errors"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/aniconnect/internal/chat"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

func (d *Dispatcher) login(connID string, a *Login) ([]Outbound, error) {
	role := chat.ParseRole(a.Role)
	if role.IsModerator() && !d.moderatorKeyOK(a.ModeratorKey) {
		d.log.Warn().Str("conn", connID).Str("user", a.ID).Msg("moderator login without valid key, downgraded")
		role = chat.RoleMember
	}

	var online chat.OnlineSnapshot
	d.sessions.Lock()
	sess, err := d.registry.Authenticate(connID, chat.Identity{
		UserID:   a.ID,
		Username: a.Username,
		Avatar:   a.Avatar,
		Role:     role,
	})
	if err == nil {
		online = d.presence.Connect(sess)
	}
	d.sessions.Unlock()

	if errors.Is(err, chat.ErrBanned) {
		b, _ := d.moderation.Banned(strings.TrimSpace(a.ID))
		return []Outbound{{
			To:         Conn(connID),
			Event:      Event{Name: EventBanned, Payload: bannedPayload{Reason: b.Reason, BannedBy: b.BannedBy}},
			Disconnect: true,
		}}, err
	}
	if err != nil {
		return nil, err
	}

	profile := d.profiles.Ensure(sess.UserID)
	d.log.Info().Str("conn", connID).Str("user", sess.UserID).Str("role", string(sess.Role)).Msg("session opened")

	return []Outbound{
		send(Conn(connID), EventProfileData, profilePayload{User: sess, Profile: profile}),
		send(All(), EventOnlineUsers, online),
	}, nil
}

func (d *Dispatcher) moderatorKeyOK(key string) bool {
	if len(d.opts.ModeratorKeyHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(d.opts.ModeratorKeyHash, []byte(key)) == nil
}

// channelOf falls back to the session's current channel when the client
// leaves the channel out.
func channelOf(sess chat.Session, ch string) string {
	if ch = strings.TrimSpace(ch); ch != "" {
		return ch
	}
	return sess.Channel
}

func (d *Dispatcher) joinChannel(sess chat.Session, a *JoinChannel) ([]Outbound, error) {
	ch := strings.TrimSpace(a.Channel)
	// Join before reading history so no message falls between the two.
	prev, err := d.registry.SetChannel(sess.ConnID, ch)
	if err != nil {
		return nil, err
	}
	msgs, pinned, err := d.channels.History(ch)
	if err != nil {
		d.registry.RestoreChannel(sess.ConnID, ch, prev)
		return nil, err
	}
	polls := d.polls.InChannel(ch)
	if polls == nil {
		polls = []chat.Poll{}
	}
	if pinned == nil {
		pinned = []string{}
	}
	typing := d.presence.Typing(ch, d.opts.TypingTTL)
	if typing == nil {
		typing = []string{}
	}
	return []Outbound{
		send(Conn(sess.ConnID), EventLoadMessages, loadMessagesPayload{
			Channel:        ch,
			Messages:       msgs,
			PinnedMessages: pinned,
			Polls:          polls,
			TypingUsers:    typing,
		}),
		send(Room(ch, sess.ConnID), EventUserJoinedChannel, userJoinedPayload{
			UserID:    sess.UserID,
			Username:  sess.Username,
			Channel:   ch,
			Timestamp: time.Now().UTC(),
		}),
	}, nil
}

func (d *Dispatcher) sendMessage(sess chat.Session, a *SendMessage) ([]Outbound, error) {
	if d.moderation.IsMuted(sess.UserID) {
		return nil, chat.ErrMuted
	}
	if d.opts.SendLimit != nil && !d.opts.SendLimit.Allow(sess.UserID) {
		return nil, chat.ErrRateLimited
	}
	if a.Content != "" {
		if err := d.content.Check(a.Content); err != nil {
			return nil, err
		}
	}

	ch := channelOf(sess, a.Channel)
	msg, err := d.channels.Post(ch, chat.Draft{
		AuthorID: sess.UserID,
		Author:   sess.Username,
		Avatar:   sess.Avatar,
		Role:     sess.Role,
		Content:  a.Content,
		Type:     chat.ParseMessageType(a.Type),
		Image:    a.Image,
		Mentions: d.mentions(a.Content, a.Mentions),
		ReplyTo:  a.ReplyTo,
	})
	if err != nil {
		return nil, err
	}

	d.totalMessages.Add(1)
	_, up := d.profiles.RecordMessage(sess.UserID, d.opts.XPPerMessage)
	d.presence.ClearTyping(sess.UserID)

	outs := []Outbound{send(Room(ch, ""), EventNewMessage, msg)}
	if up != nil {
		outs = append(outs, send(Room(ch, ""), EventLeveledUp, leveledUpPayload{
			UserID:   sess.UserID,
			Username: sess.Username,
			Level:    up.Level,
		}))
	}
	return outs, nil
}

// mentions merges client supplied ids with @name references resolved
// against live sessions. The channel store dedupes the result.
func (d *Dispatcher) mentions(content string, claimed []string) []string {
	out := slices.Clone(claimed)
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		if id, ok := d.registry.FindByUsername(m[1]); ok {
			out = append(out, id)
		}
	}
	return out
}

func (d *Dispatcher) editMessage(sess chat.Session, a *EditMessage) ([]Outbound, error) {
	if err := d.content.Check(a.NewContent); err != nil {
		return nil, err
	}
	ch := channelOf(sess, a.Channel)
	msg, err := d.channels.Edit(ch, a.MessageID, sess.UserID, a.NewContent)
	if err != nil {
		return nil, err
	}
	return []Outbound{send(Room(ch, ""), EventMessageEdited, messageEditedPayload{
		Channel:    ch,
		MessageID:  msg.ID,
		NewContent: msg.Content,
		EditedAt:   *msg.EditedAt,
	})}, nil
}

func (d *Dispatcher) deleteMessage(sess chat.Session, a *DeleteMessage) ([]Outbound, error) {
	ch := channelOf(sess, a.Channel)
	if err := d.channels.Delete(ch, a.MessageID, sess.UserID, sess.Role); err != nil {
		return nil, err
	}
	return []Outbound{send(Room(ch, ""), EventMessageDeleted, messageRefPayload{Channel: ch, MessageID: a.MessageID})}, nil
}

func (d *Dispatcher) addReaction(sess chat.Session, a *AddReaction) ([]Outbound, error) {
	ch := channelOf(sess, a.Channel)
	changed, err := d.channels.AddReaction(ch, a.MessageID, sess.UserID, a.Emoji)
	if err != nil || !changed {
		return nil, err
	}
	return []Outbound{send(Room(ch, ""), EventReactionAdded, reactionPayload{
		Channel:   ch,
		MessageID: a.MessageID,
		Emoji:     a.Emoji,
		UserID:    sess.UserID,
		Username:  sess.Username,
	})}, nil
}

func (d *Dispatcher) removeReaction(sess chat.Session, a *RemoveReaction) ([]Outbound, error) {
	ch := channelOf(sess, a.Channel)
	changed, err := d.channels.RemoveReaction(ch, a.MessageID, sess.UserID, a.Emoji)
	if err != nil || !changed {
		return nil, err
	}
	return []Outbound{send(Room(ch, ""), EventReactionRemoved, reactionPayload{
		Channel:   ch,
		MessageID: a.MessageID,
		Emoji:     a.Emoji,
		UserID:    sess.UserID,
	})}, nil
}

func (d *Dispatcher) typing(sess chat.Session, a *Typing) ([]Outbound, error) {
	ch := channelOf(sess, a.Channel)
	if !d.channels.Exists(ch) {
		return nil, chat.ErrNotFound
	}
	d.presence.SetTyping(sess.UserID, ch)
	return []Outbound{send(Room(ch, sess.ConnID), EventUserTyping, typingPayload{
		UserID:  sess.UserID,
		Author:  sess.Username,
		Channel: ch,
	})}, nil
}

func (d *Dispatcher) sendDM(sess chat.Session, a *SendDM) ([]Outbound, error) {
	dm, err := d.dms.Send(sess.UserID, sess.Username, strings.TrimSpace(a.RecipientID), a.Content, chat.ParseMessageType(a.Type), a.Image)
	if err != nil {
		return nil, err
	}
	return []Outbound{
		send(User(dm.RecipientID), EventNewDM, dm),
		send(Conn(sess.ConnID), EventDMSent, dm),
	}, nil
}

func (d *Dispatcher) dmHistory(sess chat.Session, a *GetDMHistory) ([]Outbound, error) {
	other := strings.TrimSpace(a.UserID)
	if other == "" {
		return nil, chat.ErrInvalidInput
	}
	msgs := d.dms.History(sess.UserID, other)
	if msgs == nil {
		msgs = []chat.DirectMessage{}
	}
	return []Outbound{send(Conn(sess.ConnID), EventDMHistory, dmHistoryPayload{UserID: other, Messages: msgs})}, nil
}

func (d *Dispatcher) joinVoice(sess chat.Session, a *JoinVoice) ([]Outbound, error) {
	rooms, err := d.presence.JoinVoice(sess.UserID, strings.TrimSpace(a.ChannelID))
	if err != nil {
		return nil, err
	}
	return voiceUpdates(rooms), nil
}

func (d *Dispatcher) leaveVoice(sess chat.Session, a *LeaveVoice) ([]Outbound, error) {
	id := strings.TrimSpace(a.ChannelID)
	if id == "" {
		var ok bool
		if id, ok = d.presence.VoiceRoomOf(sess.UserID); !ok {
			return nil, nil
		}
	}
	room, changed, err := d.presence.LeaveVoice(sess.UserID, id)
	if err != nil || !changed {
		return nil, err
	}
	return voiceUpdates([]chat.VoiceRoom{room}), nil
}

func voiceUpdates(rooms []chat.VoiceRoom) []Outbound {
	outs := make([]Outbound, 0, len(rooms))
	for _, r := range rooms {
		outs = append(outs, send(All(), EventVoiceUpdate, voiceUpdatePayload{ChannelID: r.ID, Participants: r.Participants}))
	}
	return outs
}

func (d *Dispatcher) updateStatus(sess chat.Session, a *UpdateStatus) ([]Outbound, error) {
	st, err := d.presence.SetStatus(sess.UserID, a.Status, a.CustomStatus, a.Activity)
	if err != nil {
		return nil, err
	}
	return []Outbound{send(All(), EventUserStatus, statusPayload{
		UserID:       sess.UserID,
		Username:     sess.Username,
		Status:       st.Status,
		CustomStatus: st.CustomStatus,
		Activity:     st.Activity,
	})}, nil
}

func (d *Dispatcher) createPoll(sess chat.Session, a *CreatePoll) ([]Outbound, error) {
	ch := channelOf(sess, a.Channel)
	if !d.channels.Exists(ch) {
		return nil, chat.ErrUnknownChannel
	}
	poll, err := d.polls.Create(ch, a.Question, a.Options, a.Duration, sess.UserID)
	if err != nil {
		return nil, err
	}
	return []Outbound{send(Room(ch, ""), EventNewPoll, poll)}, nil
}

func (d *Dispatcher) votePoll(sess chat.Session, a *VotePoll) ([]Outbound, error) {
	res, err := d.polls.Vote(a.PollID, sess.UserID, a.OptionIndex)
	if err != nil {
		// The attempt that observes the deadline announces the closure.
		if res.Expired {
			return []Outbound{send(Room(res.Poll.ChannelID, ""), EventPollUpdated, res.Poll)}, err
		}
		return nil, err
	}
	return []Outbound{send(Room(res.Poll.ChannelID, ""), EventPollUpdated, res.Poll)}, nil
}

func (d *Dispatcher) closePoll(sess chat.Session, a *ClosePoll) ([]Outbound, error) {
	poll, err := d.polls.Close(a.PollID, sess.UserID, sess.Role)
	if err != nil {
		return nil, err
	}
	return []Outbound{send(Room(poll.ChannelID, ""), EventPollUpdated, poll)}, nil
}

func (d *Dispatcher) pinMessage(sess chat.Session, a *PinMessage) ([]Outbound, error) {
	ch := channelOf(sess, a.Channel)
	changed, err := d.channels.Pin(sess.Role, ch, a.MessageID)
	if err != nil || !changed {
		return nil, err
	}
	return []Outbound{send(Room(ch, ""), EventMessagePinned, messageRefPayload{Channel: ch, MessageID: a.MessageID})}, nil
}

func (d *Dispatcher) unpinMessage(sess chat.Session, a *UnpinMessage) ([]Outbound, error) {
	ch := channelOf(sess, a.Channel)
	changed, err := d.channels.Unpin(sess.Role, ch, a.MessageID)
	if err != nil || !changed {
		return nil, err
	}
	return []Outbound{send(Room(ch, ""), EventMessageUnpinned, messageRefPayload{Channel: ch, MessageID: a.MessageID})}, nil
}

func (d *Dispatcher) reportMessage(sess chat.Session, a *ReportMessage) ([]Outbound, error) {
	target, snapshot := a.UserID, a.Content
	if a.MessageID != "" && (target == "" || snapshot == "") {
		if msg, err := d.channels.Message(channelOf(sess, a.Channel), a.MessageID); err == nil {
			if target == "" {
				target = msg.AuthorID
			}
			if snapshot == "" {
				snapshot = msg.Content
			}
		}
	}

	r, err := d.moderation.Report(sess.UserID, a.MessageID, target, a.Reason, snapshot)
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("report", r.ID).Str("reporter", sess.UserID).Str("reported", target).Msg("report filed")
	return []Outbound{
		send(Moderators(), EventNewReport, r),
		send(Conn(sess.ConnID), EventReportSubmitted, reportSubmittedPayload{ReportID: r.ID}),
	}, nil
}

func (d *Dispatcher) resolveReport(sess chat.Session, a *ResolveReport) ([]Outbound, error) {
	r, err := d.moderation.Resolve(sess.Role, a.ReportID, sess.UserID)
	if err != nil {
		return nil, err
	}
	return []Outbound{send(Moderators(), EventReportResolved, r)}, nil
}

func (d *Dispatcher) muteUser(sess chat.Session, a *MuteUser) ([]Outbound, error) {
	m, err := d.moderation.Mute(sess.Role, a.UserID, a.Duration)
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("user", m.UserID).Str("by", sess.UserID).Time("until", m.ExpiresAt).Msg("user muted")
	return []Outbound{send(All(), EventUserMuted, mutedPayload{
		UserID:   m.UserID,
		MutedBy:  sess.Username,
		Duration: a.Duration,
		Until:    m.ExpiresAt,
	})}, nil
}

func (d *Dispatcher) banUser(sess chat.Session, a *BanUser) ([]Outbound, error) {
	b, err := d.moderation.Ban(sess.Role, a.UserID, a.Reason, sess.Username)
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("user", b.UserID).Str("by", sess.UserID).Str("reason", b.Reason).Msg("user banned")
	return []Outbound{{
		To:         User(b.UserID),
		Event:      Event{Name: EventBanned, Payload: bannedPayload{Reason: b.Reason, BannedBy: b.BannedBy}},
		Disconnect: true,
	}}, nil
}

func (d *Dispatcher) createChannel(sess chat.Session, a *CreateChannel) ([]Outbound, error) {
	ch, err := d.channels.Create(sess.Role, chat.Channel{
		ID:          a.ID,
		Name:        a.Name,
		Icon:        a.Icon,
		Description: a.Desc,
		Category:    a.Category,
	}, sess.UserID)
	if err != nil {
		return nil, err
	}
	return []Outbound{send(All(), EventChannelCreated, ch)}, nil
}

func (d *Dispatcher) deleteChannel(sess chat.Session, a *DeleteChannel) ([]Outbound, error) {
	id := strings.TrimSpace(a.ChannelID)
	if err := d.channels.DeleteChannel(sess.Role, id); err != nil {
		return nil, err
	}
	polls := d.polls.DeleteChannel(id)
	evicted := d.registry.EvictChannel(id)
	d.log.Info().Str("channel", id).Int("polls", polls).Int("evicted", len(evicted)).Msg("channel deleted")
	return []Outbound{send(All(), EventChannelDeleted, channelDeletedPayload{ChannelID: id})}, nil
}

func (d *Dispatcher) getProfile(sess chat.Session, a *GetProfile) ([]Outbound, error) {
	id := strings.TrimSpace(a.UserID)
	if id == "" {
		id = sess.UserID
	}
	p, ok := d.profiles.Get(id)
	if !ok {
		return nil, chat.ErrNotFound
	}
	return []Outbound{send(Conn(sess.ConnID), EventUserProfile, p)}, nil
}

func (d *Dispatcher) getPoll(sess chat.Session, a *GetPoll) ([]Outbound, error) {
	poll, err := d.polls.Get(strings.TrimSpace(a.PollID))
	if err != nil {
		return nil, err
	}
	return []Outbound{send(Conn(sess.ConnID), EventPollUpdated, poll)}, nil
}

func (d *Dispatcher) getReports(sess chat.Session) ([]Outbound, error) {
	if !sess.Role.IsModerator() {
		return nil, chat.ErrUnauthorized
	}
	return []Outbound{send(Conn(sess.ConnID), EventReports, d.moderation.Reports())}, nil
}
