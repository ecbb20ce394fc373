// Package dispatch routes decoded client actions to the chat stores and
// fans the resulting events out to the right connections.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/aniconnect/internal/chat"
	"github.com/Tyrowin/aniconnect/internal/ratelimit"
)

// DefaultTypingTTL is how long a typing indicator stays meaningful.
const DefaultTypingTTL = 5 * time.Second

// Transport delivers frames to connections. Send must not block.
type Transport interface {
	Send(connID string, payload []byte) bool
	Close(connID string)
}

// Stores groups the state the dispatcher coordinates.
type Stores struct {
	Registry   *chat.Registry
	Moderation *chat.Moderation
	Channels   *chat.ChannelStore
	Polls      *chat.PollStore
	DMs        *chat.DMStore
	Profiles   *chat.Profiles
	Presence   *chat.Presence
	Content    *chat.ContentRules
}

// NewStores wires a fresh set of stores with the default channels and voice
// rooms.
func NewStores(clock chat.Clock, logCap int, blockedWords []string) Stores {
	mod := chat.NewModeration(clock)
	return Stores{
		Registry:   chat.NewRegistry(mod, clock),
		Moderation: mod,
		Channels:   chat.NewChannelStore(chat.DefaultChannels(), logCap, clock),
		Polls:      chat.NewPollStore(clock),
		DMs:        chat.NewDMStore(clock),
		Profiles:   chat.NewProfiles(clock),
		Presence:   chat.NewPresence(chat.DefaultVoiceRooms(), clock),
		Content:    chat.NewContentRules(blockedWords, chat.DefaultMaxContentLength),
	}
}

// Options tune dispatcher behaviour.
type Options struct {
	XPPerMessage int
	// SendLimit throttles send_message per user; nil disables it.
	SendLimit *ratelimit.Keyed
	// ModeratorKeyHash is a bcrypt hash. When set, a moderator login must
	// present the matching key or it is downgraded to member.
	ModeratorKeyHash []byte
	TypingTTL        time.Duration
}

// Dispatcher applies client actions to the stores and emits the resulting
// events. It is safe for concurrent use; each store serializes its own
// mutations.
type Dispatcher struct {
	registry   *chat.Registry
	moderation *chat.Moderation
	channels   *chat.ChannelStore
	polls      *chat.PollStore
	dms        *chat.DMStore
	profiles   *chat.Profiles
	presence   *chat.Presence
	content    *chat.ContentRules

	// sessions orders logins against disconnect cleanup so the registry
	// and the online set change together.
	sessions sync.Mutex

	transport     Transport
	log           zerolog.Logger
	opts          Options
	totalMessages atomic.Int64
}

// New creates a dispatcher delivering through transport.
func New(stores Stores, transport Transport, logger zerolog.Logger, opts Options) *Dispatcher {
	if opts.XPPerMessage <= 0 {
		opts.XPPerMessage = chat.DefaultXPPerMessage
	}
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}
	if stores.Content == nil {
		stores.Content = chat.NewContentRules(chat.DefaultBlockedWords, chat.DefaultMaxContentLength)
	}
	return &Dispatcher{
		registry:   stores.Registry,
		moderation: stores.Moderation,
		channels:   stores.Channels,
		polls:      stores.Polls,
		dms:        stores.DMs,
		profiles:   stores.Profiles,
		presence:   stores.Presence,
		content:    stores.Content,
		transport:  transport,
		log:        logger.With().Str("component", "dispatcher").Logger(),
		opts:       opts,
	}
}

// Dispatch decodes one raw frame from connID and handles it.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.log.Debug().Str("conn", connID).Err(err).Msg("invalid frame")
		return fmt.Errorf("decode frame: %v: %w", err, chat.ErrInvalidInput)
	}
	a, err := Decode(env)
	if err != nil {
		d.log.Debug().Str("conn", connID).Err(err).Msg("rejected frame")
		return err
	}
	return d.Handle(ctx, connID, a)
}

// Handle applies one action. Failures never touch other sessions: the
// error is logged, surfaced to the caller as an error event when the client
// should see it, and returned.
func (d *Dispatcher) Handle(ctx context.Context, connID string, a Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		outs []Outbound
		err  error
	)
	switch act := a.(type) {
	case *Login:
		outs, err = d.login(connID, act)
	case *Heartbeat:
		d.registry.Touch(connID)
	default:
		sess, ok := d.registry.Get(connID)
		if !ok {
			err = chat.ErrNotAuthenticated
			break
		}
		outs, err = d.handleSession(sess, a)
	}

	d.emit(outs)
	if err != nil {
		d.reject(connID, a, err)
	}
	return err
}

func (d *Dispatcher) handleSession(sess chat.Session, a Action) ([]Outbound, error) {
	switch act := a.(type) {
	case *JoinChannel:
		return d.joinChannel(sess, act)
	case *SendMessage:
		return d.sendMessage(sess, act)
	case *EditMessage:
		return d.editMessage(sess, act)
	case *DeleteMessage:
		return d.deleteMessage(sess, act)
	case *AddReaction:
		return d.addReaction(sess, act)
	case *RemoveReaction:
		return d.removeReaction(sess, act)
	case *Typing:
		return d.typing(sess, act)
	case *SendDM:
		return d.sendDM(sess, act)
	case *GetDMHistory:
		return d.dmHistory(sess, act)
	case *JoinVoice:
		return d.joinVoice(sess, act)
	case *LeaveVoice:
		return d.leaveVoice(sess, act)
	case *UpdateStatus:
		return d.updateStatus(sess, act)
	case *CreatePoll:
		return d.createPoll(sess, act)
	case *VotePoll:
		return d.votePoll(sess, act)
	case *ClosePoll:
		return d.closePoll(sess, act)
	case *PinMessage:
		return d.pinMessage(sess, act)
	case *UnpinMessage:
		return d.unpinMessage(sess, act)
	case *ReportMessage:
		return d.reportMessage(sess, act)
	case *ResolveReport:
		return d.resolveReport(sess, act)
	case *MuteUser:
		return d.muteUser(sess, act)
	case *BanUser:
		return d.banUser(sess, act)
	case *CreateChannel:
		return d.createChannel(sess, act)
	case *DeleteChannel:
		return d.deleteChannel(sess, act)
	case *GetStats:
		return []Outbound{send(Conn(sess.ConnID), EventServerStats, d.Stats())}, nil
	case *GetLeaderboard:
		return []Outbound{send(Conn(sess.ConnID), EventLeaderboard, d.Leaderboard())}, nil
	case *GetProfile:
		return d.getProfile(sess, act)
	case *GetPoll:
		return d.getPoll(sess, act)
	case *GetReports:
		return d.getReports(sess)
	default:
		return nil, fmt.Errorf("unhandled action %T: %w", a, chat.ErrInvalidInput)
	}
}

// emit delivers each outbound event to its resolved audience.
func (d *Dispatcher) emit(outs []Outbound) {
	for _, o := range outs {
		payload, err := o.Event.Encode()
		if err != nil {
			d.log.Error().Err(err).Str("event", o.Event.Name).Msg("encode event")
			continue
		}
		conns := d.resolve(o.To)
		for _, c := range conns {
			if !d.transport.Send(c, payload) {
				d.log.Debug().Str("conn", c).Str("event", o.Event.Name).Msg("delivery dropped")
			}
		}
		if o.Disconnect {
			for _, c := range conns {
				d.transport.Close(c)
			}
		}
	}
}

// visible lists the failures a client is told about. Everything else is a
// silent no-op on the wire.
var visible = map[chat.Code]bool{
	chat.CodeMuted:           true,
	chat.CodeContentRejected: true,
	chat.CodeRateLimited:     true,
	chat.CodeInvalidPoll:     true,
	chat.CodePollClosed:      true,
	chat.CodeUnknownChannel:  true,
}

func (d *Dispatcher) reject(connID string, a Action, err error) {
	code := chat.CodeOf(err)
	ev := d.log.Debug()
	if code == "" {
		ev = d.log.Warn()
	}
	ev.Str("conn", connID).Str("event", a.Event()).Err(err).Msg("action rejected")

	if !visible[code] {
		return
	}
	var ce *chat.Error
	errors.As(err, &ce)
	d.emit([]Outbound{send(Conn(connID), EventError, errorPayload{
		Code:    code,
		Message: ce.Message,
		Event:   a.Event(),
	})})
}

// Disconnect runs the cleanup for a closed connection: the session is
// removed, the user leaves any voice room, and presence is rebroadcast.
// Calling it twice is harmless.
func (d *Dispatcher) Disconnect(connID string) {
	d.sessions.Lock()
	sess, ok := d.registry.Remove(connID)
	if !ok {
		d.sessions.Unlock()
		return
	}
	online, rooms := d.presence.Disconnect(connID, sess.UserID)
	d.sessions.Unlock()

	outs := make([]Outbound, 0, len(rooms)+1)
	for _, r := range rooms {
		outs = append(outs, send(All(), EventVoiceUpdate, voiceUpdatePayload{ChannelID: r.ID, Participants: r.Participants}))
	}
	outs = append(outs, send(All(), EventOnlineUsers, online))
	d.emit(outs)

	d.log.Info().Str("conn", connID).Str("user", sess.UserID).Int("online", online.Count).Msg("session closed")
}

// Sweep clears state that otherwise expires lazily. Nothing depends on it
// running; it only tidies memory and pushes poll closures to clients.
func (d *Dispatcher) Sweep() {
	mutes := d.moderation.SweepMutes()
	typing := d.presence.PruneTyping(d.opts.TypingTTL)
	buckets := 0
	if d.opts.SendLimit != nil {
		buckets = d.opts.SendLimit.Prune()
	}

	closed := d.polls.ExpireDue()
	outs := make([]Outbound, 0, len(closed))
	for _, p := range closed {
		outs = append(outs, send(Room(p.ChannelID, ""), EventPollUpdated, p))
	}
	d.emit(outs)

	d.log.Debug().
		Int("mutes", mutes).
		Int("typing", typing).
		Int("buckets", buckets).
		Int("polls", len(closed)).
		Msg("sweep finished")
}

// Stats returns aggregate counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		TotalMessages: d.totalMessages.Load(),
		TotalUsers:    d.profiles.Count(),
		ActiveUsers:   d.registry.Count(),
		Channels:      d.channels.Count(),
		VoiceChannels: len(d.presence.VoiceRooms()),
	}
}

// Leaderboard returns the top profiles.
func (d *Dispatcher) Leaderboard() []LeaderboardEntry {
	top := d.profiles.Leaderboard()
	out := make([]LeaderboardEntry, len(top))
	for i, p := range top {
		out[i] = LeaderboardEntry{UserID: p.UserID, Level: p.Level, XP: p.XP, MessageCount: p.MessageCount}
	}
	return out
}

// Channels lists channel metadata.
func (d *Dispatcher) Channels() []chat.Channel {
	return d.channels.List()
}

// VoiceRooms lists voice rooms with participants.
func (d *Dispatcher) VoiceRooms() []chat.VoiceRoom {
	return d.presence.VoiceRooms()
}
