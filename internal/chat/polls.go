package chat

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

const maxPollOptions = 10

type pollState struct {
	mu   sync.Mutex
	poll Poll
}

// expireLocked flips the poll inactive once its deadline has passed and
// reports whether it did so just now.
func (p *pollState) expireLocked(now time.Time) bool {
	if p.poll.Active && !now.Before(p.poll.ExpiresAt) {
		p.poll.Active = false
		return true
	}
	return false
}

func (p *pollState) snapshotLocked() Poll {
	out := p.poll
	out.Options = make([]PollOption, len(p.poll.Options))
	for i, o := range p.poll.Options {
		out.Options[i] = PollOption{Text: o.Text, Voters: slices.Clone(o.Voters)}
		if out.Options[i].Voters == nil {
			out.Options[i].Voters = []string{}
		}
	}
	return out
}

// VoteResult is the outcome of a vote attempt.
type VoteResult struct {
	Poll Poll
	// Expired is set when this attempt observed the deadline and closed the poll.
	Expired bool
}

// PollStore owns polls. Each poll has its own mutex, so concurrent votes on
// one poll serialize while votes on different polls do not contend.
type PollStore struct {
	mu    sync.RWMutex
	polls map[string]*pollState
	clock Clock
}

// NewPollStore creates an empty poll store.
func NewPollStore(clock Clock) *PollStore {
	return &PollStore{polls: make(map[string]*pollState), clock: clock}
}

// Create opens a poll in channelID. Blank options are ignored; at least two
// must remain and the duration must be at least one minute.
func (s *PollStore) Create(channelID, question string, options []string, durationMinutes int, creatorID string) (Poll, error) {
	question = strings.TrimSpace(question)
	opts := make([]PollOption, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, PollOption{Text: o, Voters: []string{}})
		}
	}
	if question == "" || len(opts) < 2 || len(opts) > maxPollOptions || durationMinutes < 1 {
		return Poll{}, ErrInvalidPoll
	}

	now := s.clock.now()
	p := &pollState{poll: Poll{
		ID:        newID("poll", now),
		ChannelID: channelID,
		Question:  question,
		Options:   opts,
		CreatedBy: creatorID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(durationMinutes) * time.Minute),
		Active:    true,
	}}

	out := p.snapshotLocked()

	s.mu.Lock()
	s.polls[p.poll.ID] = p
	s.mu.Unlock()

	return out, nil
}

func (s *PollStore) get(pollID string) (*pollState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[pollID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Get returns a poll snapshot, closing it first if its deadline has passed.
func (s *PollStore) Get(pollID string) (Poll, error) {
	p, err := s.get(pollID)
	if err != nil {
		return Poll{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireLocked(s.clock.now())
	return p.snapshotLocked(), nil
}

// Vote moves userID's single vote to optionIndex.
func (s *PollStore) Vote(pollID, userID string, optionIndex int) (VoteResult, error) {
	p, err := s.get(pollID)
	if err != nil {
		return VoteResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if expired := p.expireLocked(s.clock.now()); expired || !p.poll.Active {
		return VoteResult{Poll: p.snapshotLocked(), Expired: expired}, ErrPollClosed
	}
	if optionIndex < 0 || optionIndex >= len(p.poll.Options) {
		return VoteResult{}, ErrInvalidOption
	}

	for i := range p.poll.Options {
		o := &p.poll.Options[i]
		if j := slices.Index(o.Voters, userID); j >= 0 {
			o.Voters = slices.Delete(o.Voters, j, j+1)
		}
	}
	o := &p.poll.Options[optionIndex]
	o.Voters = append(o.Voters, userID)
	return VoteResult{Poll: p.snapshotLocked()}, nil
}

// Close ends a poll early. The creator and moderators may close it.
func (s *PollStore) Close(pollID, requesterID string, role Role) (Poll, error) {
	p, err := s.get(pollID)
	if err != nil {
		return Poll{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.poll.CreatedBy != requesterID && !role.IsModerator() {
		return Poll{}, ErrUnauthorized
	}
	if !p.poll.Active {
		return p.snapshotLocked(), ErrPollClosed
	}
	p.poll.Active = false
	return p.snapshotLocked(), nil
}

// ExpireDue closes every poll whose deadline has passed and returns them.
func (s *PollStore) ExpireDue() []Poll {
	s.mu.RLock()
	states := make([]*pollState, 0, len(s.polls))
	for _, p := range s.polls {
		states = append(states, p)
	}
	s.mu.RUnlock()

	now := s.clock.now()
	var out []Poll
	for _, p := range states {
		p.mu.Lock()
		if p.expireLocked(now) {
			out = append(out, p.snapshotLocked())
		}
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InChannel returns the polls of channelID, oldest first.
func (s *PollStore) InChannel(channelID string) []Poll {
	s.mu.RLock()
	var states []*pollState
	for _, p := range s.polls {
		states = append(states, p)
	}
	s.mu.RUnlock()

	now := s.clock.now()
	var out []Poll
	for _, p := range states {
		p.mu.Lock()
		if p.poll.ChannelID == channelID {
			p.expireLocked(now)
			out = append(out, p.snapshotLocked())
		}
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// DeleteChannel drops every poll of channelID.
func (s *PollStore) DeleteChannel(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.polls {
		p.mu.Lock()
		match := p.poll.ChannelID == channelID
		p.mu.Unlock()
		if match {
			delete(s.polls, id)
			n++
		}
	}
	return n
}
