package chat

import (
	"sort"
	"sync"
)

// DefaultXPPerMessage is awarded for each stored channel message.
const DefaultXPPerMessage = 10

const leaderboardSize = 10

// LevelUp reports that an award crossed one or more level thresholds.
type LevelUp struct {
	UserID string
	Level  int
}

// Profiles stores leveling records keyed by user id.
type Profiles struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	clock    Clock
}

// NewProfiles creates an empty profile store.
func NewProfiles(clock Clock) *Profiles {
	return &Profiles{profiles: make(map[string]*Profile), clock: clock}
}

// Ensure returns the profile of userID, creating a level 1 profile if absent.
func (p *Profiles) Ensure(userID string) Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.ensureLocked(userID)
}

func (p *Profiles) ensureLocked(userID string) *Profile {
	pr, ok := p.profiles[userID]
	if !ok {
		pr = &Profile{UserID: userID, Level: 1, JoinedAt: p.clock.now()}
		p.profiles[userID] = pr
	}
	return pr
}

// Get returns the profile of userID without creating one.
func (p *Profiles) Get(userID string) (Profile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.profiles[userID]
	if !ok {
		return Profile{}, false
	}
	return *pr, true
}

// RecordMessage counts one sent message and awards xp. The returned LevelUp
// is non-nil when the level changed.
func (p *Profiles) RecordMessage(userID string, xp int) (Profile, *LevelUp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr := p.ensureLocked(userID)
	pr.MessageCount++
	before := pr.Level
	applyXP(pr, xp)
	if pr.Level == before {
		return *pr, nil
	}
	return *pr, &LevelUp{UserID: userID, Level: pr.Level}
}

// applyXP adds amount and carries over every crossed threshold of level*100.
func applyXP(pr *Profile, amount int) {
	if amount <= 0 {
		return
	}
	pr.XP += amount
	for pr.XP >= pr.Level*100 {
		pr.XP -= pr.Level * 100
		pr.Level++
	}
}

// Count returns how many users have ever logged in.
func (p *Profiles) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.profiles)
}

// Leaderboard returns the top ten profiles by level, then xp.
func (p *Profiles) Leaderboard() []Profile {
	p.mu.Lock()
	out := make([]Profile, 0, len(p.profiles))
	for _, pr := range p.profiles {
		out = append(out, *pr)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > leaderboardSize {
		out = out[:leaderboardSize]
	}
	return out
}
