package chat

import (
	"strings"
	"sync"
	"time"
)

// Moderation holds mutes, bans and the report queue. Mutes expire lazily:
// an expired entry is dropped the next time it is looked at.
type Moderation struct {
	mu      sync.Mutex
	mutes   map[string]time.Time
	bans    map[string]Ban
	reports []*Report
	clock   Clock
}

// NewModeration creates empty moderation state.
func NewModeration(clock Clock) *Moderation {
	return &Moderation{
		mutes: make(map[string]time.Time),
		bans:  make(map[string]Ban),
		clock: clock,
	}
}

// Mute silences target for the given number of minutes.
func (m *Moderation) Mute(role Role, target string, minutes int) (Mute, error) {
	if !role.IsModerator() {
		return Mute{}, ErrUnauthorized
	}
	target = strings.TrimSpace(target)
	if target == "" || minutes <= 0 {
		return Mute{}, ErrInvalidInput
	}
	until := m.clock.now().Add(time.Duration(minutes) * time.Minute)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes[target] = until
	return Mute{UserID: target, ExpiresAt: until}, nil
}

// IsMuted reports whether userID is muted now, clearing a lapsed mute.
func (m *Moderation) IsMuted(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.mutes[userID]
	if !ok {
		return false
	}
	if !m.clock.now().Before(until) {
		delete(m.mutes, userID)
		return false
	}
	return true
}

// SweepMutes drops every lapsed mute and returns how many were removed.
func (m *Moderation) SweepMutes() int {
	now := m.clock.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, until := range m.mutes {
		if !now.Before(until) {
			delete(m.mutes, id)
			n++
		}
	}
	return n
}

// Ban permanently bans target.
func (m *Moderation) Ban(role Role, target, reason, by string) (Ban, error) {
	if !role.IsModerator() {
		return Ban{}, ErrUnauthorized
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Ban{}, ErrInvalidInput
	}
	b := Ban{
		UserID:    target,
		Reason:    reason,
		BannedBy:  by,
		Permanent: true,
		CreatedAt: m.clock.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[target] = b
	return b, nil
}

// IsBanned implements BanChecker.
func (m *Moderation) IsBanned(userID string) bool {
	_, ok := m.Banned(userID)
	return ok
}

// Banned returns the ban record of userID.
func (m *Moderation) Banned(userID string) (Ban, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bans[userID]
	return b, ok
}

// Report files a pending report.
func (m *Moderation) Report(reporterID, messageID, targetID, reason, snapshot string) (Report, error) {
	if strings.TrimSpace(targetID) == "" && strings.TrimSpace(messageID) == "" {
		return Report{}, ErrInvalidInput
	}
	now := m.clock.now()
	r := &Report{
		ID:             newID("report", now),
		ReporterID:     reporterID,
		ReportedUserID: targetID,
		MessageID:      messageID,
		Reason:         reason,
		Content:        snapshot,
		CreatedAt:      now,
		Status:         ReportPending,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return *r, nil
}

// Resolve marks a pending report resolved.
func (m *Moderation) Resolve(role Role, reportID, by string) (Report, error) {
	if !role.IsModerator() {
		return Report{}, ErrUnauthorized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.ID != reportID {
			continue
		}
		if r.Status == ReportResolved {
			return *r, ErrInvalidInput
		}
		r.Status = ReportResolved
		r.ResolvedBy = by
		return *r, nil
	}
	return Report{}, ErrNotFound
}

// Reports returns every report filed so far, oldest first.
func (m *Moderation) Reports() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Report, len(m.reports))
	for i, r := range m.reports {
		out[i] = *r
	}
	return out
}
