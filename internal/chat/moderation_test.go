package chat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/aniconnect/internal/chat"
)

func TestMuteExpiresLazily(t *testing.T) {
	clk := newFakeClock()
	m := chat.NewModeration(clk.Clock())

	_, err := m.Mute(chat.RoleMember, "u1", 5)
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
	assert.False(t, m.IsMuted("u1"))

	mute, err := m.Mute(chat.RoleModerator, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(5*time.Minute), mute.ExpiresAt)
	assert.True(t, m.IsMuted("u1"))

	clk.Advance(5*time.Minute - time.Second)
	assert.True(t, m.IsMuted("u1"))

	clk.Advance(time.Second)
	assert.False(t, m.IsMuted("u1"))
}

func TestMuteValidation(t *testing.T) {
	m := chat.NewModeration(nil)

	_, err := m.Mute(chat.RoleModerator, "  ", 5)
	assert.ErrorIs(t, err, chat.ErrInvalidInput)

	_, err = m.Mute(chat.RoleModerator, "u1", 0)
	assert.ErrorIs(t, err, chat.ErrInvalidInput)
}

func TestSweepMutesDropsOnlyLapsed(t *testing.T) {
	clk := newFakeClock()
	m := chat.NewModeration(clk.Clock())

	_, err := m.Mute(chat.RoleModerator, "short", 1)
	require.NoError(t, err)
	_, err = m.Mute(chat.RoleModerator, "long", 60)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.SweepMutes())
	assert.Equal(t, 0, m.SweepMutes())
	assert.True(t, m.IsMuted("long"))
}

func TestBan(t *testing.T) {
	m := chat.NewModeration(nil)

	_, err := m.Ban(chat.RoleMember, "u1", "spam", "u2")
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
	assert.False(t, m.IsBanned("u1"))

	ban, err := m.Ban(chat.RoleModerator, "u1", "flooding", "mod")
	require.NoError(t, err)
	assert.True(t, ban.Permanent)
	assert.True(t, m.IsBanned("u1"))

	got, ok := m.Banned("u1")
	require.True(t, ok)
	assert.Equal(t, "flooding", got.Reason)
	assert.Equal(t, "mod", got.BannedBy)
}

func TestReportLifecycle(t *testing.T) {
	m := chat.NewModeration(nil)

	_, err := m.Report("reporter", "", "", "no target", "")
	assert.ErrorIs(t, err, chat.ErrInvalidInput)

	r, err := m.Report("reporter", "msg_1", "u9", "rude", "snapshot text")
	require.NoError(t, err)
	assert.Equal(t, chat.ReportPending, r.Status)
	assert.Equal(t, "snapshot text", r.Content)

	_, err = m.Resolve(chat.RoleMember, r.ID, "u1")
	assert.ErrorIs(t, err, chat.ErrUnauthorized)

	resolved, err := m.Resolve(chat.RoleModerator, r.ID, "mod")
	require.NoError(t, err)
	assert.Equal(t, chat.ReportResolved, resolved.Status)
	assert.Equal(t, "mod", resolved.ResolvedBy)

	_, err = m.Resolve(chat.RoleModerator, r.ID, "mod")
	assert.ErrorIs(t, err, chat.ErrInvalidInput)

	_, err = m.Resolve(chat.RoleModerator, "report_missing", "mod")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	reports := m.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, chat.ReportResolved, reports[0].Status)
}
