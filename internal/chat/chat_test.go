package chat_test

import (
	"time"

	"github.com/Tyrowin/aniconnect/internal/chat"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) Clock() chat.Clock { return c.Now }

func textDraft(author, content string) chat.Draft {
	return chat.Draft{
		AuthorID: author,
		Author:   author,
		Role:     chat.RoleMember,
		Content:  content,
		Type:     chat.MessageText,
	}
}
