package streamclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazard-notification-sse/internal/domain/notification"
)

func TestInbox_KeepsMostRecent(t *testing.T) {
	inbox := NewInbox(clockwork.NewFakeClock(), DefaultReadDelay)

	for i := 1; i <= 12; i++ {
		inbox.HandleNotification(notification.Test(fmt.Sprintf("n-%d", i), time.Now()))
	}

	entries := inbox.Entries()
	require.Len(t, entries, DefaultInboxCapacity)
	assert.Equal(t, "n-12", entries[0].Notification.Text("message"))
	assert.Equal(t, "n-3", entries[len(entries)-1].Notification.Text("message"))
	assert.Equal(t, 10, inbox.Unread())
}

func TestInbox_AutoReadAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inbox := NewInbox(clock, DefaultReadDelay)

	inbox.HandleNotification(notification.Test("first", clock.Now()))
	assert.Equal(t, 1, inbox.Unread())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(DefaultReadDelay - time.Second)
	assert.Equal(t, 1, inbox.Unread())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return inbox.Unread() == 0 }, time.Second, time.Millisecond)
	assert.True(t, inbox.Entries()[0].Read)
}

func TestInbox_MarkRead(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inbox := NewInbox(clock, DefaultReadDelay)

	inbox.HandleNotification(notification.Test("a", clock.Now()))
	inbox.HandleNotification(notification.Test("b", clock.Now()))

	entries := inbox.Entries()
	assert.True(t, inbox.MarkRead(entries[0].ID))
	assert.Equal(t, 1, inbox.Unread())
	assert.False(t, inbox.MarkRead(999))

	// the explicit read stopped that entry's timer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}
