package streamclient

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"hazard-notification-sse/internal/domain/notification"
)

const (
	DefaultInboxCapacity = 10
	DefaultReadDelay     = 5 * time.Second
)

// Entry is one notification shown in the tray
type Entry struct {
	ID           int
	Notification *notification.Notification
	ReceivedAt   time.Time
	Read         bool
}

// Inbox keeps the most recent notifications, newest first. Each entry is
// marked read a fixed delay after it arrives unless marked read earlier.
type Inbox struct {
	clock     clockwork.Clock
	readDelay time.Duration
	capacity  int

	mu      sync.Mutex
	entries []*Entry
	timers  map[int]clockwork.Timer
	nextID  int
}

var _ Handler = (*Inbox)(nil)

func NewInbox(clock clockwork.Clock, readDelay time.Duration) *Inbox {
	return &Inbox{
		clock:     clock,
		readDelay: readDelay,
		capacity:  DefaultInboxCapacity,
		timers:    make(map[int]clockwork.Timer),
	}
}

func (i *Inbox) HandleNotification(n *notification.Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.nextID++
	entry := &Entry{ID: i.nextID, Notification: n, ReceivedAt: i.clock.Now()}
	i.entries = append([]*Entry{entry}, i.entries...)

	for len(i.entries) > i.capacity {
		dropped := i.entries[len(i.entries)-1]
		i.entries = i.entries[:len(i.entries)-1]
		i.stopTimerLocked(dropped.ID)
	}

	id := entry.ID
	i.timers[id] = i.clock.AfterFunc(i.readDelay, func() { i.MarkRead(id) })
}

// MarkRead marks an entry read. It reports whether the entry was still held.
func (i *Inbox) MarkRead(id int) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.stopTimerLocked(id)
	for _, e := range i.entries {
		if e.ID == id {
			e.Read = true
			return true
		}
	}
	return false
}

// Entries returns a copy of the tray, newest first
func (i *Inbox) Entries() []Entry {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]Entry, len(i.entries))
	for idx, e := range i.entries {
		out[idx] = *e
	}
	return out
}

func (i *Inbox) Unread() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := 0
	for _, e := range i.entries {
		if !e.Read {
			n++
		}
	}
	return n
}

func (i *Inbox) stopTimerLocked(id int) {
	if t, ok := i.timers[id]; ok {
		t.Stop()
		delete(i.timers, id)
	}
}
