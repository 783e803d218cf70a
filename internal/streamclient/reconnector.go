package streamclient

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Reconnector owns the single outstanding reconnect timer. Scheduling while
// a timer is pending returns the pending one instead of starting another.
type Reconnector struct {
	clock clockwork.Clock
	delay time.Duration

	mu    sync.Mutex
	timer clockwork.Timer
	fire  chan struct{}
}

func NewReconnector(clock clockwork.Clock, delay time.Duration) *Reconnector {
	return &Reconnector{clock: clock, delay: delay}
}

// Schedule arms the timer if none is pending. The returned channel closes
// when the delay elapses; it never closes if the timer is cancelled first.
func (r *Reconnector) Schedule() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		return r.fire
	}

	fire := make(chan struct{})
	r.fire = fire
	r.timer = r.clock.AfterFunc(r.delay, func() {
		r.mu.Lock()
		if r.fire == fire {
			r.timer = nil
			r.fire = nil
		}
		r.mu.Unlock()
		close(fire)
	})
	return fire
}

// Cancel stops a pending timer. It reports whether one was pending.
func (r *Reconnector) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer == nil {
		return false
	}
	r.timer.Stop()
	r.timer = nil
	r.fire = nil
	return true
}

func (r *Reconnector) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}
