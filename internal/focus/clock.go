package focus

import (
	"sort"
	"sync"
	"time"
)

// Clock schedules deferred callbacks against wall time
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d. The returned function cancels it if it
	// has not fired yet.
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// SystemClock is the real clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// FakeClock only moves when Advance is called. Callbacks run synchronously
// inside Advance, in deadline order.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	at        time.Time
	seq       int
	f         func()
	cancelled bool
}

// NewFakeClock starts a fake clock at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	ft := &fakeTimer{at: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, ft)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		ft.cancelled = true
	}
}

// Pending counts scheduled callbacks that have neither fired nor been cancelled
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ft := range c.pending {
		if !ft.cancelled {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every callback that comes due,
// including ones scheduled by callbacks during the advance.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		ft := c.next(target)
		if ft == nil {
			break
		}
		ft.f()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// next pops the earliest live timer due at or before target
func (c *FakeClock) next(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.pending[:0]
	for _, ft := range c.pending {
		if !ft.cancelled {
			live = append(live, ft)
		}
	}
	c.pending = live
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].at.Equal(c.pending[j].at) {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].at.Before(c.pending[j].at)
	})
	if len(c.pending) == 0 || c.pending[0].at.After(target) {
		return nil
	}
	ft := c.pending[0]
	c.pending = c.pending[1:]
	if ft.at.After(c.now) {
		c.now = ft.at
	}
	return ft
}
