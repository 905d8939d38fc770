package album

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultQuietPeriod is how long a group must stay silent before it flushes.
const DefaultQuietPeriod = 5 * time.Second

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type slot struct {
	timer Timer
}

// Debouncer keeps one armed timer per key. Each Touch replaces the previous
// timer, so a burst produces a single fire once it goes quiet.
type Debouncer struct {
	quiet   time.Duration
	clock   Clock
	slots   *xsync.MapOf[string, *slot]
	stopped atomic.Bool
}

func NewDebouncer(quiet time.Duration, clock Clock) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Debouncer{
		quiet: quiet,
		clock: clock,
		slots: xsync.NewMapOf[string, *slot](),
	}
}

// Touch cancels any timer armed for key and arms a new one that calls
// onFire(key) after the quiet period. Touch after Stop is ignored.
func (d *Debouncer) Touch(key string, onFire func(key string)) {
	if d.stopped.Load() {
		return
	}
	d.slots.Compute(key, func(old *slot, loaded bool) (*slot, bool) {
		if loaded {
			old.timer.Stop()
		}
		s := &slot{}
		s.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(key, s, onFire) })
		return s, false
	})
}

// fire runs onFire only if s is still the armed slot for key. A timer that
// lost the Stop race against a newer Touch finds a different slot and exits.
func (d *Debouncer) fire(key string, s *slot, onFire func(string)) {
	current := false
	d.slots.Compute(key, func(old *slot, loaded bool) (*slot, bool) {
		if !loaded {
			return old, true
		}
		if old == s {
			current = true
			return old, true
		}
		return old, false
	})
	if current && !d.stopped.Load() {
		onFire(key)
	}
}

// Pending returns the number of armed timers.
func (d *Debouncer) Pending() int {
	return d.slots.Size()
}

// Stop cancels every armed timer. Later Touch calls are ignored.
func (d *Debouncer) Stop() {
	d.stopped.Store(true)
	d.slots.Range(func(key string, s *slot) bool {
		s.timer.Stop()
		d.slots.Delete(key)
		return true
	})
}
