package daemon

import (
	"sync"
	"time"
)

// tickLog keeps the wall-clock times of the most recent ticks and notices
// when ticks stop arriving, which happens while the machine sleeps.
type tickLog struct {
	mu       sync.Mutex
	max      int
	interval time.Duration
	ticks    []time.Time
}

func newTickLog(max int) *tickLog {
	return &tickLog{max: max, interval: time.Minute}
}

// SetInterval changes the expected spacing of ticks.
func (l *tickLog) SetInterval(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = d
}

// Record appends t. It returns the time since the previous tick when more
// than two intervals passed in between, and 0 otherwise.
func (l *tickLog) Record(t time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Wall clock only: the monotonic clock stops during suspend.
	t = t.Round(0)

	var gap time.Duration
	if n := len(l.ticks); n > 0 && l.interval > 0 {
		if d := t.Sub(l.ticks[n-1]); d > 2*l.interval {
			gap = d
		}
	}

	if len(l.ticks) >= l.max {
		l.ticks = l.ticks[1:]
	}
	l.ticks = append(l.ticks, t)
	return gap
}

// Times returns the recorded ticks in RFC3339 format, oldest first.
func (l *tickLog) Times() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.ticks))
	for _, t := range l.ticks {
		out = append(out, t.Format(time.RFC3339))
	}
	return out
}
