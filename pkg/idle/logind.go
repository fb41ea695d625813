package idle

import (
	"context"
	"fmt"
	"time"

	"github.com/charlie0129/powerd/pkg/sysbus"
)

// Logind derives idle time from logind's IdleHint and IdleSinceHint, which
// cover sessions without an X display.
type Logind struct {
	bus     *sysbus.Bus
	timeout time.Duration
	now     func() time.Time
}

func NewLogind(bus *sysbus.Bus, timeout time.Duration) *Logind {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Logind{bus: bus, timeout: timeout, now: time.Now}
}

func (s *Logind) IdleMinutes() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	d := sysbus.Logind
	hint, err := s.bus.Property(ctx, d.Dest, d.Path, d.Iface, "IdleHint")
	if err != nil {
		return 0, fmt.Errorf("failed to read IdleHint: %w", err)
	}
	since, err := s.bus.Property(ctx, d.Dest, d.Path, d.Iface, "IdleSinceHint")
	if err != nil {
		return 0, fmt.Errorf("failed to read IdleSinceHint: %w", err)
	}
	idle, _ := hint.Value().(bool)
	usec, _ := since.Value().(uint64)
	return minutes(idleFor(idle, usec, s.now())), nil
}

// idleFor returns how long a session has been idle given logind's hints.
// usec is microseconds since the epoch.
func idleFor(idle bool, usec uint64, now time.Time) time.Duration {
	if !idle || usec == 0 {
		return 0
	}
	return now.Sub(time.UnixMicro(int64(usec)))
}
