package power

// IdleSource reports how long the user has been idle, in whole minutes.
type IdleSource interface {
	IdleMinutes() (int, error)
}

// IdleScheduler counts ticks towards an idle action.
type IdleScheduler struct {
	count int
}

// Tick advances the scheduler by one period. It reports true when the
// policy's action must fire now, in which case the counter is already reset.
func (s *IdleScheduler) Tick(idleMinutes int, p IdlePolicy, inhibited bool) bool {
	if p.Timeout > 0 &&
		s.count >= p.Timeout &&
		idleMinutes >= p.Timeout &&
		!inhibited {
		s.count = 0
		return true
	}
	s.count++
	return false
}

// Reset zeroes the counter.
func (s *IdleScheduler) Reset() { s.count = 0 }

// Count returns the number of ticks since the last reset.
func (s *IdleScheduler) Count() int { return s.count }
