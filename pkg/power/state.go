package power

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/events"
)

// State is the composite view of the machine.
type State struct {
	OnBattery  bool `json:"onBattery"`
	LidClosed  bool `json:"lidClosed"`
	LidPresent bool `json:"lidPresent"`
	Docked     bool `json:"docked"`
}

// Properties reads the system-wide booleans. Implementations return false
// when the answering service is unreachable.
type Properties interface {
	OnBattery(ctx context.Context) bool
	LidIsPresent(ctx context.Context) bool
	LidIsClosed(ctx context.Context) bool
	IsDocked(ctx context.Context) bool
}

// Poll reads a fresh State from p.
func Poll(ctx context.Context, p Properties) State {
	if p == nil {
		return State{}
	}
	return State{
		OnBattery:  p.OnBattery(ctx),
		LidClosed:  p.LidIsClosed(ctx),
		LidPresent: p.LidIsPresent(ctx),
		Docked:     p.IsDocked(ctx),
	}
}

// Tracker turns polled states into edge events. Only OnBattery and
// LidClosed produce events; they are compared against the last emitted
// value, which starts out false.
type Tracker struct {
	bus     *events.Bus
	emitted State
	last    State
}

func NewTracker(bus *events.Bus) *Tracker {
	return &Tracker{bus: bus}
}

// Observe records s and emits an event for every boolean that differs
// from what was last emitted.
func (t *Tracker) Observe(s State) {
	t.last = s

	if s.LidClosed != t.emitted.LidClosed {
		t.emitted.LidClosed = s.LidClosed
		if s.LidClosed {
			logrus.Info("lid closed")
			t.bus.Emit(events.LidClosed, nil)
		} else {
			logrus.Info("lid opened")
			t.bus.Emit(events.LidOpened, nil)
		}
	}

	if s.OnBattery != t.emitted.OnBattery {
		t.emitted.OnBattery = s.OnBattery
		if s.OnBattery {
			logrus.Info("switched to battery")
			t.bus.Emit(events.SwitchedToBattery, nil)
		} else {
			logrus.Info("switched to AC")
			t.bus.Emit(events.SwitchedToAC, nil)
		}
	}
}

// Last returns the most recently observed state.
func (t *Tracker) Last() State { return t.last }
