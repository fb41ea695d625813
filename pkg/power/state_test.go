package power

import (
	"context"
	"testing"

	"github.com/charlie0129/powerd/pkg/events"
)

func TestTrackerEdges(t *testing.T) {
	tests := []struct {
		name     string
		observed []State
		want     map[events.Kind]int
	}{
		{
			name:     "repeated battery report fires once",
			observed: []State{{OnBattery: true}, {OnBattery: true}},
			want:     map[events.Kind]int{events.SwitchedToBattery: 1},
		},
		{
			name:     "initial false state is silent",
			observed: []State{{}, {}},
			want:     map[events.Kind]int{},
		},
		{
			name:     "battery then AC",
			observed: []State{{OnBattery: true}, {OnBattery: false}, {OnBattery: false}},
			want:     map[events.Kind]int{events.SwitchedToBattery: 1, events.SwitchedToAC: 1},
		},
		{
			name:     "lid close and open",
			observed: []State{{LidClosed: true}, {LidClosed: true}, {}, {LidClosed: true}},
			want:     map[events.Kind]int{events.LidClosed: 2, events.LidOpened: 1},
		},
		{
			name:     "docked emits nothing",
			observed: []State{{Docked: true}, {}},
			want:     map[events.Kind]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := events.NewBus()
			rec := record(bus)
			tr := NewTracker(bus)
			for _, s := range tt.observed {
				tr.Observe(s)
			}
			for _, k := range events.AllKinds {
				if got := rec.count(k); got != tt.want[k] {
					t.Errorf("%s count = %v, want %v", k, got, tt.want[k])
				}
			}
		})
	}
}

func TestTrackerLast(t *testing.T) {
	tr := NewTracker(events.NewBus())
	s := State{OnBattery: true, Docked: true, LidPresent: true}
	tr.Observe(s)
	if got := tr.Last(); got != s {
		t.Errorf("Last() = %+v, want %+v", got, s)
	}
}

func TestPollNilProperties(t *testing.T) {
	if got := Poll(context.Background(), nil); got != (State{}) {
		t.Errorf("Poll(nil) = %+v, want zero state", got)
	}
}
