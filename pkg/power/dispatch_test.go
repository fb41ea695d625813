package power

import "testing"

func TestDispatcherLidAction(t *testing.T) {
	s := DefaultSettings()
	s.LidBattery = PolicySleep
	s.LidAC = PolicyLock

	tests := []struct {
		name      string
		outputs   map[string]bool
		panels    map[string]bool
		disable   bool
		onBattery bool
		want      PolicyAction
	}{
		{
			name:      "internal only on battery",
			outputs:   map[string]bool{"eDP-1": true, "HDMI-A-1": false},
			disable:   true,
			onBattery: true,
			want:      PolicySleep,
		},
		{
			name:    "internal only on AC",
			outputs: map[string]bool{"eDP-1": true},
			disable: true,
			want:    PolicyLock,
		},
		{
			name:      "external monitor suppresses action",
			outputs:   map[string]bool{"eDP-1": true, "HDMI-A-1": true},
			disable:   true,
			onBattery: true,
			want:      PolicyNone,
		},
		{
			name:      "external monitor ignored when policy off",
			outputs:   map[string]bool{"eDP-1": true, "HDMI-A-1": true},
			disable:   false,
			onBattery: true,
			want:      PolicySleep,
		},
		{
			name:      "second built-in panel is not external",
			outputs:   map[string]bool{"eDP-1": true, "eDP-2": true},
			panels:    map[string]bool{"eDP-2": true},
			disable:   true,
			onBattery: true,
			want:      PolicySleep,
		},
		{
			name:      "virtual output is not external",
			outputs:   map[string]bool{"eDP-1": true, "Virtual-1": true},
			disable:   true,
			onBattery: true,
			want:      PolicySleep,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(&fakeDisplays{internal: "eDP-1", panels: tt.panels, outputs: tt.outputs})
			d.ProbeInternal()
			s.DisableLidOnExternalMonitors = tt.disable
			if got := d.LidAction(s, tt.onBattery); got != tt.want {
				t.Errorf("LidAction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatcherProbesLazily(t *testing.T) {
	d := NewDispatcher(&fakeDisplays{internal: "LVDS-1", outputs: map[string]bool{"LVDS-1": true}})
	if d.ExternalMonitorConnected("VIRTUAL") {
		t.Errorf("ExternalMonitorConnected() = true, want false")
	}
	if got := d.Internal(); got != "LVDS-1" {
		t.Errorf("Internal() = %q, want %q", got, "LVDS-1")
	}
}

func TestDispatcherCritical(t *testing.T) {
	s := DefaultSettings()
	s.CriticalBattery = 10
	s.CriticalAction = PolicyHibernate

	tests := []struct {
		name      string
		readings  []float64
		onBattery bool
		want      int
	}{
		{name: "at threshold", readings: []float64{10}, onBattery: true, want: 1},
		{name: "above threshold", readings: []float64{11}, onBattery: true, want: 0},
		{name: "repeated below threshold", readings: []float64{10, 9, 8, 8, 5}, onBattery: true, want: 1},
		{name: "rearmed after rise", readings: []float64{9, 12, 9}, onBattery: true, want: 2},
		{name: "on AC", readings: []float64{5}, onBattery: false, want: 0},
		{name: "unknown charge", readings: []float64{0}, onBattery: true, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(nil)
			fired := 0
			for _, left := range tt.readings {
				if a := d.CriticalAction(s, left, tt.onBattery); a != PolicyNone {
					if a != PolicyHibernate {
						t.Errorf("CriticalAction() = %v, want %v", a, PolicyHibernate)
					}
					fired++
				}
			}
			if fired != tt.want {
				t.Errorf("fired %v times, want %v", fired, tt.want)
			}
		})
	}
}
