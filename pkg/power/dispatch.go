package power

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Displays reports video outputs.
type Displays interface {
	// Outputs maps output names to their connection state.
	Outputs() (map[string]bool, error)
	// Internal names the first built-in panel, or "" if there is none.
	Internal() (string, error)
	// IsInternal reports whether an output is a built-in panel. Machines
	// may have more than one.
	IsInternal(name string) bool
}

// Dispatcher decides lid and critical battery actions.
type Dispatcher struct {
	displays Displays
	internal string
	probed   bool
	fired    bool
}

func NewDispatcher(d Displays) *Dispatcher {
	return &Dispatcher{displays: d}
}

// ProbeInternal (re)reads the name of the internal output.
func (d *Dispatcher) ProbeInternal() {
	if d.displays == nil {
		return
	}
	name, err := d.displays.Internal()
	if err != nil {
		logrus.WithError(err).Warn("failed to probe internal output")
		return
	}
	d.internal = name
	d.probed = true
	logrus.WithField("output", name).Debug("internal output probed")
}

// Internal returns the last probed internal output name.
func (d *Dispatcher) Internal() string { return d.internal }

// ExternalMonitorConnected reports whether any connected output is neither
// a built-in panel nor virtual.
func (d *Dispatcher) ExternalMonitorConnected(virtualPrefix string) bool {
	if d.displays == nil {
		return false
	}
	if !d.probed || d.internal == "" {
		d.ProbeInternal()
	}
	outputs, err := d.displays.Outputs()
	if err != nil {
		logrus.WithError(err).Warn("failed to list outputs")
		return false
	}
	prefix := strings.ToUpper(virtualPrefix)
	for name, connected := range outputs {
		if !connected || name == d.internal || d.displays.IsInternal(name) {
			continue
		}
		if prefix != "" && strings.HasPrefix(strings.ToUpper(name), prefix) {
			continue
		}
		logrus.WithField("output", name).Debug("external output connected")
		return true
	}
	return false
}

// LidAction returns the action to take for a closed lid.
func (d *Dispatcher) LidAction(s Settings, onBattery bool) PolicyAction {
	if s.DisableLidOnExternalMonitors && d.ExternalMonitorConnected(s.VirtualOutputPrefix) {
		logrus.Info("external monitor connected, ignoring lid")
		return PolicyNone
	}
	return s.Lid(onBattery)
}

// CriticalAction returns the critical action once per crossing of the
// critical threshold, and PolicyNone otherwise.
func (d *Dispatcher) CriticalAction(s Settings, left float64, onBattery bool) PolicyAction {
	critical := left > 0 && left <= s.CriticalBattery && onBattery
	if !critical {
		d.fired = false
		return PolicyNone
	}
	if d.fired {
		return PolicyNone
	}
	d.fired = true
	switch s.CriticalAction {
	case PolicyHibernate, PolicyShutdown:
		return s.CriticalAction
	}
	return PolicyNone
}
