package daemon

import (
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/config"
	"github.com/charlie0129/powerd/pkg/power"
)

// settingsFromConfig translates the configuration into policy settings.
// An unparsable action keeps its default.
func settingsFromConfig(c config.Config) power.Settings {
	s := power.DefaultSettings()
	if c == nil {
		return s
	}

	action := func(key, value string, fallback power.PolicyAction) power.PolicyAction {
		a, err := power.ParsePolicyAction(value)
		if err != nil {
			logrus.WithField("key", key).Warnf("invalid action, using %s: %v", fallback, err)
			return fallback
		}
		return a
	}

	s.IdleBattery = power.IdlePolicy{
		Timeout: c.SuspendBatteryTimeout(),
		Action:  action("suspendBatteryAction", c.SuspendBatteryAction(), s.IdleBattery.Action),
	}
	s.IdleAC = power.IdlePolicy{
		Timeout: c.SuspendACTimeout(),
		Action:  action("suspendACAction", c.SuspendACAction(), s.IdleAC.Action),
	}
	s.CriticalBattery = float64(c.CriticalBattery())
	s.CriticalAction = action("criticalAction", c.CriticalAction(), s.CriticalAction)
	s.LidBattery = action("lidBatteryAction", c.LidBatteryAction(), s.LidBattery)
	s.LidAC = action("lidACAction", c.LidACAction(), s.LidAC)
	s.DisableLidOnExternalMonitors = c.DisableLidOnExternalMonitors()
	s.VirtualOutputPrefix = c.VirtualOutputPrefix()
	return s
}
