package power

import (
	"fmt"
	"strings"
)

// PolicyAction is what a policy asks the Manager to do.
type PolicyAction string

const (
	PolicyNone      PolicyAction = "none"
	PolicyLock      PolicyAction = "lock"
	PolicySleep     PolicyAction = "sleep"
	PolicyHibernate PolicyAction = "hibernate"
	PolicyShutdown  PolicyAction = "shutdown"
)

// ParsePolicyAction parses a configured action name. The empty string is
// PolicyNone.
func ParsePolicyAction(s string) (PolicyAction, error) {
	switch a := PolicyAction(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return PolicyNone, nil
	case PolicyNone, PolicyLock, PolicySleep, PolicyHibernate, PolicyShutdown:
		return a, nil
	}
	return PolicyNone, fmt.Errorf("unknown action %q", s)
}

// IdlePolicy pairs an idle threshold in minutes with the action taken once
// it is crossed. A zero Timeout disables it.
type IdlePolicy struct {
	Timeout int          `json:"timeout"`
	Action  PolicyAction `json:"action"`
}

// Settings are the policy knobs the Manager consults on every decision.
type Settings struct {
	IdleBattery IdlePolicy
	IdleAC      IdlePolicy

	CriticalBattery float64
	CriticalAction  PolicyAction

	LidBattery                   PolicyAction
	LidAC                        PolicyAction
	DisableLidOnExternalMonitors bool
	VirtualOutputPrefix          string
}

// DefaultSettings mirror the daemon's configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		IdleBattery:                  IdlePolicy{Timeout: 15, Action: PolicySleep},
		IdleAC:                       IdlePolicy{Timeout: 0, Action: PolicyNone},
		CriticalBattery:              10,
		CriticalAction:               PolicyHibernate,
		LidBattery:                   PolicySleep,
		LidAC:                        PolicyLock,
		DisableLidOnExternalMonitors: true,
		VirtualOutputPrefix:          "VIRTUAL",
	}
}

// Idle returns the idle policy for the current power source.
func (s Settings) Idle(onBattery bool) IdlePolicy {
	if onBattery {
		return s.IdleBattery
	}
	return s.IdleAC
}

// Lid returns the lid action for the current power source.
func (s Settings) Lid(onBattery bool) PolicyAction {
	if onBattery {
		return s.LidBattery
	}
	return s.LidAC
}
