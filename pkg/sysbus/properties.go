package sysbus

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/power"
)

// SystemProperties answers power.Properties from UPower, consulting logind
// for docking and Fallback for the power source when UPower is absent.
type SystemProperties struct {
	UPower   *UPower
	Logind   *SessionManager
	Fallback power.Properties
}

func (p *SystemProperties) upower(ctx context.Context) bool {
	return p.UPower != nil && p.UPower.Available(ctx)
}

func (p *SystemProperties) OnBattery(ctx context.Context) bool {
	if p.upower(ctx) {
		return p.UPower.OnBattery(ctx)
	}
	if p.Fallback != nil {
		return p.Fallback.OnBattery(ctx)
	}
	return false
}

func (p *SystemProperties) LidIsPresent(ctx context.Context) bool {
	if p.upower(ctx) {
		return p.UPower.LidIsPresent(ctx)
	}
	return false
}

func (p *SystemProperties) LidIsClosed(ctx context.Context) bool {
	if p.upower(ctx) {
		return p.UPower.LidIsClosed(ctx)
	}
	if p.Logind != nil {
		closed, err := p.Logind.LidClosed(ctx)
		if err == nil {
			return closed
		}
	}
	return false
}

// IsDocked prefers logind, whose answer also covers multiple displays.
func (p *SystemProperties) IsDocked(ctx context.Context) bool {
	if p.Logind != nil {
		docked, err := p.Logind.Docked(ctx)
		if err == nil {
			return docked
		}
		logrus.WithError(err).Debug("logind docked query failed")
	}
	if p.upower(ctx) {
		return p.UPower.IsDocked(ctx)
	}
	return false
}
