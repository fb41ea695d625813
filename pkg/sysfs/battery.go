// Package sysfs reads batteries straight from the kernel for machines
// without UPower.
package sysfs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/distatus/battery"

	"github.com/charlie0129/powerd/pkg/power"
)

// PathPrefix prefixes the synthetic device paths of this service.
const PathPrefix = "sysfs/battery/"

// Batteries is a power.DeviceService over the kernel's power_supply class.
// It also answers OnBattery for power.Properties.
type Batteries struct {
	getAll func() ([]*battery.Battery, error)
}

func NewBatteries() *Batteries { return &Batteries{getAll: battery.GetAll} }

func (b *Batteries) list() ([]*battery.Battery, error) {
	bats, err := b.getAll()
	if err != nil && len(bats) == 0 {
		return nil, fmt.Errorf("failed to read batteries: %w", err)
	}
	return bats, nil
}

func (b *Batteries) Available(context.Context) bool {
	bats, err := b.list()
	return err == nil && len(bats) > 0
}

func (b *Batteries) DevicePaths(context.Context) ([]string, error) {
	bats, err := b.list()
	if err != nil {
		return nil, err
	}
	var out []string
	for i, bat := range bats {
		if bat != nil {
			out = append(out, PathPrefix+strconv.Itoa(i))
		}
	}
	return out, nil
}

func (b *Batteries) Device(_ context.Context, path string) (power.Device, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(path, PathPrefix))
	if err != nil || !strings.HasPrefix(path, PathPrefix) {
		return power.Device{}, fmt.Errorf("not a sysfs battery path: %q", path)
	}
	bats, err := b.list()
	if err != nil {
		return power.Device{}, err
	}
	if idx < 0 || idx >= len(bats) || bats[idx] == nil {
		return power.Device{}, fmt.Errorf("battery %d not found", idx)
	}
	return toDevice(path, idx, bats[idx]), nil
}

func toDevice(path string, idx int, bat *battery.Battery) power.Device {
	d := power.Device{
		Path:       path,
		IsBattery:  true,
		IsPresent:  bat.Full > 0,
		NativePath: "BAT" + strconv.Itoa(idx),
	}
	if bat.Full > 0 {
		d.Percentage = bat.Current / bat.Full * 100
		if d.Percentage > 100 {
			d.Percentage = 100
		}
	}
	if bat.ChargeRate > 0 {
		switch bat.State {
		case battery.Discharging:
			d.TimeToEmpty = int64(bat.Current / bat.ChargeRate * 3600)
		case battery.Charging:
			d.TimeToFull = int64((bat.Full - bat.Current) / bat.ChargeRate * 3600)
		}
	}
	return d
}

// OnBattery reports whether any battery is discharging.
func (b *Batteries) OnBattery(context.Context) bool {
	bats, err := b.list()
	if err != nil {
		return false
	}
	for _, bat := range bats {
		if bat != nil && bat.State == battery.Discharging {
			return true
		}
	}
	return false
}

// The kernel exposes no lid or dock state through power_supply.
func (b *Batteries) LidIsPresent(context.Context) bool { return false }
func (b *Batteries) LidIsClosed(context.Context) bool  { return false }
func (b *Batteries) IsDocked(context.Context) bool     { return false }
