package sysbus

import (
	"context"
	"encoding/xml"
	"fmt"
	"path"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/power"
)

const (
	UPowerService     = "org.freedesktop.UPower"
	UPowerPath        = "/org/freedesktop/UPower"
	UPowerIface       = UPowerService
	UPowerDeviceIface = UPowerService + ".Device"
	UPowerDevicesPath = UPowerPath + "/devices"
	// JobsPrefix holds transient objects that are not devices.
	JobsPrefix = UPowerPath + "/jobs"

	// upDeviceTypeBattery is UP_DEVICE_KIND_BATTERY.
	upDeviceTypeBattery = 2
)

// UPower is the device service. It also answers suspend and hibernate
// queries as the last resort backend.
type UPower struct {
	bus *Bus
}

func NewUPower(bus *Bus) *UPower { return &UPower{bus: bus} }

func (u *UPower) Kind() power.BackendKind { return power.DeviceServiceBackend }
func (u *UPower) Name() string            { return "upower" }

func (u *UPower) Available(ctx context.Context) bool {
	return u.bus.HasOwner(ctx, UPowerService)
}

func (u *UPower) Query(ctx context.Context, c power.Capability) (bool, error) {
	var method string
	switch c {
	case power.CapSuspend:
		method = "SuspendAllowed"
	case power.CapHibernate:
		method = "HibernateAllowed"
	default:
		return false, power.ErrUnsupported
	}
	body, err := u.bus.Call(ctx, UPowerService, UPowerPath, UPowerIface+"."+method)
	if err != nil {
		return false, fmt.Errorf("upower %s: %w", method, err)
	}
	return firstReply(body), nil
}

func (u *UPower) Execute(ctx context.Context, a power.Action) error {
	var method string
	switch a {
	case power.ActSuspend:
		method = "Suspend"
	case power.ActHibernate:
		method = "Hibernate"
	default:
		return power.ErrUnsupported
	}
	if _, err := u.bus.Call(ctx, UPowerService, UPowerPath, UPowerIface+"."+method); err != nil {
		return fmt.Errorf("upower %s: %w", method, err)
	}
	return nil
}

// DevicePaths lists device object paths, preferring EnumerateDevices and
// falling back to introspecting the devices node.
func (u *UPower) DevicePaths(ctx context.Context) ([]string, error) {
	body, err := u.bus.Call(ctx, UPowerService, UPowerPath, UPowerIface+".EnumerateDevices")
	if err == nil && len(body) > 0 {
		if ps, ok := body[0].([]dbus.ObjectPath); ok {
			out := make([]string, 0, len(ps))
			for _, p := range ps {
				out = append(out, string(p))
			}
			return out, nil
		}
	}
	if err != nil {
		logrus.WithError(err).Debug("EnumerateDevices failed, introspecting")
	}

	body, err = u.bus.Call(ctx, UPowerService, UPowerDevicesPath, dbusIntrospect)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", UPowerDevicesPath, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty introspection reply")
	}
	data, ok := body[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected introspection reply %T", body[0])
	}
	return childPaths(UPowerDevicesPath, data)
}

// childPaths parses introspection XML and returns the absolute paths of
// the child nodes of base.
func childPaths(base, data string) ([]string, error) {
	var node introspect.Node
	if err := xml.Unmarshal([]byte(data), &node); err != nil {
		return nil, fmt.Errorf("malformed introspection data: %w", err)
	}
	out := make([]string, 0, len(node.Children))
	for _, c := range node.Children {
		if c.Name == "" {
			continue
		}
		out = append(out, path.Join(base, c.Name))
	}
	return out, nil
}

func (u *UPower) Device(ctx context.Context, p string) (power.Device, error) {
	props, err := u.bus.Properties(ctx, UPowerService, p, UPowerDeviceIface)
	if err != nil {
		return power.Device{}, fmt.Errorf("failed to read device %s: %w", p, err)
	}
	return deviceFromProperties(p, props), nil
}

func deviceFromProperties(p string, props map[string]dbus.Variant) power.Device {
	d := power.Device{Path: p}
	if v, ok := props["Type"]; ok {
		d.IsBattery = toInt64(v.Value()) == upDeviceTypeBattery
	}
	if v, ok := props["IsPresent"]; ok {
		d.IsPresent, _ = v.Value().(bool)
	}
	if v, ok := props["NativePath"]; ok {
		d.NativePath, _ = v.Value().(string)
	}
	if v, ok := props["Percentage"]; ok {
		d.Percentage = toFloat64(v.Value())
	}
	if v, ok := props["TimeToEmpty"]; ok {
		d.TimeToEmpty = toInt64(v.Value())
	}
	if v, ok := props["TimeToFull"]; ok {
		d.TimeToFull = toInt64(v.Value())
	}
	return d
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	case byte:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	}
	return float64(toInt64(v))
}

func (u *UPower) boolProp(ctx context.Context, prop string) bool {
	return u.bus.BoolProperty(ctx, UPowerService, UPowerPath, UPowerIface, prop)
}

func (u *UPower) OnBattery(ctx context.Context) bool    { return u.boolProp(ctx, "OnBattery") }
func (u *UPower) LidIsPresent(ctx context.Context) bool { return u.boolProp(ctx, "LidIsPresent") }
func (u *UPower) LidIsClosed(ctx context.Context) bool  { return u.boolProp(ctx, "LidIsClosed") }
func (u *UPower) IsDocked(ctx context.Context) bool     { return u.boolProp(ctx, "IsDocked") }
