package sysbus

import (
	"reflect"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/charlie0129/powerd/pkg/power"
)

func TestChildPaths(t *testing.T) {
	data := `<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
  <node name="line_power_AC"/>
  <node name="battery_BAT0"/>
  <node name="DisplayDevice"/>
</node>`

	got, err := childPaths(UPowerDevicesPath, data)
	if err != nil {
		t.Fatalf("childPaths() error = %v", err)
	}
	want := []string{
		UPowerDevicesPath + "/line_power_AC",
		UPowerDevicesPath + "/battery_BAT0",
		UPowerDevicesPath + "/DisplayDevice",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("childPaths() = %v, want %v", got, want)
	}

	if _, err := childPaths(UPowerDevicesPath, "<node><node"); err == nil {
		t.Errorf("childPaths() on malformed data returned no error")
	}
}

func TestDeviceFromProperties(t *testing.T) {
	p := UPowerDevicesPath + "/battery_BAT0"
	tests := []struct {
		name  string
		props map[string]dbus.Variant
		want  power.Device
	}{
		{
			name: "battery",
			props: map[string]dbus.Variant{
				"Type":        dbus.MakeVariant(uint32(2)),
				"IsPresent":   dbus.MakeVariant(true),
				"NativePath":  dbus.MakeVariant("BAT0"),
				"Percentage":  dbus.MakeVariant(float64(87.5)),
				"TimeToEmpty": dbus.MakeVariant(int64(3600)),
				"TimeToFull":  dbus.MakeVariant(int64(0)),
			},
			want: power.Device{Path: p, IsBattery: true, IsPresent: true, NativePath: "BAT0", Percentage: 87.5, TimeToEmpty: 3600},
		},
		{
			name: "line power",
			props: map[string]dbus.Variant{
				"Type":      dbus.MakeVariant(uint32(1)),
				"IsPresent": dbus.MakeVariant(false),
			},
			want: power.Device{Path: p},
		},
		{
			name:  "empty",
			props: map[string]dbus.Variant{},
			want:  power.Device{Path: p},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviceFromProperties(p, tt.props); got != tt.want {
				t.Errorf("deviceFromProperties() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
