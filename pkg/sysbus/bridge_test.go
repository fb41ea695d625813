package sysbus

import (
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/charlie0129/powerd/pkg/power"
)

func TestNormalize(t *testing.T) {
	bat := UPowerDevicesPath + "/battery_BAT0"

	tests := []struct {
		name   string
		sig    *dbus.Signal
		want   power.Event
		wantOK bool
	}{
		{
			name:   "device added as object path",
			sig:    &dbus.Signal{Name: UPowerIface + ".DeviceAdded", Body: []interface{}{dbus.ObjectPath(bat)}},
			want:   power.Event{Kind: power.EventDeviceAdded, Path: bat},
			wantOK: true,
		},
		{
			name:   "device removed as string",
			sig:    &dbus.Signal{Name: UPowerIface + ".DeviceRemoved", Body: []interface{}{bat}},
			want:   power.Event{Kind: power.EventDeviceRemoved, Path: bat},
			wantOK: true,
		},
		{
			name:   "device changed",
			sig:    &dbus.Signal{Name: UPowerIface + ".DeviceChanged", Body: []interface{}{bat}},
			want:   power.Event{Kind: power.EventChanged, Path: bat},
			wantOK: true,
		},
		{
			name:   "device added without body",
			sig:    &dbus.Signal{Name: UPowerIface + ".DeviceAdded"},
			wantOK: false,
		},
		{
			name:   "service changed",
			sig:    &dbus.Signal{Name: UPowerIface + ".Changed"},
			want:   power.Event{Kind: power.EventChanged},
			wantOK: true,
		},
		{
			name:   "service properties changed",
			sig:    &dbus.Signal{Name: dbusPropertiesIface + ".PropertiesChanged", Path: UPowerPath},
			want:   power.Event{Kind: power.EventChanged},
			wantOK: true,
		},
		{
			name:   "device properties changed",
			sig:    &dbus.Signal{Name: dbusPropertiesIface + ".PropertiesChanged", Path: dbus.ObjectPath(bat)},
			want:   power.Event{Kind: power.EventChanged, Path: bat},
			wantOK: true,
		},
		{
			name:   "unrelated properties changed",
			sig:    &dbus.Signal{Name: dbusPropertiesIface + ".PropertiesChanged", Path: "/org/freedesktop/login1"},
			wantOK: false,
		},
		{
			name:   "upower sleep",
			sig:    &dbus.Signal{Name: UPowerIface + ".NotifySleep", Body: []interface{}{"suspend"}},
			want:   power.Event{Kind: power.EventSleep, Sleeping: true},
			wantOK: true,
		},
		{
			name:   "upower resume",
			sig:    &dbus.Signal{Name: UPowerIface + ".NotifyResume", Body: []interface{}{"suspend"}},
			want:   power.Event{Kind: power.EventSleep},
			wantOK: true,
		},
		{
			name:   "logind prepare for sleep",
			sig:    &dbus.Signal{Name: Logind.Iface + ".PrepareForSleep", Body: []interface{}{true}},
			want:   power.Event{Kind: power.EventSleep, Sleeping: true},
			wantOK: true,
		},
		{
			name:   "consolekit resume",
			sig:    &dbus.Signal{Name: ConsoleKit.Iface + ".PrepareForSleep", Body: []interface{}{false}},
			want:   power.Event{Kind: power.EventSleep},
			wantOK: true,
		},
		{
			name:   "prepare for sleep with bad body",
			sig:    &dbus.Signal{Name: Logind.Iface + ".PrepareForSleep", Body: []interface{}{"yes"}},
			wantOK: false,
		},
		{
			name:   "unknown signal",
			sig:    &dbus.Signal{Name: "org.example.Foo"},
			wantOK: false,
		},
		{
			name:   "nil",
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalize(tt.sig)
			if ok != tt.wantOK {
				t.Fatalf("normalize() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
