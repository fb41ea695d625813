package sysbus

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestNormalizeReply(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want bool
	}{
		{name: "bool true", in: true, want: true},
		{name: "bool false", in: false, want: false},
		{name: "yes", in: "yes", want: true},
		{name: "padded yes", in: " Yes ", want: true},
		{name: "no", in: "no", want: false},
		{name: "challenge", in: "challenge", want: false},
		{name: "na", in: "na", want: false},
		{name: "variant", in: dbus.MakeVariant("yes"), want: true},
		{name: "number", in: uint32(1), want: false},
		{name: "nil", in: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeReply(tt.in); got != tt.want {
				t.Errorf("normalizeReply(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFirstReplyEmpty(t *testing.T) {
	if firstReply(nil) {
		t.Errorf("firstReply(nil) = true, want false")
	}
}

func TestObjectPath(t *testing.T) {
	tests := []struct {
		in     interface{}
		want   string
		wantOK bool
	}{
		{in: dbus.ObjectPath("/org/freedesktop/UPower/devices/battery_BAT0"), want: "/org/freedesktop/UPower/devices/battery_BAT0", wantOK: true},
		{in: "/org/freedesktop/UPower/devices/line_power_AC", want: "/org/freedesktop/UPower/devices/line_power_AC", wantOK: true},
		{in: dbus.ObjectPath("not a path"), want: "not a path", wantOK: false},
		{in: 42, wantOK: false},
	}
	for _, tt := range tests {
		got, ok := objectPath(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("objectPath(%v) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
