package power

import (
	"context"
	"errors"
	"testing"
)

func TestSelectorQuery(t *testing.T) {
	all := map[Capability]bool{CapRestart: true, CapPowerOff: true, CapSuspend: true, CapHibernate: true, CapHybridSleep: true}

	tests := []struct {
		name     string
		backends []*fakeBackend
		cap      Capability
		want     bool
	}{
		{
			name: "modern answers first",
			backends: []*fakeBackend{
				{kind: LegacySession, name: "ck", available: true, caps: all},
				{kind: ModernSession, name: "logind", available: true, caps: map[Capability]bool{}},
			},
			cap:  CapSuspend,
			want: false,
		},
		{
			name: "legacy answers when modern absent",
			backends: []*fakeBackend{
				{kind: ModernSession, name: "logind", available: false, caps: all},
				{kind: LegacySession, name: "ck", available: true, caps: all},
			},
			cap:  CapRestart,
			want: true,
		},
		{
			name: "device service answers suspend",
			backends: []*fakeBackend{
				{kind: DeviceServiceBackend, name: "upower", available: true, caps: all},
			},
			cap:  CapSuspend,
			want: true,
		},
		{
			name: "device service answers hibernate",
			backends: []*fakeBackend{
				{kind: DeviceServiceBackend, name: "upower", available: true, caps: all},
			},
			cap:  CapHibernate,
			want: true,
		},
		{
			name: "device service never answers restart",
			backends: []*fakeBackend{
				{kind: DeviceServiceBackend, name: "upower", available: true, caps: all},
			},
			cap:  CapRestart,
			want: false,
		},
		{
			name: "device service never answers hybrid sleep",
			backends: []*fakeBackend{
				{kind: DeviceServiceBackend, name: "upower", available: true, caps: all},
			},
			cap:  CapHybridSleep,
			want: false,
		},
		{
			name: "nothing available",
			backends: []*fakeBackend{
				{kind: ModernSession, name: "logind", caps: all},
				{kind: LegacySession, name: "ck", caps: all},
				{kind: DeviceServiceBackend, name: "upower", caps: all},
			},
			cap:  CapHibernate,
			want: false,
		},
		{
			name: "failed call is false",
			backends: []*fakeBackend{
				{kind: ModernSession, name: "logind", available: true, caps: all, fail: errors.New("boom")},
				{kind: LegacySession, name: "ck", available: true, caps: all},
			},
			cap:  CapPowerOff,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bs []Backend
			for _, b := range tt.backends {
				bs = append(bs, b)
			}
			s := NewSelector(0, bs...)
			if got := s.Query(context.Background(), tt.cap); got != tt.want {
				t.Errorf("Query(%v) = %v, want %v", tt.cap, got, tt.want)
			}
		})
	}
}

func TestSelectorExecute(t *testing.T) {
	ctx := context.Background()

	logind := &fakeBackend{kind: ModernSession, name: "logind", available: false}
	ck := &fakeBackend{kind: LegacySession, name: "ck", available: true}
	up := &fakeBackend{kind: DeviceServiceBackend, name: "upower", available: true}
	s := NewSelector(0, up, ck, logind)

	if got := s.Execute(ctx, ActSuspend); got != "" {
		t.Errorf("Execute() = %q, want success", got)
	}
	if len(ck.executed) != 1 || ck.executed[0] != ActSuspend {
		t.Errorf("legacy backend executed %v, want [suspend]", ck.executed)
	}
	if len(up.executed) != 0 {
		t.Errorf("device service executed %v, want nothing", up.executed)
	}

	ck.fail = errors.New("access denied")
	if got := s.Execute(ctx, ActPowerOff); got != "access denied" {
		t.Errorf("Execute() = %q, want %q", got, "access denied")
	}

	ck.available = false
	if got := s.Execute(ctx, ActRestart); got != "no backend available" {
		t.Errorf("Execute() = %q, want %q", got, "no backend available")
	}
	if got := s.Active(ctx, CapSuspend); got != "upower" {
		t.Errorf("Active() = %q, want %q", got, "upower")
	}
}
