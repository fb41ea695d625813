package daemon

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/charlie0129/powerd/pkg/config"
	"github.com/charlie0129/powerd/pkg/events"
	"github.com/charlie0129/powerd/pkg/power"
	"github.com/charlie0129/powerd/pkg/utils/ptr"
)

func TestSettingsFromConfig(t *testing.T) {
	if got := settingsFromConfig(nil); got != power.DefaultSettings() {
		t.Errorf("settingsFromConfig(nil) = %+v, want defaults", got)
	}

	c := config.NewFileFromConfig(&config.RawFileConfig{
		SuspendACTimeout:    ptr.To(30),
		SuspendACAction:     ptr.To("LOCK"),
		LidBatteryAction:    ptr.To("explode"),
		CriticalBattery:     ptr.To(7),
		VirtualOutputPrefix: ptr.To("DUMMY"),
	}, "")
	s := settingsFromConfig(c)

	if want := (power.IdlePolicy{Timeout: 30, Action: power.PolicyLock}); s.IdleAC != want {
		t.Errorf("IdleAC = %+v, want %+v", s.IdleAC, want)
	}
	if s.LidBattery != power.PolicySleep {
		t.Errorf("LidBattery = %v, want %v", s.LidBattery, power.PolicySleep)
	}
	if s.CriticalBattery != 7 {
		t.Errorf("CriticalBattery = %v, want %v", s.CriticalBattery, 7)
	}
	if s.VirtualOutputPrefix != "DUMMY" {
		t.Errorf("VirtualOutputPrefix = %q, want %q", s.VirtualOutputPrefix, "DUMMY")
	}
}

func TestCommandLocker(t *testing.T) {
	var gotName string
	var gotArgs []string
	c := config.NewFileFromConfig(&config.RawFileConfig{LockCommand: ptr.To("loginctl lock-session")}, "")
	l := &commandLocker{conf: c, start: func(name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}}

	if err := l.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if gotName != "loginctl" || !reflect.DeepEqual(gotArgs, []string{"lock-session"}) {
		t.Errorf("started %q %v, want loginctl [lock-session]", gotName, gotArgs)
	}

	l.start = func(string, ...string) error { return errors.New("not found") }
	if err := l.Lock(context.Background()); err == nil {
		t.Errorf("Lock() with failing command returned no error")
	}

	l.conf = config.NewFileFromConfig(&config.RawFileConfig{LockCommand: ptr.To("  ")}, "")
	if err := l.Lock(context.Background()); err == nil {
		t.Errorf("Lock() with empty command returned no error")
	}
}

type fakeSleepLock struct {
	mu       sync.Mutex
	taken    int
	released int
}

func (f *fakeSleepLock) Take(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taken++
	return nil
}

func (f *fakeSleepLock) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeSleepLock) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taken, f.released
}

func TestWatchSleep(t *testing.T) {
	conf = config.NewFileFromConfig(nil, "")
	bus := events.NewBus()
	locker := &fakeLocker{}
	delay := &fakeSleepLock{}
	watchSleep(bus, locker, delay)

	bus.Emit(events.PrepareForSuspend, events.SuspendEvent{Sleeping: true})
	if got := locker.count(); got != 1 {
		t.Errorf("locker called %v times, want %v", got, 1)
	}
	if _, released := delay.counts(); released != 1 {
		t.Errorf("delay lock released %v times, want %v", released, 1)
	}

	bus.Emit(events.PrepareForSuspend, events.SuspendEvent{Sleeping: false})
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if taken, _ := delay.counts(); taken == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if taken, _ := delay.counts(); taken != 1 {
		t.Errorf("delay lock taken %v times, want %v", taken, 1)
	}
	if got := locker.count(); got != 1 {
		t.Errorf("locker called %v times after resume, want %v", got, 1)
	}
}

func TestWatchSleepLockDisabled(t *testing.T) {
	conf = config.NewFileFromConfig(&config.RawFileConfig{LockOnSleep: ptr.To(false)}, "")
	bus := events.NewBus()
	locker := &fakeLocker{}
	watchSleep(bus, locker, nil)

	bus.Emit(events.PrepareForSuspend, events.SuspendEvent{Sleeping: true})
	if got := locker.count(); got != 0 {
		t.Errorf("locker called %v times, want %v", got, 0)
	}
}
