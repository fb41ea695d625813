package sysbus

import (
	"context"
	"fmt"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/power"
)

// DelayLock holds a logind "delay" sleep inhibitor, giving the daemon a
// chance to lock the screen before the machine sleeps.
type DelayLock struct {
	bus  *Bus
	who  string
	why  string
	mu   sync.Mutex
	fd   int
	held bool
}

func NewDelayLock(bus *Bus, who, why string) *DelayLock {
	return &DelayLock{bus: bus, who: who, why: why, fd: -1}
}

// Take acquires the lock. Taking a held lock is a no-op.
func (l *DelayLock) Take(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil
	}
	if !l.bus.HasOwner(ctx, Logind.Dest) {
		return power.ErrBackendUnavailable
	}
	body, err := l.bus.Call(ctx, Logind.Dest, Logind.Path, Logind.Iface+".Inhibit",
		"sleep", l.who, l.why, "delay")
	if err != nil {
		return fmt.Errorf("failed to take sleep delay lock: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("logind Inhibit returned no file descriptor")
	}
	fd, ok := body[0].(dbus.UnixFD)
	if !ok || fd < 0 {
		return fmt.Errorf("logind Inhibit returned an invalid value %v", body[0])
	}
	syscall.CloseOnExec(int(fd))
	l.fd = int(fd)
	l.held = true
	logrus.WithField("fd", l.fd).Debug("sleep delay lock taken")
	return nil
}

// Release lets a pending sleep proceed.
func (l *DelayLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	err := syscall.Close(l.fd)
	l.fd = -1
	l.held = false
	logrus.Debug("sleep delay lock released")
	return err
}

func (l *DelayLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
