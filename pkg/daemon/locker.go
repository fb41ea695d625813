package daemon

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/config"
	"github.com/charlie0129/powerd/pkg/events"
	"github.com/charlie0129/powerd/pkg/power"
)

// commandLocker locks the screen by starting the configured lock command.
// It does not wait for the locker to exit, since most lockers stay up until
// the session is unlocked.
type commandLocker struct {
	conf  config.Config
	start func(name string, args ...string) error
}

func newCommandLocker(c config.Config) *commandLocker {
	return &commandLocker{conf: c, start: startDetached}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logrus.WithField("command", name).Debugf("lock command exited: %v", err)
		}
	}()
	return nil
}

func (l *commandLocker) Lock(_ context.Context) error {
	fields := strings.Fields(l.conf.LockCommand())
	if len(fields) == 0 {
		return errors.New("no lock command configured")
	}
	if err := l.start(fields[0], fields[1:]...); err != nil {
		return fmt.Errorf("failed to start %s: %w", fields[0], err)
	}
	logrus.WithField("command", fields[0]).Info("screen locked")
	return nil
}

// sleepLock delays system sleep while held.
type sleepLock interface {
	Take(ctx context.Context) error
	Release() error
}

// watchSleep locks the screen before the machine sleeps and then lets
// sleep proceed by releasing the delay lock. The lock is taken again on
// resume. delay may be nil.
func watchSleep(bus *events.Bus, locker power.Locker, delay sleepLock) {
	bus.On(events.PrepareForSuspend, func(payload any) {
		ev, _ := payload.(events.SuspendEvent)
		if ev.Sleeping {
			logrus.Info("system is going to sleep")
			if conf.LockOnSleep() && locker != nil {
				if err := locker.Lock(context.Background()); err != nil {
					logrus.Errorf("failed to lock screen before sleep: %v", err)
				}
			}
			if delay != nil {
				if err := delay.Release(); err != nil {
					logrus.Errorf("failed to release sleep delay lock: %v", err)
				}
			}
			return
		}

		logrus.Info("system woke up")
		if delay == nil || !conf.LockOnSleep() {
			return
		}
		// Handlers run on the manager goroutine. Do the bus round trip
		// elsewhere.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := delay.Take(ctx); err != nil {
				logrus.Warnf("failed to take sleep delay lock: %v", err)
			}
		}()
	})
}
