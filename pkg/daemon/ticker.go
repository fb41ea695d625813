package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// driver fires the periodic idle tick and the liveness check.
type driver struct {
	cron *cron.Cron
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// every returns an "@every" spec for d, rounded up to whole seconds.
func every(d time.Duration) (string, error) {
	if d <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", d)
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("@every %ds", secs), nil
}

func newDriver(tickInterval, livenessInterval time.Duration, tick, liveness func()) (*driver, error) {
	c := cron.New(
		cron.WithParser(parser),
		// A slow backend must not pile up ticks.
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	jobs := []struct {
		name     string
		interval time.Duration
		f        func()
	}{
		{"tick", tickInterval, tick},
		{"liveness", livenessInterval, liveness},
	}
	for _, j := range jobs {
		spec, err := every(j.interval)
		if err != nil {
			return nil, fmt.Errorf("invalid %s interval: %w", j.name, err)
		}
		if _, err := c.AddFunc(spec, j.f); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
		logrus.WithFields(logrus.Fields{
			"job":  j.name,
			"spec": spec,
		}).Debug("job scheduled")
	}

	ticks.SetInterval(tickInterval)
	return &driver{cron: c}, nil
}

func (d *driver) Start() { d.cron.Start() }

// Stop stops scheduling. The returned context is done once running jobs
// have finished.
func (d *driver) Stop() context.Context { return d.cron.Stop() }

// Entries returns the next run time of every job.
func (d *driver) Entries() []time.Time {
	var next []time.Time
	for _, e := range d.cron.Entries() {
		next = append(next, e.Next)
	}
	return next
}
