// Package idle measures how long the user has been idle.
package idle

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/power"
)

var (
	// ErrNoSource is returned when no source could measure idle time.
	ErrNoSource = errors.New("no idle source available")
	// ErrTimeout is returned when a source does not answer in time.
	ErrTimeout = errors.New("idle query timed out")
)

// within runs query and gives up after timeout. The abandoned query keeps
// running; its result is discarded.
func within(timeout time.Duration, query func() (time.Duration, error)) (time.Duration, error) {
	if timeout <= 0 {
		return query()
	}
	type result struct {
		d   time.Duration
		err error
	}
	res := make(chan result, 1)
	go func() {
		d, err := query()
		res <- result{d, err}
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-res:
		return r.d, r.err
	case <-timer.C:
		return 0, ErrTimeout
	}
}

// minutes converts an idle duration to whole minutes.
func minutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

type chain []power.IdleSource

// First answers from the first source that succeeds.
func First(sources ...power.IdleSource) power.IdleSource {
	var c chain
	for _, s := range sources {
		if s != nil {
			c = append(c, s)
		}
	}
	return c
}

func (c chain) IdleMinutes() (int, error) {
	for _, s := range c {
		n, err := s.IdleMinutes()
		if err == nil {
			return n, nil
		}
		logrus.WithError(err).Debug("idle source failed")
	}
	return 0, ErrNoSource
}
