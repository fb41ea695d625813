package power

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBackendUnavailable is returned when a backend's service has no
	// owner on the bus.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrUnsupported is returned by a backend asked for a verb it does not
	// implement.
	ErrUnsupported = errors.New("unsupported by backend")
)

// Capability is a question that can be put to a backend.
type Capability int

const (
	CapRestart Capability = iota
	CapPowerOff
	CapSuspend
	CapHibernate
	CapHybridSleep
)

func (c Capability) String() string {
	switch c {
	case CapRestart:
		return "restart"
	case CapPowerOff:
		return "poweroff"
	case CapSuspend:
		return "suspend"
	case CapHibernate:
		return "hibernate"
	case CapHybridSleep:
		return "hybrid-sleep"
	}
	return "unknown"
}

// Action is a physical power action.
type Action int

const (
	ActRestart Action = iota
	ActPowerOff
	ActSuspend
	ActHibernate
	ActHybridSleep
)

func (a Action) String() string { return Capability(a).String() }

// Capability returns the capability guarding a.
func (a Action) Capability() Capability { return Capability(a) }

// BackendKind orders backends by preference.
type BackendKind int

const (
	ModernSession BackendKind = iota
	LegacySession
	DeviceServiceBackend
)

func (k BackendKind) String() string {
	switch k {
	case ModernSession:
		return "modern-session"
	case LegacySession:
		return "legacy-session"
	case DeviceServiceBackend:
		return "device-service"
	}
	return "unknown"
}

// Backend is one service able to answer capability queries and execute
// power actions.
type Backend interface {
	Kind() BackendKind
	Name() string
	Available(ctx context.Context) bool
	Query(ctx context.Context, c Capability) (bool, error)
	Execute(ctx context.Context, a Action) error
}

// Selector routes queries and actions to the first available backend.
// Availability is re-checked on every call.
type Selector struct {
	backends []Backend
	timeout  time.Duration
}

// NewSelector returns a selector over backends, ordered by Kind. Calls are
// bounded by timeout when it is positive.
func NewSelector(timeout time.Duration, backends ...Backend) *Selector {
	bs := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			bs = append(bs, b)
		}
	}
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].Kind() < bs[j].Kind() })
	return &Selector{backends: bs, timeout: timeout}
}

func (s *Selector) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// deviceServiceAnswers reports whether the device service may answer c.
func deviceServiceAnswers(c Capability) bool {
	return c == CapSuspend || c == CapHibernate
}

// Query asks the first available backend about c. Its answer is final,
// including false. Unavailable backends and failed calls yield false.
func (s *Selector) Query(ctx context.Context, c Capability) bool {
	for _, b := range s.backends {
		if b.Kind() == DeviceServiceBackend && !deviceServiceAnswers(c) {
			continue
		}
		cctx, cancel := s.bound(ctx)
		if !b.Available(cctx) {
			cancel()
			continue
		}
		ok, err := b.Query(cctx, c)
		cancel()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"backend":    b.Name(),
				"capability": c.String(),
			}).WithError(err).Warn("capability query failed")
			return false
		}
		return ok
	}
	return false
}

// Execute runs a on the first available session backend. It returns an
// empty string on success or a human readable reason otherwise.
func (s *Selector) Execute(ctx context.Context, a Action) string {
	for _, b := range s.backends {
		if b.Kind() == DeviceServiceBackend {
			continue
		}
		cctx, cancel := s.bound(ctx)
		if !b.Available(cctx) {
			cancel()
			continue
		}
		err := b.Execute(cctx, a)
		cancel()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"backend": b.Name(),
				"action":  a.String(),
			}).WithError(err).Error("action failed")
			return err.Error()
		}
		logrus.WithFields(logrus.Fields{
			"backend": b.Name(),
			"action":  a.String(),
		}).Info("action executed")
		return ""
	}
	return "no backend available"
}

// Active returns the name of the backend that would answer c, or "".
func (s *Selector) Active(ctx context.Context, c Capability) string {
	for _, b := range s.backends {
		if b.Kind() == DeviceServiceBackend && !deviceServiceAnswers(c) {
			continue
		}
		cctx, cancel := s.bound(ctx)
		ok := b.Available(cctx)
		cancel()
		if ok {
			return b.Name()
		}
	}
	return ""
}
