package sysbus

import (
	"context"
	"fmt"

	"github.com/charlie0129/powerd/pkg/power"
)

// Dialect describes one session manager flavour. logind and ConsoleKit2
// share method names but live at different addresses.
type Dialect struct {
	Kind  power.BackendKind
	Name  string
	Dest  string
	Path  string
	Iface string
}

var (
	Logind = Dialect{
		Kind:  power.ModernSession,
		Name:  "logind",
		Dest:  "org.freedesktop.login1",
		Path:  "/org/freedesktop/login1",
		Iface: "org.freedesktop.login1.Manager",
	}
	ConsoleKit = Dialect{
		Kind:  power.LegacySession,
		Name:  "consolekit",
		Dest:  "org.freedesktop.ConsoleKit",
		Path:  "/org/freedesktop/ConsoleKit/Manager",
		Iface: "org.freedesktop.ConsoleKit.Manager",
	}
)

var verbs = map[power.Action]string{
	power.ActRestart:     "Reboot",
	power.ActPowerOff:    "PowerOff",
	power.ActSuspend:     "Suspend",
	power.ActHibernate:   "Hibernate",
	power.ActHybridSleep: "HybridSleep",
}

// SessionManager is a power.Backend backed by logind or ConsoleKit.
type SessionManager struct {
	bus *Bus
	d   Dialect
}

func NewSessionManager(bus *Bus, d Dialect) *SessionManager {
	return &SessionManager{bus: bus, d: d}
}

func (s *SessionManager) Kind() power.BackendKind { return s.d.Kind }
func (s *SessionManager) Name() string            { return s.d.Name }

func (s *SessionManager) Available(ctx context.Context) bool {
	return s.bus.HasOwner(ctx, s.d.Dest)
}

func (s *SessionManager) Query(ctx context.Context, c power.Capability) (bool, error) {
	verb, ok := verbs[power.Action(c)]
	if !ok {
		return false, power.ErrUnsupported
	}
	body, err := s.bus.Call(ctx, s.d.Dest, s.d.Path, s.d.Iface+".Can"+verb)
	if err != nil {
		return false, fmt.Errorf("%s Can%s: %w", s.d.Name, verb, err)
	}
	return firstReply(body), nil
}

// Execute runs a with interactive authorization allowed.
func (s *SessionManager) Execute(ctx context.Context, a power.Action) error {
	verb, ok := verbs[a]
	if !ok {
		return power.ErrUnsupported
	}
	if _, err := s.bus.Call(ctx, s.d.Dest, s.d.Path, s.d.Iface+"."+verb, true); err != nil {
		return fmt.Errorf("%s %s: %w", s.d.Name, verb, err)
	}
	return nil
}

// Docked reads logind's Docked property. ConsoleKit has none.
func (s *SessionManager) Docked(ctx context.Context) (bool, error) {
	if s.d.Dest != Logind.Dest {
		return false, power.ErrUnsupported
	}
	if !s.Available(ctx) {
		return false, power.ErrBackendUnavailable
	}
	v, err := s.bus.Property(ctx, s.d.Dest, s.d.Path, s.d.Iface, "Docked")
	if err != nil {
		return false, err
	}
	return normalizeReply(v), nil
}

// LidClosed reads logind's LidClosed property.
func (s *SessionManager) LidClosed(ctx context.Context) (bool, error) {
	if s.d.Dest != Logind.Dest {
		return false, power.ErrUnsupported
	}
	v, err := s.bus.Property(ctx, s.d.Dest, s.d.Path, s.d.Iface, "LidClosed")
	if err != nil {
		return false, err
	}
	return normalizeReply(v), nil
}
