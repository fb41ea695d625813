// Package screensaver serves the freedesktop ScreenSaver and
// PowerManagement inhibit interfaces on the session bus.
package screensaver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/power"
)

const (
	ScreenSaverName  = "org.freedesktop.ScreenSaver"
	ScreenSaverPath  = "/org/freedesktop/ScreenSaver"
	ScreenSaverIface = ScreenSaverName

	PowerManagementName  = "org.freedesktop.PowerManagement"
	PowerManagementPath  = "/org/freedesktop/PowerManagement/Inhibit"
	PowerManagementIface = PowerManagementName + ".Inhibit"
)

// Target owns the inhibitor ledger. Inhibitors added to it by other means
// are reported by the service as well.
type Target interface {
	AddInhibitor(ctx context.Context, c power.InhibitClass, cookie uint32, app, reason string) error
	RemoveInhibitor(ctx context.Context, c power.InhibitClass, cookie uint32) bool
	Inhibitors(ctx context.Context, c power.InhibitClass) []power.Inhibitor
}

type grant struct {
	class  power.InhibitClass
	sender string
	app    string
}

// Service hands out inhibit cookies and forwards them to a Target. Cookies
// of a caller whose bus name disappears are released.
type Service struct {
	conn    *dbus.Conn
	target  Target
	alloc   *power.CookieAllocator
	timeout time.Duration

	mu     sync.Mutex
	grants map[uint32]grant

	// notifyMu orders HasInhibitChanged emissions.
	notifyMu sync.Mutex
	hasPM    bool

	sigs chan *dbus.Signal
	quit chan struct{}
}

// NewService returns a service forwarding to target. conn may be nil, in
// which case nothing is exported and no signals are emitted.
func NewService(conn *dbus.Conn, target Target, timeout time.Duration) *Service {
	return &Service{
		conn:    conn,
		target:  target,
		alloc:   &power.CookieAllocator{},
		timeout: timeout,
		grants:  make(map[uint32]grant),
	}
}

func (s *Service) context() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

// Inhibit grants a cookie to sender.
func (s *Service) Inhibit(c power.InhibitClass, sender, app, reason string) (uint32, error) {
	ctx, cancel := s.context()
	defer cancel()

	// Cookies handed out elsewhere must not be reused.
	taken := make(map[uint32]bool)
	for _, inh := range s.target.Inhibitors(ctx, c) {
		taken[inh.Cookie] = true
	}

	s.mu.Lock()
	cookie := s.alloc.Next(func(v uint32) bool {
		_, ok := s.grants[v]
		return ok || taken[v]
	})
	if cookie == 0 {
		s.mu.Unlock()
		return 0, fmt.Errorf("no free inhibit cookie")
	}
	s.grants[cookie] = grant{class: c, sender: sender, app: app}
	s.mu.Unlock()

	if err := s.target.AddInhibitor(ctx, c, cookie, app, reason); err != nil {
		s.mu.Lock()
		delete(s.grants, cookie)
		s.mu.Unlock()
		return 0, err
	}
	logrus.WithFields(logrus.Fields{
		"class":       c.String(),
		"sender":      sender,
		"application": app,
		"cookie":      cookie,
	}).Debug("inhibit granted")
	s.InhibitorsChanged()
	return cookie, nil
}

// UnInhibit releases cookie. Releasing an unknown cookie is an error.
func (s *Service) UnInhibit(c power.InhibitClass, cookie uint32) error {
	s.mu.Lock()
	g, ok := s.grants[cookie]
	if !ok || g.class != c {
		s.mu.Unlock()
		return fmt.Errorf("unknown cookie %d", cookie)
	}
	delete(s.grants, cookie)
	s.mu.Unlock()

	ctx, cancel := s.context()
	defer cancel()
	s.target.RemoveInhibitor(ctx, c, cookie)
	s.InhibitorsChanged()
	return nil
}

// HasInhibit reports whether any power-management inhibitor is held,
// whoever added it.
func (s *Service) HasInhibit() bool {
	return len(s.Applications(power.PowerManagement)) > 0
}

// Applications lists the applications holding inhibitors of class c,
// ordered by cookie.
func (s *Service) Applications(c power.InhibitClass) []string {
	ctx, cancel := s.context()
	defer cancel()
	list := s.target.Inhibitors(ctx, c)
	out := make([]string, len(list))
	for i, inh := range list {
		out[i] = inh.Application
	}
	return out
}

// Released drops every cookie held by name.
func (s *Service) Released(name string) {
	s.mu.Lock()
	var gone []uint32
	classes := make(map[uint32]power.InhibitClass)
	for cookie, g := range s.grants {
		if g.sender == name {
			gone = append(gone, cookie)
			classes[cookie] = g.class
			delete(s.grants, cookie)
		}
	}
	s.mu.Unlock()
	if len(gone) == 0 {
		return
	}

	ctx, cancel := s.context()
	defer cancel()
	for _, cookie := range gone {
		s.target.RemoveInhibitor(ctx, classes[cookie], cookie)
	}
	logrus.WithFields(logrus.Fields{
		"sender":  name,
		"cookies": len(gone),
	}).Info("released inhibitors of vanished client")
	s.InhibitorsChanged()
}

// InhibitorsChanged re-reads the power-management ledger and emits
// HasInhibitChanged when its state flipped. It must not be called from
// inside the target's own event handlers, as it queries the target.
func (s *Service) InhibitorsChanged() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	has := s.HasInhibit()
	if has == s.hasPM {
		return
	}
	s.hasPM = has
	if s.conn == nil {
		return
	}
	if err := s.conn.Emit(PowerManagementPath, PowerManagementIface+".HasInhibitChanged", has); err != nil {
		logrus.WithError(err).Warn("failed to emit HasInhibitChanged")
	}
}
