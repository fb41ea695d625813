package power

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/events"
	"github.com/charlie0129/powerd/pkg/powerinfo"
)

// ErrStopped is returned by Manager calls made after Run has returned.
var ErrStopped = errors.New("manager stopped")

// Locker locks the screen.
type Locker interface {
	Lock(ctx context.Context) error
}

// Options wires a Manager to its collaborators. Any field may be left
// nil, in which case the related feature degrades to its safe default.
type Options struct {
	Selector           *Selector
	Devices            DeviceService
	DeviceIgnorePrefix string
	Properties         Properties
	Events             EventSource
	Idle               IdleSource
	Displays           Displays
	Locker             Locker
	Settings           func() Settings
	Bus                *events.Bus
	// Timeout bounds every backend round trip.
	Timeout time.Duration
}

// Manager owns all mutable power state. Run executes every mutation on a
// single goroutine; the exported methods submit work to it and wait.
type Manager struct {
	opts Options
	bus  *events.Bus

	registry   *Registry
	tracker    *Tracker
	ss         *Ledger
	pm         *Ledger
	idle       IdleScheduler
	dispatcher *Dispatcher

	reqs    chan func(context.Context)
	stopped chan struct{}
	// ctx is the Run context, only touched from the actor.
	ctx context.Context
}

func NewManager(opts Options) *Manager {
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Selector == nil {
		opts.Selector = NewSelector(opts.Timeout)
	}
	if opts.Settings == nil {
		opts.Settings = DefaultSettings
	}
	m := &Manager{
		opts:       opts,
		bus:        opts.Bus,
		registry:   NewRegistry(opts.Devices, opts.DeviceIgnorePrefix, opts.Bus),
		tracker:    NewTracker(opts.Bus),
		ss:         NewLedger(),
		pm:         NewLedger(),
		dispatcher: NewDispatcher(opts.Displays),
		reqs:       make(chan func(context.Context), 64),
		stopped:    make(chan struct{}),
		ctx:        context.Background(),
	}

	m.registry.SetTimeout(opts.Timeout)

	// Policy handlers go first so they run before any external handler.
	m.bus.On(events.DevicesUpdated, func(any) {
		m.checkCritical(m.ctx, m.opts.Settings(), m.onBattery(m.ctx))
	})
	m.bus.On(events.LidClosed, func(any) {
		s := m.opts.Settings()
		m.perform(m.ctx, "lid", m.dispatcher.LidAction(s, m.onBattery(m.ctx)))
	})

	return m
}

// Bus returns the event bus the Manager emits on.
func (m *Manager) Bus() *events.Bus { return m.bus }

// Run processes submitted work until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.stopped)
	m.ctx = ctx
	for {
		select {
		case f := <-m.reqs:
			f(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} { return m.stopped }

// post queues f without waiting for it.
func (m *Manager) post(f func(context.Context)) {
	select {
	case m.reqs <- f:
	case <-m.stopped:
	}
}

// Job states for do. A job either never runs and its caller sees the
// cancellation, or it runs to completion and its caller waits for it.
const (
	jobPending int32 = iota
	jobRunning
	jobAbandoned
)

// do runs f on the actor and waits for it to finish. When ctx ends before
// f starts, f is skipped and ctx.Err() is returned.
func (m *Manager) do(ctx context.Context, f func(context.Context)) error {
	var state atomic.Int32
	done := make(chan struct{})
	job := func(actx context.Context) {
		if !state.CompareAndSwap(jobPending, jobRunning) {
			return
		}
		defer close(done)
		f(actx)
	}
	select {
	case m.reqs <- job:
	case <-m.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-m.stopped:
		return finished(done)
	case <-ctx.Done():
	}
	if state.CompareAndSwap(jobPending, jobAbandoned) {
		return ctx.Err()
	}
	// Already running: its effects land, so report them.
	select {
	case <-done:
		return nil
	case <-m.stopped:
		return finished(done)
	}
}

// finished reports whether a job completed before the actor stopped.
func finished(done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	default:
		return ErrStopped
	}
}

// query runs f on the actor and returns its result, or the zero value if
// the actor could not run it.
func query[T any](ctx context.Context, m *Manager, f func(context.Context) T) T {
	res := make(chan T, 1)
	if err := m.do(ctx, func(actx context.Context) { res <- f(actx) }); err != nil {
		logrus.WithError(err).Debug("query dropped")
		var zero T
		return zero
	}
	return <-res
}

// command runs f on the actor and returns its outcome. An actor that could
// not run f is an outcome too.
func (m *Manager) command(ctx context.Context, f func(context.Context) string) string {
	res := make(chan string, 1)
	if err := m.do(ctx, func(actx context.Context) { res <- f(actx) }); err != nil {
		return err.Error()
	}
	return <-res
}

func (m *Manager) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opts.Timeout)
}

func (m *Manager) poll(ctx context.Context) State {
	cctx, cancel := m.bound(ctx)
	defer cancel()
	return Poll(cctx, m.opts.Properties)
}

func (m *Manager) onBattery(ctx context.Context) bool {
	if m.opts.Properties == nil {
		return false
	}
	cctx, cancel := m.bound(ctx)
	defer cancel()
	return m.opts.Properties.OnBattery(cctx)
}

func (m *Manager) subscribe() {
	if m.opts.Events == nil {
		return
	}
	sink := func(e Event) {
		m.post(func(ctx context.Context) { m.handleEvent(ctx, e) })
	}
	if err := m.opts.Events.Subscribe(sink); err != nil {
		logrus.WithError(err).Error("failed to subscribe to backend events")
	}
}

// Start subscribes to backend events, scans devices and records the first
// state.
func (m *Manager) Start(ctx context.Context) error {
	return m.do(ctx, func(actx context.Context) {
		m.subscribe()
		m.registry.Scan(actx)
		m.tracker.Observe(m.poll(actx))
		m.dispatcher.ProbeInternal()
		logrus.WithFields(logrus.Fields{
			"devices":  m.registry.Len(),
			"internal": m.dispatcher.Internal(),
		}).Info("power manager started")
	})
}

func (m *Manager) handleEvent(ctx context.Context, e Event) {
	logrus.WithFields(logrus.Fields{
		"kind": e.Kind.String(),
		"path": e.Path,
	}).Debug("backend event")

	switch e.Kind {
	case EventDeviceAdded:
		m.registry.DeviceAdded(ctx, e.Path)
	case EventDeviceRemoved:
		m.registry.DeviceRemoved(ctx, e.Path)
	case EventChanged:
		if e.Path != "" {
			m.registry.Changed(ctx, e.Path)
		}
		m.tracker.Observe(m.poll(ctx))
		m.bus.Emit(events.DevicesUpdated, nil)
	case EventSleep:
		m.bus.Emit(events.PrepareForSuspend, events.SuspendEvent{Sleeping: e.Sleeping})
	}
}

// Tick runs one idle period.
func (m *Manager) Tick(ctx context.Context) error {
	return m.do(ctx, m.tick)
}

func (m *Manager) tick(ctx context.Context) {
	st := m.poll(ctx)
	m.tracker.Observe(st)
	m.registry.UpdateBattery(ctx, st.OnBattery)

	s := m.opts.Settings()
	minutes := m.idleMinutes()
	policy := s.Idle(st.OnBattery)
	inhibited := !m.pm.Empty()

	logrus.WithFields(logrus.Fields{
		"ticks":     m.idle.Count(),
		"idle":      minutes,
		"timeout":   policy.Timeout,
		"inhibited": inhibited,
	}).Debug("idle tick")

	if m.idle.Tick(minutes, policy, inhibited) {
		m.perform(ctx, "idle", policy.Action)
	}
	m.checkCritical(ctx, s, st.OnBattery)
}

// ResetIdle restarts the idle count, e.g. after ticks were missed while the
// machine slept.
func (m *Manager) ResetIdle(ctx context.Context) error {
	return m.do(ctx, func(context.Context) { m.idle.Reset() })
}

func (m *Manager) idleMinutes() int {
	if m.opts.Idle == nil {
		return 0
	}
	n, err := m.opts.Idle.IdleMinutes()
	if err != nil {
		logrus.WithError(err).Debug("failed to read idle time")
		return 0
	}
	return n
}

func (m *Manager) checkCritical(ctx context.Context, s Settings, onBattery bool) {
	if a := m.dispatcher.CriticalAction(s, m.registry.BatteryLeft(), onBattery); a != PolicyNone {
		logrus.WithField("left", m.registry.BatteryLeft()).Warn("battery critical")
		m.perform(ctx, "critical", a)
	}
}

// perform runs a policy action and announces it. It returns the outcome.
func (m *Manager) perform(ctx context.Context, source string, a PolicyAction) string {
	var outcome string
	switch a {
	case PolicyNone, "":
		return ""
	case PolicyLock:
		outcome = m.lock(ctx)
	case PolicySleep:
		outcome = m.checked(ctx, ActSuspend)
	case PolicyHibernate:
		outcome = m.checked(ctx, ActHibernate)
	case PolicyShutdown:
		outcome = m.checked(ctx, ActPowerOff)
	default:
		outcome = fmt.Sprintf("unknown action %q", a)
	}

	logrus.WithFields(logrus.Fields{
		"source":  source,
		"action":  string(a),
		"outcome": outcome,
	}).Info("policy action dispatched")

	m.bus.Emit(events.ActionDispatched, events.ActionEvent{
		Source:  source,
		Action:  string(a),
		Outcome: outcome,
		Ts:      time.Now().Unix(),
	})
	return outcome
}

// checked executes a only if the backends report it is allowed.
func (m *Manager) checked(ctx context.Context, a Action) string {
	if !m.opts.Selector.Query(ctx, a.Capability()) {
		return fmt.Sprintf("%s not allowed", a)
	}
	return m.opts.Selector.Execute(ctx, a)
}

func (m *Manager) lock(ctx context.Context) string {
	if m.opts.Locker == nil {
		return "no screen locker configured"
	}
	if err := m.opts.Locker.Lock(ctx); err != nil {
		logrus.WithError(err).Error("failed to lock screen")
		return err.Error()
	}
	return ""
}

// CheckLiveness repairs a severed event subscription with a full
// resubscribe and rescan, and rescans when the device service is gone.
func (m *Manager) CheckLiveness(ctx context.Context) error {
	return m.do(ctx, func(actx context.Context) {
		if m.opts.Events != nil && !m.opts.Events.Alive() {
			logrus.Warn("event subscription lost, resubscribing")
			if err := m.opts.Events.Close(); err != nil {
				logrus.WithError(err).Debug("failed to release stale subscription")
			}
			m.subscribe()
			m.registry.Scan(actx)
			m.tracker.Observe(m.poll(actx))
			return
		}
		if m.opts.Devices != nil {
			cctx, cancel := m.bound(actx)
			ok := m.opts.Devices.Available(cctx)
			cancel()
			if !ok {
				m.registry.Scan(actx)
			}
		}
	})
}

// Close releases the event subscription.
func (m *Manager) Close() error {
	if m.opts.Events == nil {
		return nil
	}
	return m.opts.Events.Close()
}

func (m *Manager) can(ctx context.Context, c Capability) bool {
	return query(ctx, m, func(actx context.Context) bool {
		return m.opts.Selector.Query(actx, c)
	})
}

func (m *Manager) CanRestart(ctx context.Context) bool     { return m.can(ctx, CapRestart) }
func (m *Manager) CanPowerOff(ctx context.Context) bool    { return m.can(ctx, CapPowerOff) }
func (m *Manager) CanSuspend(ctx context.Context) bool     { return m.can(ctx, CapSuspend) }
func (m *Manager) CanHibernate(ctx context.Context) bool   { return m.can(ctx, CapHibernate) }
func (m *Manager) CanHybridSleep(ctx context.Context) bool { return m.can(ctx, CapHybridSleep) }

func (m *Manager) property(ctx context.Context, f func(context.Context, Properties) bool) bool {
	return query(ctx, m, func(actx context.Context) bool {
		if m.opts.Properties == nil {
			return false
		}
		cctx, cancel := m.bound(actx)
		defer cancel()
		return f(cctx, m.opts.Properties)
	})
}

func (m *Manager) IsDocked(ctx context.Context) bool {
	return m.property(ctx, func(c context.Context, p Properties) bool { return p.IsDocked(c) })
}

func (m *Manager) LidIsPresent(ctx context.Context) bool {
	return m.property(ctx, func(c context.Context, p Properties) bool { return p.LidIsPresent(c) })
}

func (m *Manager) LidIsClosed(ctx context.Context) bool {
	return m.property(ctx, func(c context.Context, p Properties) bool { return p.LidIsClosed(c) })
}

func (m *Manager) OnBattery(ctx context.Context) bool {
	return m.property(ctx, func(c context.Context, p Properties) bool { return p.OnBattery(c) })
}

// BatteryLeft refreshes the batteries when on battery and returns the mean
// charge.
func (m *Manager) BatteryLeft(ctx context.Context) float64 {
	return query(ctx, m, func(actx context.Context) float64 {
		m.registry.UpdateBattery(actx, m.onBattery(actx))
		return m.registry.BatteryLeft()
	})
}

func (m *Manager) HasBattery(ctx context.Context) bool {
	return query(ctx, m, func(context.Context) bool { return m.registry.HasBattery() })
}

func (m *Manager) TimeToEmpty(ctx context.Context) int64 {
	return query(ctx, m, func(context.Context) int64 { return m.registry.TimeToEmpty() })
}

func (m *Manager) TimeToFull(ctx context.Context) int64 {
	return query(ctx, m, func(context.Context) int64 { return m.registry.TimeToFull() })
}

func (m *Manager) Devices(ctx context.Context) []Device {
	return query(ctx, m, func(context.Context) []Device { return m.registry.Devices() })
}

func (m *Manager) ledger(c InhibitClass) *Ledger {
	if c == PowerManagement {
		return m.pm
	}
	return m.ss
}

func (m *Manager) ScreenSaverInhibitors(ctx context.Context) []string {
	return query(ctx, m, func(context.Context) []string { return m.ss.Applications() })
}

func (m *Manager) PowerManagementInhibitors(ctx context.Context) []string {
	return query(ctx, m, func(context.Context) []string { return m.pm.Applications() })
}

// Inhibitors lists the full entries of one class.
func (m *Manager) Inhibitors(ctx context.Context, c InhibitClass) []Inhibitor {
	return query(ctx, m, func(context.Context) []Inhibitor { return m.ledger(c).List() })
}

// AddInhibitor records an inhibitor. A new power-management inhibitor
// restarts the idle count.
func (m *Manager) AddInhibitor(ctx context.Context, c InhibitClass, cookie uint32, app, reason string) error {
	return m.do(ctx, func(context.Context) {
		isNew := m.ledger(c).Add(Inhibitor{Cookie: cookie, Application: app, Reason: reason})
		if isNew && c == PowerManagement {
			m.idle.Reset()
		}
		logrus.WithFields(logrus.Fields{
			"class":       c.String(),
			"cookie":      cookie,
			"application": app,
			"reason":      reason,
		}).Info("inhibitor added")
		m.bus.Emit(events.InhibitorsUpdated, nil)
	})
}

// RemoveInhibitor drops an inhibitor and reports whether it was held.
func (m *Manager) RemoveInhibitor(ctx context.Context, c InhibitClass, cookie uint32) bool {
	return query(ctx, m, func(context.Context) bool {
		if !m.ledger(c).Remove(cookie) {
			return false
		}
		logrus.WithFields(logrus.Fields{
			"class":  c.String(),
			"cookie": cookie,
		}).Info("inhibitor removed")
		m.bus.Emit(events.InhibitorsUpdated, nil)
		return true
	})
}

func (m *Manager) execute(ctx context.Context, a Action) string {
	return m.command(ctx, func(actx context.Context) string {
		return m.opts.Selector.Execute(actx, a)
	})
}

func (m *Manager) Restart(ctx context.Context) string     { return m.execute(ctx, ActRestart) }
func (m *Manager) PowerOff(ctx context.Context) string    { return m.execute(ctx, ActPowerOff) }
func (m *Manager) Suspend(ctx context.Context) string     { return m.execute(ctx, ActSuspend) }
func (m *Manager) Hibernate(ctx context.Context) string   { return m.execute(ctx, ActHibernate) }
func (m *Manager) HybridSleep(ctx context.Context) string { return m.execute(ctx, ActHybridSleep) }

// Sleep suspends if the backends allow it.
func (m *Manager) Sleep(ctx context.Context) string {
	return m.command(ctx, func(actx context.Context) string { return m.checked(actx, ActSuspend) })
}

// Shutdown powers off if the backends allow it.
func (m *Manager) Shutdown(ctx context.Context) string {
	return m.command(ctx, func(actx context.Context) string { return m.checked(actx, ActPowerOff) })
}

func (m *Manager) LockScreen(ctx context.Context) string {
	return m.command(ctx, m.lock)
}

// UpdateConfig asks listeners to reload their settings.
func (m *Manager) UpdateConfig(ctx context.Context) error {
	return m.do(ctx, func(context.Context) {
		m.bus.Emit(events.ConfigUpdateRequested, nil)
	})
}

// Status returns one consistent snapshot.
func (m *Manager) Status(ctx context.Context) powerinfo.Status {
	return query(ctx, m, func(actx context.Context) powerinfo.Status {
		st := m.poll(actx)
		m.registry.UpdateBattery(actx, st.OnBattery)
		left := m.registry.BatteryLeft()
		s := m.opts.Settings()
		sel := m.opts.Selector
		return powerinfo.Status{
			OnBattery:  st.OnBattery,
			LidPresent: st.LidPresent,
			LidClosed:  st.LidClosed,
			Docked:     st.Docked,
			Battery: powerinfo.Battery{
				Present:     m.registry.HasBattery(),
				Left:        left,
				Charging:    !st.OnBattery && left > 0 && left <= 99,
				TimeToEmpty: m.registry.TimeToEmpty(),
				TimeToFull:  m.registry.TimeToFull(),
			},
			Capabilities: powerinfo.Capabilities{
				Restart:     sel.Query(actx, CapRestart),
				PowerOff:    sel.Query(actx, CapPowerOff),
				Suspend:     sel.Query(actx, CapSuspend),
				Hibernate:   sel.Query(actx, CapHibernate),
				HybridSleep: sel.Query(actx, CapHybridSleep),
			},
			IdleTicks:                 m.idle.Count(),
			ScreenSaverInhibitors:     m.ss.Applications(),
			PowerManagementInhibitors: m.pm.Applications(),
			ExternalMonitor:           m.dispatcher.ExternalMonitorConnected(s.VirtualOutputPrefix),
		}
	})
}
