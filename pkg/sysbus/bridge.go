package sysbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/power"
)

const prepareForSleep = "PrepareForSleep"

// Bridge subscribes to the signals of UPower and the session managers and
// hands them to a sink as power.Events.
type Bridge struct {
	bus     *Bus
	timeout time.Duration

	mu     sync.Mutex
	conn   *dbus.Conn
	ch     chan *dbus.Signal
	quit   chan struct{}
	active [][]dbus.MatchOption
}

func NewBridge(bus *Bus, timeout time.Duration) *Bridge {
	return &Bridge{bus: bus, timeout: timeout}
}

func matchRules() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchSender(UPowerService),
			dbus.WithMatchInterface(UPowerIface),
		},
		{
			dbus.WithMatchSender(UPowerService),
			dbus.WithMatchInterface(dbusPropertiesIface),
			dbus.WithMatchMember("PropertiesChanged"),
		},
		{
			dbus.WithMatchObjectPath(dbus.ObjectPath(Logind.Path)),
			dbus.WithMatchInterface(Logind.Iface),
			dbus.WithMatchMember(prepareForSleep),
		},
		{
			dbus.WithMatchObjectPath(dbus.ObjectPath(ConsoleKit.Path)),
			dbus.WithMatchInterface(ConsoleKit.Iface),
			dbus.WithMatchMember(prepareForSleep),
		},
	}
}

// Subscribe installs every match rule or none, reconnecting the bus first
// if needed, and starts delivering events to sink.
func (b *Bridge) Subscribe(sink func(power.Event)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return fmt.Errorf("already subscribed")
	}
	if !b.bus.Connected() {
		if err := b.bus.Reconnect(); err != nil {
			return err
		}
	}
	conn := b.bus.Conn()

	ctx, cancel := b.context()
	defer cancel()

	var added [][]dbus.MatchOption
	for _, rule := range matchRules() {
		if err := conn.AddMatchSignalContext(ctx, rule...); err != nil {
			for _, r := range added {
				_ = conn.RemoveMatchSignal(r...)
			}
			return fmt.Errorf("failed to add match rule: %w", err)
		}
		added = append(added, rule)
	}

	ch := make(chan *dbus.Signal, 32)
	quit := make(chan struct{})
	conn.Signal(ch)
	b.conn, b.ch, b.quit, b.active = conn, ch, quit, added

	go deliver(ch, quit, sink)
	logrus.WithField("rules", len(added)).Info("subscribed to power signals")
	return nil
}

func (b *Bridge) context() (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), b.timeout)
}

func deliver(ch <-chan *dbus.Signal, quit <-chan struct{}, sink func(power.Event)) {
	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				logrus.Warn("signal channel closed")
				return
			}
			if e, ok := normalize(sig); ok {
				sink(e)
			}
		case <-quit:
			return
		}
	}
}

// Alive reports whether the subscription's connection is still usable.
func (b *Bridge) Alive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.Connected() && b.conn == b.bus.Conn()
}

// Close releases the subscription. It does not wait for in-flight
// deliveries.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	close(b.quit)
	b.conn.RemoveSignal(b.ch)
	if b.conn.Connected() {
		for _, r := range b.active {
			_ = b.conn.RemoveMatchSignal(r...)
		}
	}
	b.conn, b.ch, b.quit, b.active = nil, nil, nil, nil
	return nil
}

// normalize maps a raw signal onto a power.Event.
func normalize(sig *dbus.Signal) (power.Event, bool) {
	if sig == nil {
		return power.Event{}, false
	}
	switch sig.Name {
	case UPowerIface + ".DeviceAdded", UPowerIface + ".DeviceRemoved", UPowerIface + ".DeviceChanged":
		if len(sig.Body) < 1 {
			return power.Event{}, false
		}
		p, ok := objectPath(sig.Body[0])
		if !ok {
			return power.Event{}, false
		}
		kind := power.EventChanged
		switch sig.Name {
		case UPowerIface + ".DeviceAdded":
			kind = power.EventDeviceAdded
		case UPowerIface + ".DeviceRemoved":
			kind = power.EventDeviceRemoved
		}
		return power.Event{Kind: kind, Path: p}, true
	case UPowerIface + ".Changed":
		return power.Event{Kind: power.EventChanged}, true
	case UPowerIface + ".NotifySleep":
		return power.Event{Kind: power.EventSleep, Sleeping: true}, true
	case UPowerIface + ".NotifyResume":
		return power.Event{Kind: power.EventSleep, Sleeping: false}, true
	case dbusPropertiesIface + ".PropertiesChanged":
		p := string(sig.Path)
		if p == UPowerPath {
			return power.Event{Kind: power.EventChanged}, true
		}
		if strings.HasPrefix(p, UPowerDevicesPath+"/") {
			return power.Event{Kind: power.EventChanged, Path: p}, true
		}
	case Logind.Iface + "." + prepareForSleep, ConsoleKit.Iface + "." + prepareForSleep:
		if len(sig.Body) < 1 {
			return power.Event{}, false
		}
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			return power.Event{}, false
		}
		return power.Event{Kind: power.EventSleep, Sleeping: sleeping}, true
	}
	return power.Event{}, false
}
