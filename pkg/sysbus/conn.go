// Package sysbus talks to the power related services on the D-Bus system
// bus: UPower, systemd-logind and ConsoleKit.
package sysbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	dbusPropertiesIface = "org.freedesktop.DBus.Properties"
	dbusIntrospect      = "org.freedesktop.DBus.Introspectable.Introspect"
	dbusNameHasOwner    = "org.freedesktop.DBus.NameHasOwner"
)

// Bus is a reconnectable bus connection. Consumers fetch the current
// connection on every call so that a reconnect is picked up transparently.
type Bus struct {
	mu   sync.Mutex
	conn *dbus.Conn
	dial func() (*dbus.Conn, error)
}

// ConnectSystem opens a private connection to the system bus.
func ConnectSystem() (*Bus, error) {
	return connect(func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() })
}

// ConnectSession opens a private connection to the session bus.
func ConnectSession() (*Bus, error) {
	return connect(func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() })
}

func connect(dial func() (*dbus.Conn, error)) (*Bus, error) {
	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus: %w", err)
	}
	return &Bus{conn: conn, dial: dial}, nil
}

// Conn returns the current connection, which may be nil or closed.
func (b *Bus) Conn() *dbus.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Bus) Connected() bool {
	c := b.Conn()
	return c != nil && c.Connected()
}

// Reconnect replaces the connection with a fresh one.
func (b *Bus) Reconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
	}
	conn, err := b.dial()
	if err != nil {
		b.conn = nil
		return fmt.Errorf("failed to reconnect to bus: %w", err)
	}
	b.conn = conn
	logrus.Info("reconnected to bus")
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *Bus) object(dest, path string) (dbus.BusObject, error) {
	c := b.Conn()
	if c == nil || !c.Connected() {
		return nil, dbus.ErrClosed
	}
	return c.Object(dest, dbus.ObjectPath(path)), nil
}

// HasOwner reports whether name is currently owned on the bus.
func (b *Bus) HasOwner(ctx context.Context, name string) bool {
	c := b.Conn()
	if c == nil || !c.Connected() {
		return false
	}
	var has bool
	if err := c.BusObject().CallWithContext(ctx, dbusNameHasOwner, 0, name).Store(&has); err != nil {
		logrus.WithField("name", name).WithError(err).Debug("NameHasOwner failed")
		return false
	}
	return has
}

// Call invokes method on dest at path and returns the reply body.
func (b *Bus) Call(ctx context.Context, dest, path, method string, args ...interface{}) ([]interface{}, error) {
	obj, err := b.object(dest, path)
	if err != nil {
		return nil, err
	}
	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Body, nil
}

// Property reads one property.
func (b *Bus) Property(ctx context.Context, dest, path, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	obj, err := b.object(dest, path)
	if err != nil {
		return v, err
	}
	err = obj.CallWithContext(ctx, dbusPropertiesIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

// BoolProperty reads a boolean property, returning false on any failure.
func (b *Bus) BoolProperty(ctx context.Context, dest, path, iface, prop string) bool {
	v, err := b.Property(ctx, dest, path, iface, prop)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"dest":     dest,
			"property": prop,
		}).WithError(err).Debug("failed to read property")
		return false
	}
	on, _ := v.Value().(bool)
	return on
}

// Properties reads every property of iface.
func (b *Bus) Properties(ctx context.Context, dest, path, iface string) (map[string]dbus.Variant, error) {
	obj, err := b.object(dest, path)
	if err != nil {
		return nil, err
	}
	props := make(map[string]dbus.Variant)
	err = obj.CallWithContext(ctx, dbusPropertiesIface+".GetAll", 0, iface).Store(&props)
	return props, err
}
