package screensaver

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/power"
)

type screenSaverObject struct{ s *Service }

func (o screenSaverObject) Inhibit(sender dbus.Sender, app, reason string) (uint32, *dbus.Error) {
	cookie, err := o.s.Inhibit(power.ScreenSaver, string(sender), app, reason)
	if err != nil {
		return 0, dbus.MakeFailedError(err)
	}
	return cookie, nil
}

func (o screenSaverObject) UnInhibit(cookie uint32) *dbus.Error {
	if err := o.s.UnInhibit(power.ScreenSaver, cookie); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (o screenSaverObject) SimulateUserActivity() *dbus.Error {
	logrus.Debug("SimulateUserActivity")
	return nil
}

type powerManagementObject struct{ s *Service }

func (o powerManagementObject) Inhibit(sender dbus.Sender, app, reason string) (uint32, *dbus.Error) {
	cookie, err := o.s.Inhibit(power.PowerManagement, string(sender), app, reason)
	if err != nil {
		return 0, dbus.MakeFailedError(err)
	}
	return cookie, nil
}

func (o powerManagementObject) UnInhibit(cookie uint32) *dbus.Error {
	if err := o.s.UnInhibit(power.PowerManagement, cookie); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (o powerManagementObject) HasInhibit() (bool, *dbus.Error) {
	return o.s.HasInhibit(), nil
}

func (o powerManagementObject) GetInhibitors() ([]string, *dbus.Error) {
	return o.s.Applications(power.PowerManagement), nil
}

var (
	screenSaverIntrospect = introspect.Interface{
		Name: ScreenSaverIface,
		Methods: []introspect.Method{
			{Name: "Inhibit", Args: []introspect.Arg{
				{Name: "application_name", Type: "s", Direction: "in"},
				{Name: "reason_for_inhibit", Type: "s", Direction: "in"},
				{Name: "cookie", Type: "u", Direction: "out"},
			}},
			{Name: "UnInhibit", Args: []introspect.Arg{
				{Name: "cookie", Type: "u", Direction: "in"},
			}},
			{Name: "SimulateUserActivity"},
		},
	}
	powerManagementIntrospect = introspect.Interface{
		Name: PowerManagementIface,
		Methods: []introspect.Method{
			{Name: "Inhibit", Args: []introspect.Arg{
				{Name: "application", Type: "s", Direction: "in"},
				{Name: "reason", Type: "s", Direction: "in"},
				{Name: "cookie", Type: "u", Direction: "out"},
			}},
			{Name: "UnInhibit", Args: []introspect.Arg{
				{Name: "cookie", Type: "u", Direction: "in"},
			}},
			{Name: "HasInhibit", Args: []introspect.Arg{
				{Name: "has_inhibit", Type: "b", Direction: "out"},
			}},
			{Name: "GetInhibitors", Args: []introspect.Arg{
				{Name: "inhibitors", Type: "as", Direction: "out"},
			}},
		},
		Signals: []introspect.Signal{
			{Name: "HasInhibitChanged", Args: []introspect.Arg{
				{Name: "has_inhibit", Type: "b"},
			}},
		},
	}
)

func (s *Service) export(name string, path dbus.ObjectPath, iface string, obj interface{}, intro introspect.Interface) error {
	if err := s.conn.Export(obj, path, iface); err != nil {
		return fmt.Errorf("failed to export %s: %w", iface, err)
	}
	node := &introspect.Node{
		Name:       string(path),
		Interfaces: []introspect.Interface{introspect.IntrospectData, intro},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection for %s: %w", iface, err)
	}
	reply, err := s.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("%s is already owned by another process", name)
	}
	logrus.WithField("name", name).Info("serving inhibit interface")
	return nil
}

// Register exports the enabled interfaces and starts watching for clients
// that leave the bus.
func (s *Service) Register(screenSaver, powerManagement bool) error {
	if s.conn == nil {
		return fmt.Errorf("no session bus connection")
	}
	if screenSaver {
		if err := s.export(ScreenSaverName, ScreenSaverPath, ScreenSaverIface,
			screenSaverObject{s}, screenSaverIntrospect); err != nil {
			return err
		}
	}
	if powerManagement {
		if err := s.export(PowerManagementName, PowerManagementPath, PowerManagementIface,
			powerManagementObject{s}, powerManagementIntrospect); err != nil {
			return err
		}
	}
	return s.watch()
}

func (s *Service) watch() error {
	if err := s.conn.AddMatchSignal(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return fmt.Errorf("failed to watch bus names: %w", err)
	}
	s.sigs = make(chan *dbus.Signal, 16)
	s.quit = make(chan struct{})
	s.conn.Signal(s.sigs)
	go func(sigs <-chan *dbus.Signal, quit <-chan struct{}) {
		for {
			select {
			case sig, ok := <-sigs:
				if !ok {
					return
				}
				if name, ok := vanished(sig); ok {
					s.Released(name)
				}
			case <-quit:
				return
			}
		}
	}(s.sigs, s.quit)
	return nil
}

// vanished reports the name released by a NameOwnerChanged signal.
func vanished(sig *dbus.Signal) (string, bool) {
	if sig == nil || sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
		return "", false
	}
	name, ok1 := sig.Body[0].(string)
	newOwner, ok2 := sig.Body[2].(string)
	if !ok1 || !ok2 || newOwner != "" {
		return "", false
	}
	return name, true
}

// Close stops watching and releases the bus names.
func (s *Service) Close() error {
	if s.conn == nil {
		return nil
	}
	if s.quit != nil {
		close(s.quit)
		s.conn.RemoveSignal(s.sigs)
		s.quit = nil
	}
	_, _ = s.conn.ReleaseName(ScreenSaverName)
	_, _ = s.conn.ReleaseName(PowerManagementName)
	return nil
}
