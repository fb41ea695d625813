package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/config"
	"github.com/charlie0129/powerd/pkg/display"
	"github.com/charlie0129/powerd/pkg/events"
	"github.com/charlie0129/powerd/pkg/idle"
	"github.com/charlie0129/powerd/pkg/power"
	"github.com/charlie0129/powerd/pkg/screensaver"
	"github.com/charlie0129/powerd/pkg/sysbus"
	"github.com/charlie0129/powerd/pkg/sysfs"
)

var (
	conf  config.Config
	mgr   *power.Manager
	hub   *events.EventHub
	ticks = newTickLog(60)
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))

	router.GET("/version", getVersion)
	router.GET("/config", getConfig)
	router.POST("/config/reload", reloadConfig)
	router.PUT("/lock-on-sleep", setLockOnSleep)
	router.PUT("/disable-lid-on-external-monitors", setDisableLidOnExternalMonitors)
	router.PUT("/critical-battery", setCriticalBattery)
	router.PUT("/idle/:source", setIdlePolicy)

	router.GET("/status", getStatus)
	router.GET("/devices", getDevices)
	router.GET("/host", getHost)
	router.GET("/ticks", getTicks)

	router.GET("/can-restart", boolQuery((*power.Manager).CanRestart))
	router.GET("/can-poweroff", boolQuery((*power.Manager).CanPowerOff))
	router.GET("/can-suspend", boolQuery((*power.Manager).CanSuspend))
	router.GET("/can-hibernate", boolQuery((*power.Manager).CanHibernate))
	router.GET("/can-hybrid-sleep", boolQuery((*power.Manager).CanHybridSleep))
	router.GET("/docked", boolQuery((*power.Manager).IsDocked))
	router.GET("/lid-present", boolQuery((*power.Manager).LidIsPresent))
	router.GET("/lid-closed", boolQuery((*power.Manager).LidIsClosed))
	router.GET("/on-battery", boolQuery((*power.Manager).OnBattery))
	router.GET("/has-battery", boolQuery((*power.Manager).HasBattery))
	router.GET("/battery-left", getBatteryLeft)
	router.GET("/time-to-empty", getTimeToEmpty)
	router.GET("/time-to-full", getTimeToFull)

	router.POST("/restart", command((*power.Manager).Restart))
	router.POST("/poweroff", command((*power.Manager).PowerOff))
	router.POST("/suspend", command((*power.Manager).Suspend))
	router.POST("/hibernate", command((*power.Manager).Hibernate))
	router.POST("/hybrid-sleep", command((*power.Manager).HybridSleep))
	router.POST("/sleep", command((*power.Manager).Sleep))
	router.POST("/shutdown", command((*power.Manager).Shutdown))
	router.POST("/lock", command((*power.Manager).LockScreen))

	router.GET("/inhibitors", getInhibitors)
	router.GET("/inhibitors/:class", getInhibitorApplications)
	router.PUT("/inhibitors/:class/:cookie", addInhibitor)
	router.DELETE("/inhibitors/:class/:cookie", removeInhibitor)

	router.GET("/events", streamEvents)
	router.GET("/events/ws", websocketEvents)

	return router
}

// backends connects to the system bus and builds everything that talks to
// it. Without a system bus only the sysfs battery fallback is left.
type backends struct {
	system     *sysbus.Bus
	bridge     *sysbus.Bridge
	selector   *power.Selector
	devices    power.DeviceService
	properties power.Properties
	idle       power.IdleSource
	delay      *sysbus.DelayLock
	x11        *idle.X11
}

func newBackends(timeout time.Duration) *backends {
	b := &backends{x11: idle.NewX11(timeout)}
	fallback := sysfs.NewBatteries()

	system, err := sysbus.ConnectSystem()
	if err != nil {
		logrus.WithError(err).Warn("system bus unavailable, using sysfs only")
		b.selector = power.NewSelector(timeout)
		b.devices = fallback
		b.properties = fallback
		b.idle = b.x11
		return b
	}

	upower := sysbus.NewUPower(system)
	logind := sysbus.NewSessionManager(system, sysbus.Logind)
	consoleKit := sysbus.NewSessionManager(system, sysbus.ConsoleKit)

	b.system = system
	b.bridge = sysbus.NewBridge(system, timeout)
	b.selector = power.NewSelector(timeout, logind, consoleKit, upower)
	b.devices = power.FirstAvailable(upower, fallback)
	b.properties = &sysbus.SystemProperties{UPower: upower, Logind: logind, Fallback: fallback}
	b.idle = idle.First(b.x11, idle.NewLogind(system, timeout))
	b.delay = sysbus.NewDelayLock(system, "powerd", "Lock screen before sleep")
	return b
}

func (b *backends) close() {
	if b.delay != nil {
		if err := b.delay.Release(); err != nil {
			logrus.Errorf("failed to release sleep delay lock: %v", err)
		}
	}
	b.x11.Close()
	if b.system != nil {
		if err := b.system.Close(); err != nil {
			logrus.Errorf("failed to close system bus: %v", err)
		}
	}
}

// sleepLock hides a nil *DelayLock behind a nil interface.
func (b *backends) sleepLock() sleepLock {
	if b.delay == nil {
		return nil
	}
	return b.delay
}

// eventSource hides a nil *Bridge behind a nil interface.
func (b *backends) eventSource() power.EventSource {
	if b.bridge == nil {
		return nil
	}
	return b.bridge
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	file, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	conf = file
	logrus.WithFields(file.LogrusFields()).Infof("config loaded")

	timeout := time.Duration(conf.BackendTimeoutSeconds()) * time.Second
	be := newBackends(timeout)
	locker := newCommandLocker(conf)

	hub = events.NewEventHub()
	mgr = power.NewManager(power.Options{
		Selector:           be.selector,
		Devices:            be.devices,
		DeviceIgnorePrefix: sysbus.JobsPrefix,
		Properties:         be.properties,
		Events:             be.eventSource(),
		Idle:               be.idle,
		Displays:           display.NewDRM(),
		Locker:             locker,
		Settings:           func() power.Settings { return settingsFromConfig(conf) },
		Timeout:            timeout,
	})
	bus := mgr.Bus()
	bus.On(events.ConfigUpdateRequested, func(any) { loadConfig() })
	watchSleep(bus, locker, be.sleepLock())
	hub.Forward(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("manager exited: %v", err)
		}
	}()

	if err := mgr.Start(ctx); err != nil {
		logrus.Fatalf("failed to start manager: %v", err)
	}
	if be.delay != nil && conf.LockOnSleep() {
		if err := be.delay.Take(ctx); err != nil {
			logrus.Warnf("failed to take sleep delay lock: %v", err)
		}
	}

	stopScreenSaver := startScreenSaver(timeout)

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := mgr.UpdateConfig(ctx); err != nil {
				logrus.Errorf("failed to request config reload: %v", err)
			}
		}
	}()

	tickInterval := time.Duration(conf.TickIntervalSeconds()) * time.Second
	drv, err := newDriver(
		tickInterval,
		time.Duration(conf.LivenessIntervalSeconds())*time.Second,
		func() {
			if gap := ticks.Record(time.Now()); gap > 0 {
				logrus.WithField("gap", gap.Round(time.Second).String()).Info("ticks missed, restarting idle count")
				if err := mgr.ResetIdle(ctx); err != nil {
					logrus.Debugf("idle reset skipped: %v", err)
				}
			}
			if err := mgr.Tick(ctx); err != nil {
				logrus.Debugf("tick skipped: %v", err)
			}
		},
		func() {
			if err := mgr.CheckLiveness(ctx); err != nil {
				logrus.Debugf("liveness check skipped: %v", err)
			}
		},
	)
	if err != nil {
		logrus.Fatalf("failed to schedule ticks: %v", err)
	}
	drv.Start()

	srv := &http.Server{
		Handler: router,
	}

	// A stale socket from a crashed daemon blocks Listen.
	_ = os.Remove(unixSocketPath)
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(sctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	scancel()

	logrus.Info("stopping tick driver")
	<-drv.Stop().Done()

	stopScreenSaver()

	logrus.Info("stopping manager")
	if err := mgr.Close(); err != nil {
		logrus.Errorf("failed to close event subscription: %v", err)
	}
	cancel()
	<-mgr.Done()

	be.close()

	logrus.Info("exiting")
	return nil
}

// startScreenSaver serves the inhibit interfaces on the session bus and
// returns a function that takes them down again.
func startScreenSaver(timeout time.Duration) func() {
	noop := func() {}
	if !conf.ScreenSaverService() && !conf.PowerManagementService() {
		return noop
	}
	session, err := sysbus.ConnectSession()
	if err != nil {
		logrus.WithError(err).Warn("session bus unavailable, inhibit services disabled")
		return noop
	}
	ss := screensaver.NewService(session.Conn(), mgr, timeout)
	if err := ss.Register(conf.ScreenSaverService(), conf.PowerManagementService()); err != nil {
		logrus.WithError(err).Warn("failed to register inhibit services")
		_ = session.Close()
		return noop
	}
	// Inhibitors added over HTTP change HasInhibit as well. The bus runs
	// handlers inside the manager, so the service re-reads it elsewhere.
	closed := make(chan struct{})
	mgr.Bus().On(events.InhibitorsUpdated, func(any) {
		go func() {
			select {
			case <-closed:
			default:
				ss.InhibitorsChanged()
			}
		}()
	})
	return func() {
		close(closed)
		logrus.Info("releasing session bus names")
		if err := ss.Close(); err != nil {
			logrus.Errorf("failed to close screensaver service: %v", err)
		}
		_ = session.Close()
	}
}

// loadConfig reloads the configuration file. Settings are read on every
// decision, so nothing else needs to be refreshed.
func loadConfig() {
	if err := conf.Load(); err != nil {
		logrus.Errorf("failed to reload config: %v", err)
		return
	}
	logrus.Infof("config reloaded")
}
