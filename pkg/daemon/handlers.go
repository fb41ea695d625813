package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/config"
	"github.com/charlie0129/powerd/pkg/power"
	"github.com/charlie0129/powerd/pkg/powerinfo"
	"github.com/charlie0129/powerd/pkg/version"
)

const wsWriteTimeout = 10 * time.Second

func abort(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func reloadConfig(c *gin.Context) {
	if err := mgr.UpdateConfig(c.Request.Context()); err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "ok")
}

func saveConfig(c *gin.Context) bool {
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return false
	}
	return true
}

func setLockOnSleep(c *gin.Context) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	conf.SetLockOnSleep(b)
	if !saveConfig(c) {
		return
	}

	logrus.Infof("set lock on sleep to %t", b)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func setDisableLidOnExternalMonitors(c *gin.Context) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	conf.SetDisableLidOnExternalMonitors(b)
	if !saveConfig(c) {
		return
	}

	logrus.Infof("set disable lid action on external monitors to %t", b)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func setCriticalBattery(c *gin.Context) {
	var l int
	if err := c.BindJSON(&l); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if l < 0 || l > 100 {
		abort(c, http.StatusBadRequest, fmt.Errorf("critical battery level must be between 0 and 100, got %d", l))
		return
	}

	conf.SetCriticalBattery(l)
	if !saveConfig(c) {
		return
	}

	logrus.Infof("set critical battery level to %d%%", l)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set critical battery level to %d%%", l))
}

// IdlePolicyRequest is the body of PUT /idle/:source.
type IdlePolicyRequest struct {
	Timeout int    `json:"timeout"`
	Action  string `json:"action"`
}

func setIdlePolicy(c *gin.Context) {
	var onBattery bool
	switch c.Param("source") {
	case "battery":
		onBattery = true
	case "ac":
	default:
		abort(c, http.StatusNotFound, fmt.Errorf("unknown power source %q", c.Param("source")))
		return
	}

	var req IdlePolicyRequest
	if err := c.BindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if req.Timeout < 0 {
		abort(c, http.StatusBadRequest, fmt.Errorf("timeout must not be negative, got %d", req.Timeout))
		return
	}
	action, err := power.ParsePolicyAction(req.Action)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	conf.SetSuspendTimeout(onBattery, req.Timeout)
	conf.SetSuspendAction(onBattery, string(action))
	if !saveConfig(c) {
		return
	}

	logrus.WithFields(logrus.Fields{
		"onBattery": onBattery,
		"timeout":   req.Timeout,
		"action":    action,
	}).Info("set idle policy")

	c.IndentedJSON(http.StatusCreated, "ok")
}

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, mgr.Status(c.Request.Context()))
}

func getDevices(c *gin.Context) {
	devices := mgr.Devices(c.Request.Context())
	ret := make([]powerinfo.Device, 0, len(devices))
	for _, d := range devices {
		ret = append(ret, powerinfo.Device{
			Path:        d.Path,
			IsBattery:   d.IsBattery,
			IsPresent:   d.IsPresent,
			NativePath:  d.NativePath,
			Percentage:  d.Percentage,
			TimeToEmpty: d.TimeToEmpty,
			TimeToFull:  d.TimeToFull,
		})
	}
	c.IndentedJSON(http.StatusOK, ret)
}

// HostInfo describes the machine the daemon runs on.
type HostInfo struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform"`
	PlatformVersion string  `json:"platformVersion"`
	KernelVersion   string  `json:"kernelVersion"`
	Uptime          uint64  `json:"uptime"`
	CPUUsage        float64 `json:"cpuUsage"`
	MemoryUsage     float64 `json:"memoryUsage"`
}

func getHost(c *gin.Context) {
	info, err := host.InfoWithContext(c.Request.Context())
	if err != nil {
		logrus.Errorf("getHost failed: %v", err)
		abort(c, http.StatusInternalServerError, err)
		return
	}

	ret := HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Uptime:          info.Uptime,
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		ret.CPUUsage = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		ret.MemoryUsage = vm.UsedPercent
	}

	c.IndentedJSON(http.StatusOK, ret)
}

func getTicks(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ticks.Times())
}

func boolQuery(f func(*power.Manager, context.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, f(mgr, c.Request.Context()))
	}
}

func getBatteryLeft(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, mgr.BatteryLeft(c.Request.Context()))
}

func getTimeToEmpty(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, mgr.TimeToEmpty(c.Request.Context()))
}

func getTimeToFull(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, mgr.TimeToFull(c.Request.Context()))
}

// command runs an action and reports its outcome. An empty outcome means
// success.
func command(f func(*power.Manager, context.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome := f(mgr, c.Request.Context())
		if outcome != "" {
			logrus.WithField("path", c.Request.URL.Path).Errorf("command failed: %s", outcome)
			abort(c, http.StatusInternalServerError, errors.New(outcome))
			return
		}
		c.IndentedJSON(http.StatusCreated, "ok")
	}
}

func toInhibitors(in []power.Inhibitor) []powerinfo.Inhibitor {
	ret := make([]powerinfo.Inhibitor, 0, len(in))
	for _, i := range in {
		ret = append(ret, powerinfo.Inhibitor{
			Cookie:      i.Cookie,
			Application: i.Application,
			Reason:      i.Reason,
		})
	}
	return ret
}

func getInhibitors(c *gin.Context) {
	ctx := c.Request.Context()
	c.IndentedJSON(http.StatusOK, powerinfo.Inhibitors{
		ScreenSaver:     toInhibitors(mgr.Inhibitors(ctx, power.ScreenSaver)),
		PowerManagement: toInhibitors(mgr.Inhibitors(ctx, power.PowerManagement)),
	})
}

func getInhibitorApplications(c *gin.Context) {
	class, err := power.ParseInhibitClass(c.Param("class"))
	if err != nil {
		abort(c, http.StatusNotFound, err)
		return
	}

	var apps []string
	if class == power.ScreenSaver {
		apps = mgr.ScreenSaverInhibitors(c.Request.Context())
	} else {
		apps = mgr.PowerManagementInhibitors(c.Request.Context())
	}
	if apps == nil {
		apps = []string{}
	}
	c.IndentedJSON(http.StatusOK, apps)
}

func inhibitorParams(c *gin.Context) (power.InhibitClass, uint32, bool) {
	class, err := power.ParseInhibitClass(c.Param("class"))
	if err != nil {
		abort(c, http.StatusNotFound, err)
		return 0, 0, false
	}
	cookie, err := strconv.ParseUint(c.Param("cookie"), 10, 32)
	if err != nil || cookie == 0 {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid cookie %q", c.Param("cookie")))
		return 0, 0, false
	}
	return class, uint32(cookie), true
}

// InhibitRequest is the optional body of PUT /inhibitors/:class/:cookie.
type InhibitRequest struct {
	Application string `json:"application"`
	Reason      string `json:"reason"`
}

func addInhibitor(c *gin.Context) {
	class, cookie, ok := inhibitorParams(c)
	if !ok {
		return
	}

	var req InhibitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if req.Application == "" {
		req.Application = "unknown"
	}

	if err := mgr.AddInhibitor(c.Request.Context(), class, cookie, req.Application, req.Reason); err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, cookie)
}

func removeInhibitor(c *gin.Context) {
	class, cookie, ok := inhibitorParams(c)
	if !ok {
		return
	}

	if !mgr.RemoveInhibitor(c.Request.Context(), class, cookie) {
		abort(c, http.StatusNotFound, fmt.Errorf("no %s inhibitor with cookie %d", class, cookie))
		return
	}

	c.IndentedJSON(http.StatusOK, "ok")
}

// streamEvents sends every event as a server-sent event until the client
// goes away.
func streamEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

var upgrader = websocket.Upgrader{
	// Only local clients can reach the unix socket.
	CheckOrigin: func(*http.Request) bool { return true },
}

// websocketEvents writes every event as a JSON message until the client
// closes the connection.
func websocketEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Read until the client goes away. Incoming messages are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				logrus.Debugf("websocket write error: %v", err)
				return
			}
		}
	}
}
