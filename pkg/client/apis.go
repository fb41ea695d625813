package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/powerd/pkg/config"
	"github.com/charlie0129/powerd/pkg/powerinfo"
)

func (c *Client) getBool(path, what string) (bool, error) {
	ret, err := c.Get(path)
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	return parseBoolResponse(ret)
}

func (c *Client) getJSON(path, what string, v interface{}) error {
	ret, err := c.Get(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	if err := json.Unmarshal([]byte(ret), v); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return nil
}

func (c *Client) CanRestart() (bool, error) { return c.getBool("/can-restart", "restart capability") }
func (c *Client) CanPowerOff() (bool, error) {
	return c.getBool("/can-poweroff", "poweroff capability")
}
func (c *Client) CanSuspend() (bool, error) { return c.getBool("/can-suspend", "suspend capability") }
func (c *Client) CanHibernate() (bool, error) {
	return c.getBool("/can-hibernate", "hibernate capability")
}
func (c *Client) CanHybridSleep() (bool, error) {
	return c.getBool("/can-hybrid-sleep", "hybrid sleep capability")
}
func (c *Client) IsDocked() (bool, error)     { return c.getBool("/docked", "dock state") }
func (c *Client) LidIsPresent() (bool, error) { return c.getBool("/lid-present", "lid presence") }
func (c *Client) LidIsClosed() (bool, error)  { return c.getBool("/lid-closed", "lid state") }
func (c *Client) OnBattery() (bool, error)    { return c.getBool("/on-battery", "power source") }
func (c *Client) HasBattery() (bool, error)   { return c.getBool("/has-battery", "battery presence") }

func (c *Client) BatteryLeft() (float64, error) {
	var left float64
	err := c.getJSON("/battery-left", "battery charge", &left)
	return left, err
}

func (c *Client) TimeToEmpty() (int64, error) {
	var secs int64
	err := c.getJSON("/time-to-empty", "time to empty", &secs)
	return secs, err
}

func (c *Client) TimeToFull() (int64, error) {
	var secs int64
	err := c.getJSON("/time-to-full", "time to full", &secs)
	return secs, err
}

func (c *Client) GetStatus() (*powerinfo.Status, error) {
	var st powerinfo.Status
	if err := c.getJSON("/status", "status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) GetDevices() ([]powerinfo.Device, error) {
	var devices []powerinfo.Device
	err := c.getJSON("/devices", "devices", &devices)
	return devices, err
}

func (c *Client) GetInhibitors() (*powerinfo.Inhibitors, error) {
	var inh powerinfo.Inhibitors
	if err := c.getJSON("/inhibitors", "inhibitors", &inh); err != nil {
		return nil, err
	}
	return &inh, nil
}

// GetInhibitorApplications lists the applications holding inhibitors of
// class, which is "screensaver" or "powermanagement".
func (c *Client) GetInhibitorApplications(class string) ([]string, error) {
	var apps []string
	err := c.getJSON("/inhibitors/"+url.PathEscape(class), class+" inhibitors", &apps)
	return apps, err
}

func (c *Client) AddInhibitor(class string, cookie uint32, application, reason string) (string, error) {
	payload, err := json.Marshal(map[string]string{"application": application, "reason": reason})
	if err != nil {
		return "", err
	}
	return c.Put(fmt.Sprintf("/inhibitors/%s/%d", url.PathEscape(class), cookie), string(payload))
}

func (c *Client) RemoveInhibitor(class string, cookie uint32) (string, error) {
	return c.Delete(fmt.Sprintf("/inhibitors/%s/%d", url.PathEscape(class), cookie))
}

func (c *Client) Restart() (string, error)     { return c.Post("/restart", "") }
func (c *Client) PowerOff() (string, error)    { return c.Post("/poweroff", "") }
func (c *Client) Suspend() (string, error)     { return c.Post("/suspend", "") }
func (c *Client) Hibernate() (string, error)   { return c.Post("/hibernate", "") }
func (c *Client) HybridSleep() (string, error) { return c.Post("/hybrid-sleep", "") }
func (c *Client) Sleep() (string, error)       { return c.Post("/sleep", "") }
func (c *Client) Shutdown() (string, error)    { return c.Post("/shutdown", "") }
func (c *Client) LockScreen() (string, error)  { return c.Post("/lock", "") }
func (c *Client) ReloadConfig() (string, error) {
	return c.Post("/config/reload", "")
}

func (c *Client) SetLockOnSleep(enabled bool) (string, error) {
	return c.Put("/lock-on-sleep", strconv.FormatBool(enabled))
}

func (c *Client) SetDisableLidOnExternalMonitors(enabled bool) (string, error) {
	return c.Put("/disable-lid-on-external-monitors", strconv.FormatBool(enabled))
}

func (c *Client) SetCriticalBattery(level int) (string, error) {
	return c.Put("/critical-battery", strconv.Itoa(level))
}

// SetIdlePolicy sets the idle timeout in minutes and action for source,
// which is "battery" or "ac".
func (c *Client) SetIdlePolicy(source string, timeout int, action string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{"timeout": timeout, "action": action})
	if err != nil {
		return "", err
	}
	return c.Put("/idle/"+url.PathEscape(source), string(payload))
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	var conf config.RawFileConfig
	if err := c.getJSON("/config", "config", &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// HostInfo mirrors the daemon's GET /host response.
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

func (c *Client) GetHost() (*HostInfo, error) {
	var h HostInfo
	if err := c.getJSON("/host", "host info", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) GetVersion() (string, error) {
	var v string
	if err := c.getJSON("/version", "version", &v); err != nil {
		return "", err
	}
	return v, nil
}

func parseBoolResponse(resp string) (bool, error) {
	switch resp {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, pkgerrors.Errorf("unexpected response: %s", resp)
	}
}
