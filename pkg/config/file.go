package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/powerd/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		SuspendBatteryTimeout:        ptr.To(15),
		SuspendBatteryAction:         ptr.To("sleep"),
		SuspendACTimeout:             ptr.To(0),
		SuspendACAction:              ptr.To("none"),
		CriticalBattery:              ptr.To(10),
		CriticalAction:               ptr.To("hibernate"),
		LidBatteryAction:             ptr.To("sleep"),
		LidACAction:                  ptr.To("lock"),
		DisableLidOnExternalMonitors: ptr.To(true),
		LockOnSleep:                  ptr.To(true),
		LockCommand:                  ptr.To("xscreensaver-command -lock"),
		VirtualOutputPrefix:          ptr.To("VIRTUAL"),
		TickIntervalSeconds:          ptr.To(60),
		LivenessIntervalSeconds:      ptr.To(30),
		BackendTimeoutSeconds:        ptr.To(2),
		AllowNonRootAccess:           ptr.To(false),
		ScreenSaverService:           ptr.To(true),
		PowerManagementService:       ptr.To(true),
	}
)

// DefaultPath returns $XDG_CONFIG_HOME/powerd/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "/etc"
	}
	return filepath.Join(dir, "powerd", "config.yaml")
}

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk form. Unset fields take their defaults.
type RawFileConfig struct {
	SuspendBatteryTimeout        *int    `json:"suspendBatteryTimeout,omitempty" yaml:"suspendBatteryTimeout,omitempty"`
	SuspendBatteryAction         *string `json:"suspendBatteryAction,omitempty" yaml:"suspendBatteryAction,omitempty"`
	SuspendACTimeout             *int    `json:"suspendACTimeout,omitempty" yaml:"suspendACTimeout,omitempty"`
	SuspendACAction              *string `json:"suspendACAction,omitempty" yaml:"suspendACAction,omitempty"`
	CriticalBattery              *int    `json:"criticalBattery,omitempty" yaml:"criticalBattery,omitempty"`
	CriticalAction               *string `json:"criticalAction,omitempty" yaml:"criticalAction,omitempty"`
	LidBatteryAction             *string `json:"lidBatteryAction,omitempty" yaml:"lidBatteryAction,omitempty"`
	LidACAction                  *string `json:"lidACAction,omitempty" yaml:"lidACAction,omitempty"`
	DisableLidOnExternalMonitors *bool   `json:"disableLidOnExternalMonitors,omitempty" yaml:"disableLidOnExternalMonitors,omitempty"`
	LockOnSleep                  *bool   `json:"lockOnSleep,omitempty" yaml:"lockOnSleep,omitempty"`
	LockCommand                  *string `json:"lockCommand,omitempty" yaml:"lockCommand,omitempty"`
	VirtualOutputPrefix          *string `json:"virtualOutputPrefix,omitempty" yaml:"virtualOutputPrefix,omitempty"`
	TickIntervalSeconds          *int    `json:"tickIntervalSeconds,omitempty" yaml:"tickIntervalSeconds,omitempty"`
	LivenessIntervalSeconds      *int    `json:"livenessIntervalSeconds,omitempty" yaml:"livenessIntervalSeconds,omitempty"`
	BackendTimeoutSeconds        *int    `json:"backendTimeoutSeconds,omitempty" yaml:"backendTimeoutSeconds,omitempty"`
	AllowNonRootAccess           *bool   `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
	ScreenSaverService           *bool   `json:"screenSaverService,omitempty" yaml:"screenSaverService,omitempty"`
	PowerManagementService       *bool   `json:"powerManagementService,omitempty" yaml:"powerManagementService,omitempty"`
}

// NewRawFileConfigFromConfig materializes every setting of c, defaults
// included.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		SuspendBatteryTimeout:        ptr.To(c.SuspendBatteryTimeout()),
		SuspendBatteryAction:         ptr.To(c.SuspendBatteryAction()),
		SuspendACTimeout:             ptr.To(c.SuspendACTimeout()),
		SuspendACAction:              ptr.To(c.SuspendACAction()),
		CriticalBattery:              ptr.To(c.CriticalBattery()),
		CriticalAction:               ptr.To(c.CriticalAction()),
		LidBatteryAction:             ptr.To(c.LidBatteryAction()),
		LidACAction:                  ptr.To(c.LidACAction()),
		DisableLidOnExternalMonitors: ptr.To(c.DisableLidOnExternalMonitors()),
		LockOnSleep:                  ptr.To(c.LockOnSleep()),
		LockCommand:                  ptr.To(c.LockCommand()),
		VirtualOutputPrefix:          ptr.To(c.VirtualOutputPrefix()),
		TickIntervalSeconds:          ptr.To(c.TickIntervalSeconds()),
		LivenessIntervalSeconds:      ptr.To(c.LivenessIntervalSeconds()),
		BackendTimeoutSeconds:        ptr.To(c.BackendTimeoutSeconds()),
		AllowNonRootAccess:           ptr.To(c.AllowNonRootAccess()),
		ScreenSaverService:           ptr.To(c.ScreenSaverService()),
		PowerManagementService:       ptr.To(c.PowerManagementService()),
	}, nil
}

// get returns the field picked by field, or its default when unset.
func get[T any](f *File, field func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := field(f.c); v != nil {
		return *v
	}
	return *field(defaultFileConfig)
}

func set[T any](f *File, field func(*RawFileConfig) **T, v T) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	*field(f.c) = &v
}

func (f *File) SuspendBatteryTimeout() int {
	return get(f, func(c *RawFileConfig) *int { return c.SuspendBatteryTimeout })
}

func (f *File) SuspendBatteryAction() string {
	return get(f, func(c *RawFileConfig) *string { return c.SuspendBatteryAction })
}

func (f *File) SuspendACTimeout() int {
	return get(f, func(c *RawFileConfig) *int { return c.SuspendACTimeout })
}

func (f *File) SuspendACAction() string {
	return get(f, func(c *RawFileConfig) *string { return c.SuspendACAction })
}

func (f *File) CriticalBattery() int {
	return get(f, func(c *RawFileConfig) *int { return c.CriticalBattery })
}

func (f *File) CriticalAction() string {
	return get(f, func(c *RawFileConfig) *string { return c.CriticalAction })
}

func (f *File) LidBatteryAction() string {
	return get(f, func(c *RawFileConfig) *string { return c.LidBatteryAction })
}

func (f *File) LidACAction() string {
	return get(f, func(c *RawFileConfig) *string { return c.LidACAction })
}

func (f *File) DisableLidOnExternalMonitors() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.DisableLidOnExternalMonitors })
}

func (f *File) LockOnSleep() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.LockOnSleep })
}

func (f *File) LockCommand() string {
	return get(f, func(c *RawFileConfig) *string { return c.LockCommand })
}

func (f *File) VirtualOutputPrefix() string {
	return get(f, func(c *RawFileConfig) *string { return c.VirtualOutputPrefix })
}

func (f *File) TickIntervalSeconds() int {
	return get(f, func(c *RawFileConfig) *int { return c.TickIntervalSeconds })
}

func (f *File) LivenessIntervalSeconds() int {
	return get(f, func(c *RawFileConfig) *int { return c.LivenessIntervalSeconds })
}

func (f *File) BackendTimeoutSeconds() int {
	return get(f, func(c *RawFileConfig) *int { return c.BackendTimeoutSeconds })
}

func (f *File) AllowNonRootAccess() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.AllowNonRootAccess })
}

func (f *File) ScreenSaverService() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.ScreenSaverService })
}

func (f *File) PowerManagementService() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.PowerManagementService })
}

func (f *File) SetSuspendTimeout(onBattery bool, minutes int) {
	if minutes < 0 {
		panic("suspend timeout must not be negative")
	}
	if onBattery {
		set(f, func(c *RawFileConfig) **int { return &c.SuspendBatteryTimeout }, minutes)
		return
	}
	set(f, func(c *RawFileConfig) **int { return &c.SuspendACTimeout }, minutes)
}

func (f *File) SetSuspendAction(onBattery bool, action string) {
	if onBattery {
		set(f, func(c *RawFileConfig) **string { return &c.SuspendBatteryAction }, action)
		return
	}
	set(f, func(c *RawFileConfig) **string { return &c.SuspendACAction }, action)
}

func (f *File) SetLidAction(onBattery bool, action string) {
	if onBattery {
		set(f, func(c *RawFileConfig) **string { return &c.LidBatteryAction }, action)
		return
	}
	set(f, func(c *RawFileConfig) **string { return &c.LidACAction }, action)
}

func (f *File) SetCriticalBattery(i int) {
	if i < 0 || i > 100 {
		panic("critical battery level must be between 0 and 100")
	}
	set(f, func(c *RawFileConfig) **int { return &c.CriticalBattery }, i)
}

func (f *File) SetCriticalAction(action string) {
	set(f, func(c *RawFileConfig) **string { return &c.CriticalAction }, action)
}

func (f *File) SetDisableLidOnExternalMonitors(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.DisableLidOnExternalMonitors }, b)
}

func (f *File) SetLockOnSleep(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.LockOnSleep }, b)
}

func (f *File) SetAllowNonRootAccess(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.AllowNonRootAccess }, b)
}

// Path returns the file backing this config.
func (f *File) Path() string { return f.filepath }

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file means all defaults. Keep f.c non-nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	// JSON documents are valid YAML, so older JSON configs load as well.
	conf := RawFileConfig{}
	err = yaml.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	if err := os.MkdirAll(filepath.Dir(f.filepath), 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory for %s", f.filepath)
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := yaml.NewEncoder(fp)
	enc.SetIndent(2)
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}
	if err := enc.Close(); err != nil {
		return pkgerrors.Wrapf(err, "failed to flush config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"suspendBatteryTimeout":        f.SuspendBatteryTimeout(),
		"suspendBatteryAction":         f.SuspendBatteryAction(),
		"suspendACTimeout":             f.SuspendACTimeout(),
		"suspendACAction":              f.SuspendACAction(),
		"criticalBattery":              f.CriticalBattery(),
		"criticalAction":               f.CriticalAction(),
		"lidBatteryAction":             f.LidBatteryAction(),
		"lidACAction":                  f.LidACAction(),
		"disableLidOnExternalMonitors": f.DisableLidOnExternalMonitors(),
		"lockOnSleep":                  f.LockOnSleep(),
		"allowNonRootAccess":           f.AllowNonRootAccess(),
		"tickIntervalSeconds":          f.TickIntervalSeconds(),
	}
}
