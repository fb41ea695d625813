package config

type Config interface {
	SuspendBatteryTimeout() int
	SuspendBatteryAction() string
	SuspendACTimeout() int
	SuspendACAction() string
	CriticalBattery() int
	CriticalAction() string
	LidBatteryAction() string
	LidACAction() string
	DisableLidOnExternalMonitors() bool
	LockOnSleep() bool
	LockCommand() string
	VirtualOutputPrefix() string
	TickIntervalSeconds() int
	LivenessIntervalSeconds() int
	BackendTimeoutSeconds() int
	AllowNonRootAccess() bool
	ScreenSaverService() bool
	PowerManagementService() bool

	SetSuspendTimeout(onBattery bool, minutes int)
	SetSuspendAction(onBattery bool, action string)
	SetLidAction(onBattery bool, action string)
	SetCriticalBattery(int)
	SetCriticalAction(string)
	SetDisableLidOnExternalMonitors(bool)
	SetLockOnSleep(bool)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
