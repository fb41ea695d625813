package powerinfo

// Capabilities lists which actions the active backends allow.
type Capabilities struct {
	Restart     bool `json:"restart"`
	PowerOff    bool `json:"poweroff"`
	Suspend     bool `json:"suspend"`
	Hibernate   bool `json:"hibernate"`
	HybridSleep bool `json:"hybridSleep"`
}

// Battery aggregates all present batteries.
// Units:
// - Left: percent (0-100)
// - TimeToEmpty, TimeToFull: seconds, 0 when unknown
type Battery struct {
	Present     bool    `json:"present"`
	Left        float64 `json:"left"`
	Charging    bool    `json:"charging"`
	TimeToEmpty int64   `json:"timeToEmpty"`
	TimeToFull  int64   `json:"timeToFull"`
}

// Status is one consistent snapshot of the daemon's view of the machine.
type Status struct {
	OnBattery  bool `json:"onBattery"`
	LidPresent bool `json:"lidPresent"`
	LidClosed  bool `json:"lidClosed"`
	Docked     bool `json:"docked"`

	Battery      Battery      `json:"battery"`
	Capabilities Capabilities `json:"capabilities"`

	IdleTicks                 int      `json:"idleTicks"`
	ScreenSaverInhibitors     []string `json:"screenSaverInhibitors"`
	PowerManagementInhibitors []string `json:"powerManagementInhibitors"`
	ExternalMonitor           bool     `json:"externalMonitor"`
}

// Inhibitors lists both inhibitor classes.
type Inhibitors struct {
	ScreenSaver     []Inhibitor `json:"screenSaver"`
	PowerManagement []Inhibitor `json:"powerManagement"`
}

// Inhibitor is one reservation as exposed by the API.
type Inhibitor struct {
	Cookie      uint32 `json:"cookie"`
	Application string `json:"application"`
	Reason      string `json:"reason,omitempty"`
}

// Device is one power source as exposed by the API.
type Device struct {
	Path        string  `json:"path"`
	IsBattery   bool    `json:"isBattery"`
	IsPresent   bool    `json:"isPresent"`
	NativePath  string  `json:"nativePath"`
	Percentage  float64 `json:"percentage"`
	TimeToEmpty int64   `json:"timeToEmpty"`
	TimeToFull  int64   `json:"timeToFull"`
}
