package power

// EventKind is the normalized kind of a backend notification.
type EventKind int

const (
	// EventDeviceAdded reports a new device object path.
	EventDeviceAdded EventKind = iota
	// EventDeviceRemoved reports a vanished device object path.
	EventDeviceRemoved
	// EventChanged reports that a device, or the service itself when Path
	// is empty, changed properties.
	EventChanged
	// EventSleep reports that the system is about to sleep (Sleeping) or
	// has resumed.
	EventSleep
)

func (k EventKind) String() string {
	switch k {
	case EventDeviceAdded:
		return "device-added"
	case EventDeviceRemoved:
		return "device-removed"
	case EventChanged:
		return "changed"
	case EventSleep:
		return "sleep"
	}
	return "unknown"
}

// Event is what the bridge hands to the Manager after decoding a signal.
type Event struct {
	Kind     EventKind
	Path     string
	Sleeping bool
}

// EventSource delivers backend notifications. Subscribe must install every
// subscription or none of them.
type EventSource interface {
	Subscribe(sink func(Event)) error
	Alive() bool
	Close() error
}
