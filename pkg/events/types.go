package events

import "encoding/json"

// Kind names a core notification. The set is closed; handlers are
// registered per kind on a Bus.
type Kind string

// Event kinds
const (
	DeviceAdded           Kind = "device-added"
	DeviceRemoved         Kind = "device-removed"
	DevicesUpdated        Kind = "devices-updated"
	LidClosed             Kind = "lid-closed"
	LidOpened             Kind = "lid-opened"
	SwitchedToBattery     Kind = "switched-to-battery"
	SwitchedToAC          Kind = "switched-to-ac"
	PrepareForSuspend     Kind = "prepare-for-suspend"
	InhibitorsUpdated     Kind = "inhibitors-updated"
	ConfigUpdateRequested Kind = "config-update-requested"
	ActionDispatched      Kind = "action-dispatched"
)

// AllKinds lists every kind in a stable order.
var AllKinds = []Kind{
	DeviceAdded,
	DeviceRemoved,
	DevicesUpdated,
	LidClosed,
	LidOpened,
	SwitchedToBattery,
	SwitchedToAC,
	PrepareForSuspend,
	InhibitorsUpdated,
	ConfigUpdateRequested,
	ActionDispatched,
}

// Event is a generic event as delivered to API subscribers.
type Event struct {
	Name string          `json:"name"` // event kind
	Data json.RawMessage `json:"data"` // raw JSON payload
}

// DeviceEvent is the payload for device-added and device-removed.
type DeviceEvent struct {
	Path string `json:"path"`
}

// SuspendEvent is the payload for prepare-for-suspend. Sleeping is
// false when the system resumes.
type SuspendEvent struct {
	Sleeping bool `json:"sleeping"`
}

// ActionEvent is the payload for action-dispatched.
type ActionEvent struct {
	Source  string `json:"source"`
	Action  string `json:"action"`
	Outcome string `json:"outcome,omitempty"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.ActionEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Source, payload.Action)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
