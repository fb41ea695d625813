package power

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/powerd/pkg/events"
)

// Registry tracks the devices reported by a DeviceService, keyed by path.
// It is not safe for concurrent use; the Manager confines it to its actor.
type Registry struct {
	svc     DeviceService
	ignore  string
	bus     *events.Bus
	devices map[string]*Device
	timeout time.Duration
}

// NewRegistry returns an empty registry. Paths under ignorePrefix are never
// tracked.
func NewRegistry(svc DeviceService, ignorePrefix string, bus *events.Bus) *Registry {
	return &Registry{
		svc:     svc,
		ignore:  ignorePrefix,
		bus:     bus,
		devices: make(map[string]*Device),
	}
}

// SetTimeout bounds every device service call by d when d is positive.
func (r *Registry) SetTimeout(d time.Duration) { r.timeout = d }

func (r *Registry) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Registry) available(ctx context.Context) bool {
	if r.svc == nil {
		return false
	}
	cctx, cancel := r.bound(ctx)
	defer cancel()
	return r.svc.Available(cctx)
}

// list returns the paths the service currently reports. Any failure is
// treated as an empty list.
func (r *Registry) list(ctx context.Context) []string {
	if !r.available(ctx) {
		return nil
	}
	cctx, cancel := r.bound(ctx)
	defer cancel()
	paths, err := r.svc.DevicePaths(cctx)
	if err != nil {
		logrus.WithError(err).Warn("failed to enumerate devices")
		return nil
	}
	return paths
}

func (r *Registry) listed(ctx context.Context, path string) bool {
	for _, p := range r.list(ctx) {
		if p == path {
			return true
		}
	}
	return false
}

// Scan creates entries for newly reported paths and leaves existing ones
// alone. It never deletes. It always ends with devices-updated.
func (r *Registry) Scan(ctx context.Context) {
	for _, p := range r.list(ctx) {
		if ignored(p, r.ignore) {
			continue
		}
		if _, ok := r.devices[p]; ok {
			continue
		}
		d := &Device{Path: p}
		r.devices[p] = d
		r.refresh(ctx, d)
		logrus.WithField("path", p).Debug("tracking device")
	}
	r.bus.Emit(events.DevicesUpdated, nil)
}

// DeviceAdded handles a device-added notification.
func (r *Registry) DeviceAdded(ctx context.Context, path string) {
	if ignored(path, r.ignore) {
		return
	}
	if !r.available(ctx) {
		return
	}
	r.bus.Emit(events.DeviceAdded, events.DeviceEvent{Path: path})
	r.Scan(ctx)
}

// DeviceRemoved handles a device-removed notification. A path the service
// still lists is kept.
func (r *Registry) DeviceRemoved(ctx context.Context, path string) {
	if ignored(path, r.ignore) {
		return
	}
	if !r.available(ctx) {
		return
	}
	if _, ok := r.devices[path]; ok {
		if r.listed(ctx, path) {
			return
		}
		delete(r.devices, path)
		r.bus.Emit(events.DeviceRemoved, events.DeviceEvent{Path: path})
	}
	r.Scan(ctx)
}

// Changed refreshes the named device. It reports whether path is tracked.
func (r *Registry) Changed(ctx context.Context, path string) bool {
	d, ok := r.devices[path]
	if !ok {
		return false
	}
	r.refresh(ctx, d)
	return true
}

// Update refreshes every tracked device.
func (r *Registry) Update(ctx context.Context) {
	for _, d := range r.devices {
		r.refresh(ctx, d)
	}
}

// UpdateBattery refreshes tracked batteries. Nothing is polled while on AC.
func (r *Registry) UpdateBattery(ctx context.Context, onBattery bool) {
	if !onBattery {
		return
	}
	for _, d := range r.devices {
		if d.IsBattery {
			r.refresh(ctx, d)
		}
	}
}

func (r *Registry) refresh(ctx context.Context, d *Device) {
	if r.svc == nil {
		return
	}
	cctx, cancel := r.bound(ctx)
	defer cancel()
	fresh, err := r.svc.Device(cctx, d.Path)
	if err != nil {
		logrus.WithField("path", d.Path).WithError(err).Debug("failed to refresh device")
		return
	}
	fresh.Path = d.Path
	*d = fresh
}

// BatteryLeft returns the mean percentage of present, valid batteries, or 0
// when there are none.
func (r *Registry) BatteryLeft() float64 {
	var sum float64
	var n int
	for _, d := range r.devices {
		if d.valid() {
			sum += d.Percentage
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// HasBattery reports whether any tracked device is a battery, present or
// not.
func (r *Registry) HasBattery() bool {
	for _, d := range r.devices {
		if d.IsBattery {
			return true
		}
	}
	return false
}

// TimeToEmpty sums the estimates of present, valid batteries.
func (r *Registry) TimeToEmpty() int64 {
	var sum int64
	for _, d := range r.devices {
		if d.valid() {
			sum += d.TimeToEmpty
		}
	}
	return sum
}

// TimeToFull sums the estimates of present, valid batteries.
func (r *Registry) TimeToFull() int64 {
	var sum int64
	for _, d := range r.devices {
		if d.valid() {
			sum += d.TimeToFull
		}
	}
	return sum
}

// Devices returns copies of all tracked devices ordered by path.
func (r *Registry) Devices() []Device {
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int { return len(r.devices) }
