package power

import (
	"context"
	"testing"
	"time"

	"github.com/charlie0129/powerd/pkg/events"
)

const jobs = "/org/freedesktop/UPower/jobs"

func TestRegistryBatteryLeft(t *testing.T) {
	tests := []struct {
		name    string
		devices []Device
		want    float64
	}{
		{
			name:    "no devices",
			devices: nil,
			want:    0,
		},
		{
			name:    "two batteries",
			devices: []Device{battery("/bat0", 80), battery("/bat1", 40)},
			want:    60,
		},
		{
			name: "absent battery ignored",
			devices: []Device{
				battery("/bat0", 80),
				{Path: "/bat1", IsBattery: true, IsPresent: false, NativePath: "BAT1", Percentage: 10},
			},
			want: 80,
		},
		{
			name: "synthetic battery ignored",
			devices: []Device{
				battery("/bat0", 50),
				{Path: "/bat1", IsBattery: true, IsPresent: true, Percentage: 10},
			},
			want: 50,
		},
		{
			name:    "line power ignored",
			devices: []Device{battery("/bat0", 30), {Path: "/ac0", IsPresent: true, NativePath: "AC", Percentage: 0}},
			want:    30,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(newFakeDevices(tt.devices...), jobs, events.NewBus())
			r.Scan(context.Background())
			if got := r.BatteryLeft(); got != tt.want {
				t.Errorf("BatteryLeft() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryAggregates(t *testing.T) {
	b0 := battery("/bat0", 50)
	b0.TimeToEmpty, b0.TimeToFull = 600, 100
	b1 := battery("/bat1", 50)
	b1.TimeToEmpty, b1.TimeToFull = 300, 200
	absent := Device{Path: "/bat2", IsBattery: true, TimeToEmpty: 1000}

	r := NewRegistry(newFakeDevices(b0, b1, absent), jobs, events.NewBus())
	r.Scan(context.Background())

	if got := r.TimeToEmpty(); got != 900 {
		t.Errorf("TimeToEmpty() = %v, want %v", got, 900)
	}
	if got := r.TimeToFull(); got != 300 {
		t.Errorf("TimeToFull() = %v, want %v", got, 300)
	}
	if !r.HasBattery() {
		t.Errorf("HasBattery() = false, want true")
	}
}

func TestRegistryHasBatteryRegardlessOfPresence(t *testing.T) {
	r := NewRegistry(newFakeDevices(Device{Path: "/bat0", IsBattery: true}), jobs, events.NewBus())
	r.Scan(context.Background())
	if !r.HasBattery() {
		t.Errorf("HasBattery() = false, want true")
	}
}

func TestRegistryScanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newFakeDevices(battery("/bat0", 80))
	bus := events.NewBus()
	rec := record(bus)
	r := NewRegistry(svc, jobs, bus)

	r.Scan(ctx)
	r.Scan(ctx)
	if got := r.Len(); got != 1 {
		t.Fatalf("Len() = %v, want %v", got, 1)
	}
	if got := rec.count(events.DevicesUpdated); got != 2 {
		t.Errorf("devices-updated count = %v, want %v", got, 2)
	}

	// Existing entries keep their values across a scan.
	svc.set(battery("/bat0", 10))
	r.Scan(ctx)
	if got := r.BatteryLeft(); got != 80 {
		t.Errorf("BatteryLeft() after rescan = %v, want %v", got, 80)
	}

	// Scans never delete.
	svc.drop("/bat0")
	r.Scan(ctx)
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after scan without device = %v, want %v", got, 1)
	}
}

func TestRegistryIgnoresJobs(t *testing.T) {
	ctx := context.Background()
	svc := newFakeDevices(battery("/bat0", 80), Device{Path: jobs + "/1"})
	bus := events.NewBus()
	rec := record(bus)
	r := NewRegistry(svc, jobs, bus)

	r.Scan(ctx)
	r.DeviceAdded(ctx, jobs+"/2")
	r.DeviceRemoved(ctx, jobs+"/1")

	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %v, want %v", got, 1)
	}
	if got := rec.count(events.DeviceAdded) + rec.count(events.DeviceRemoved); got != 0 {
		t.Errorf("added+removed events = %v, want %v", got, 0)
	}
}

func TestRegistryAddRemove(t *testing.T) {
	ctx := context.Background()
	svc := newFakeDevices(battery("/bat0", 80))
	bus := events.NewBus()
	rec := record(bus)
	r := NewRegistry(svc, jobs, bus)
	r.Scan(ctx)

	// Duplicate add notifications never duplicate entries.
	svc.set(battery("/bat1", 40))
	r.DeviceAdded(ctx, "/bat1")
	r.DeviceAdded(ctx, "/bat1")
	if got := r.Len(); got != 2 {
		t.Fatalf("Len() = %v, want %v", got, 2)
	}
	if got := rec.count(events.DeviceAdded); got != 2 {
		t.Errorf("device-added count = %v, want %v", got, 2)
	}

	// Removal is ignored while the service still lists the path.
	r.DeviceRemoved(ctx, "/bat1")
	if got := r.Len(); got != 2 {
		t.Errorf("Len() after premature removal = %v, want %v", got, 2)
	}
	if got := rec.count(events.DeviceRemoved); got != 0 {
		t.Errorf("device-removed count = %v, want %v", got, 0)
	}

	svc.drop("/bat1")
	r.DeviceRemoved(ctx, "/bat1")
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after removal = %v, want %v", got, 1)
	}
	if p, ok := rec.payload(events.DeviceRemoved).(events.DeviceEvent); !ok || p.Path != "/bat1" {
		t.Errorf("device-removed payload = %#v, want path /bat1", rec.payload(events.DeviceRemoved))
	}
}

func TestRegistryRemoveThenRescanIsFresh(t *testing.T) {
	ctx := context.Background()
	svc := newFakeDevices(battery("/bat0", 80))
	r := NewRegistry(svc, jobs, events.NewBus())
	r.Scan(ctx)

	svc.drop("/bat0")
	r.DeviceRemoved(ctx, "/bat0")
	if got := r.Len(); got != 0 {
		t.Fatalf("Len() = %v, want %v", got, 0)
	}

	svc.set(battery("/bat0", 25))
	r.Scan(ctx)
	if got := r.BatteryLeft(); got != 25 {
		t.Errorf("BatteryLeft() = %v, want %v", got, 25)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %v, want %v", got, 1)
	}
}

func TestRegistryMalformedEnumeration(t *testing.T) {
	ctx := context.Background()
	svc := newFakeDevices(battery("/bat0", 80))
	svc.malformed = true
	bus := events.NewBus()
	rec := record(bus)
	r := NewRegistry(svc, jobs, bus)

	r.Scan(ctx)
	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %v, want %v", got, 0)
	}
	if got := rec.count(events.DevicesUpdated); got != 1 {
		t.Errorf("devices-updated count = %v, want %v", got, 1)
	}

	svc.malformed = false
	r.Scan(ctx)
	if got := r.Len(); got != 1 {
		t.Errorf("Len() after recovery = %v, want %v", got, 1)
	}
}

func TestRegistryUpdateBattery(t *testing.T) {
	ctx := context.Background()
	svc := newFakeDevices(battery("/bat0", 80))
	r := NewRegistry(svc, jobs, events.NewBus())
	r.Scan(ctx)

	svc.set(battery("/bat0", 70))
	r.UpdateBattery(ctx, false)
	if got := r.BatteryLeft(); got != 80 {
		t.Errorf("BatteryLeft() on AC = %v, want %v", got, 80)
	}
	r.UpdateBattery(ctx, true)
	if got := r.BatteryLeft(); got != 70 {
		t.Errorf("BatteryLeft() on battery = %v, want %v", got, 70)
	}

	svc.set(battery("/bat0", 60))
	if !r.Changed(ctx, "/bat0") {
		t.Fatalf("Changed() = false, want true")
	}
	if got := r.BatteryLeft(); got != 60 {
		t.Errorf("BatteryLeft() after change = %v, want %v", got, 60)
	}
	if r.Changed(ctx, "/unknown") {
		t.Errorf("Changed() on unknown path = true, want false")
	}
}

func TestFirstAvailable(t *testing.T) {
	ctx := context.Background()
	down := newFakeDevices(battery("/a0", 10))
	down.available = false
	up := newFakeDevices(battery("/b0", 90))

	svc := FirstAvailable(down, nil, up)
	paths, err := svc.DevicePaths(ctx)
	if err != nil {
		t.Fatalf("DevicePaths() error = %v", err)
	}
	if len(paths) != 1 || paths[0] != "/b0" {
		t.Errorf("DevicePaths() = %v, want [/b0]", paths)
	}

	up.available = false
	if svc.Available(ctx) {
		t.Errorf("Available() = true, want false")
	}
	if _, err := svc.DevicePaths(ctx); err != ErrBackendUnavailable {
		t.Errorf("DevicePaths() error = %v, want %v", err, ErrBackendUnavailable)
	}
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(hungDevices{}, jobs, events.NewBus())
	r.SetTimeout(20 * time.Millisecond)

	begin := time.Now()
	r.Scan(context.Background())
	r.Update(context.Background())
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Errorf("Scan() and Update() took %v, want them bounded", elapsed)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %v, want %v", got, 1)
	}
}
