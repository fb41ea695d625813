package power

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/charlie0129/powerd/pkg/events"
)

type fakeBackend struct {
	kind      BackendKind
	name      string
	available bool
	caps      map[Capability]bool
	fail      error
	executed  []Action
}

func (b *fakeBackend) Kind() BackendKind                  { return b.kind }
func (b *fakeBackend) Name() string                       { return b.name }
func (b *fakeBackend) Available(ctx context.Context) bool { return b.available }

func (b *fakeBackend) Query(ctx context.Context, c Capability) (bool, error) {
	if b.fail != nil {
		return false, b.fail
	}
	return b.caps[c], nil
}

func (b *fakeBackend) Execute(ctx context.Context, a Action) error {
	if b.fail != nil {
		return b.fail
	}
	b.executed = append(b.executed, a)
	return nil
}

type fakeDevices struct {
	mu        sync.Mutex
	available bool
	devices   map[string]Device
	malformed bool
}

func newFakeDevices(ds ...Device) *fakeDevices {
	f := &fakeDevices{available: true, devices: make(map[string]Device)}
	for _, d := range ds {
		f.devices[d.Path] = d
	}
	return f
}

func (f *fakeDevices) set(d Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[d.Path] = d
}

func (f *fakeDevices) drop(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.devices, path)
}

func (f *fakeDevices) Available(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeDevices) DevicePaths(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.malformed {
		return nil, errors.New("malformed reply")
	}
	var out []string
	for p := range f.devices {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeDevices) Device(ctx context.Context, path string) (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[path]
	if !ok {
		return Device{}, errors.New("no such device")
	}
	return d, nil
}

func battery(path string, pct float64) Device {
	return Device{
		Path:       path,
		IsBattery:  true,
		IsPresent:  true,
		NativePath: "BAT" + path[len(path)-1:],
		Percentage: pct,
	}
}

type fakeProps struct {
	mu    sync.Mutex
	state State
}

func (p *fakeProps) set(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *fakeProps) get() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakeProps) OnBattery(context.Context) bool    { return p.get().OnBattery }
func (p *fakeProps) LidIsPresent(context.Context) bool { return p.get().LidPresent }
func (p *fakeProps) LidIsClosed(context.Context) bool  { return p.get().LidClosed }
func (p *fakeProps) IsDocked(context.Context) bool     { return p.get().Docked }

type fakeIdle struct{ minutes int }

func (f *fakeIdle) IdleMinutes() (int, error) { return f.minutes, nil }

type fakeDisplays struct {
	internal string
	// panels lists further built-in outputs.
	panels  map[string]bool
	outputs map[string]bool
}

func (f *fakeDisplays) Outputs() (map[string]bool, error) { return f.outputs, nil }
func (f *fakeDisplays) Internal() (string, error)         { return f.internal, nil }
func (f *fakeDisplays) IsInternal(name string) bool {
	return name == f.internal || f.panels[name]
}

type fakeLocker struct{ locks int }

func (l *fakeLocker) Lock(context.Context) error {
	l.locks++
	return nil
}

type fakeEvents struct {
	mu      sync.Mutex
	sink    func(Event)
	alive   bool
	subs    int
	closed  int
	failSub error
}

func (f *fakeEvents) Subscribe(sink func(Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSub != nil {
		return f.failSub
	}
	f.sink = sink
	f.alive = true
	f.subs++
	return nil
}

func (f *fakeEvents) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeEvents) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	f.sink = nil
	f.closed++
	return nil
}

func (f *fakeEvents) send(e Event) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink(e)
	}
}

// recorder counts events emitted on a bus.
type recorder struct {
	mu     sync.Mutex
	counts map[events.Kind]int
	last   map[events.Kind]any
}

func record(bus *events.Bus) *recorder {
	r := &recorder{counts: make(map[events.Kind]int), last: make(map[events.Kind]any)}
	for _, k := range events.AllKinds {
		k := k
		bus.On(k, func(payload any) {
			r.mu.Lock()
			r.counts[k]++
			r.last[k] = payload
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) count(k events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[k]
}

func (r *recorder) payload(k events.Kind) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[k]
}

// hungDevices lists one battery whose properties never arrive.
type hungDevices struct{}

func (hungDevices) Available(ctx context.Context) bool { return ctx.Err() == nil }

func (hungDevices) DevicePaths(context.Context) ([]string, error) {
	return []string{"/bat0"}, nil
}

func (hungDevices) Device(ctx context.Context, _ string) (Device, error) {
	<-ctx.Done()
	return Device{}, ctx.Err()
}
