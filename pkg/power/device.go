package power

import (
	"context"
	"strings"
)

// Device is a snapshot of one power source.
type Device struct {
	Path        string  `json:"path"`
	IsBattery   bool    `json:"isBattery"`
	IsPresent   bool    `json:"isPresent"`
	NativePath  string  `json:"nativePath"`
	Percentage  float64 `json:"percentage"`
	TimeToEmpty int64   `json:"timeToEmpty"` // seconds, 0 = unknown
	TimeToFull  int64   `json:"timeToFull"`  // seconds, 0 = unknown
}

// valid reports whether d describes a real, present battery.
func (d *Device) valid() bool {
	return d.IsBattery && d.IsPresent && d.NativePath != ""
}

// DeviceService enumerates power sources.
type DeviceService interface {
	Available(ctx context.Context) bool
	DevicePaths(ctx context.Context) ([]string, error)
	Device(ctx context.Context, path string) (Device, error)
}

type chain []DeviceService

// FirstAvailable combines services, answering from the first one that is
// available at the time of each call.
func FirstAvailable(services ...DeviceService) DeviceService {
	var c chain
	for _, s := range services {
		if s != nil {
			c = append(c, s)
		}
	}
	return c
}

func (c chain) pick(ctx context.Context) DeviceService {
	for _, s := range c {
		if s.Available(ctx) {
			return s
		}
	}
	return nil
}

func (c chain) Available(ctx context.Context) bool { return c.pick(ctx) != nil }

func (c chain) DevicePaths(ctx context.Context) ([]string, error) {
	s := c.pick(ctx)
	if s == nil {
		return nil, ErrBackendUnavailable
	}
	return s.DevicePaths(ctx)
}

func (c chain) Device(ctx context.Context, path string) (Device, error) {
	s := c.pick(ctx)
	if s == nil {
		return Device{}, ErrBackendUnavailable
	}
	return s.Device(ctx, path)
}

// ignored reports whether path falls under prefix.
func ignored(path, prefix string) bool {
	return prefix != "" && strings.HasPrefix(path, prefix)
}
