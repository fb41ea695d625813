// Package display reports video outputs from the kernel's DRM sysfs tree.
package display

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultRoot is where the kernel exposes DRM connectors.
const DefaultRoot = "/sys/class/drm"

var cardPrefix = regexp.MustCompile(`^card[0-9]+-`)

// internalPrefixes name connector types wired to a built-in panel.
var internalPrefixes = []string{"eDP", "LVDS", "DSI"}

// DRM reads connector state from sysfs.
type DRM struct {
	Root string
}

func NewDRM() *DRM { return &DRM{Root: DefaultRoot} }

// Outputs maps connector names (e.g. "HDMI-A-1") to whether something is
// plugged in.
func (d *DRM) Outputs() (map[string]bool, error) {
	matches, err := filepath.Glob(filepath.Join(d.Root, "card*-*", "status"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(matches))
	for _, p := range matches {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		name := cardPrefix.ReplaceAllString(filepath.Base(filepath.Dir(p)), "")
		out[name] = strings.TrimSpace(string(data)) == "connected"
	}
	return out, nil
}

// Internal returns the first built-in panel connector, connected or not,
// or "" when the machine has none.
func (d *DRM) Internal() (string, error) {
	outputs, err := d.Outputs()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if IsInternal(name) {
			return name, nil
		}
	}
	return "", nil
}

// IsInternal reports whether the connector name is a built-in panel.
func (d *DRM) IsInternal(name string) bool { return IsInternal(name) }

// IsInternal reports whether a connector name denotes a built-in panel.
func IsInternal(name string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
