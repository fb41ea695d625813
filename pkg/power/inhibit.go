package power

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// InhibitClass selects one of the two inhibitor ledgers.
type InhibitClass int

const (
	ScreenSaver InhibitClass = iota
	PowerManagement
)

func (c InhibitClass) String() string {
	switch c {
	case ScreenSaver:
		return "screensaver"
	case PowerManagement:
		return "powermanagement"
	}
	return "unknown"
}

// ParseInhibitClass accepts the names produced by String, plus the short
// forms "ss" and "pm".
func ParseInhibitClass(s string) (InhibitClass, error) {
	switch strings.ToLower(s) {
	case "screensaver", "ss":
		return ScreenSaver, nil
	case "powermanagement", "pm":
		return PowerManagement, nil
	}
	return 0, fmt.Errorf("unknown inhibitor class %q", s)
}

// Inhibitor is one outstanding reservation.
type Inhibitor struct {
	Cookie      uint32 `json:"cookie"`
	Application string `json:"application"`
	Reason      string `json:"reason,omitempty"`
}

// Ledger holds the inhibitors of one class keyed by cookie.
type Ledger struct {
	m map[uint32]Inhibitor
}

func NewLedger() *Ledger { return &Ledger{m: make(map[uint32]Inhibitor)} }

// Add records inh, replacing any entry with the same cookie. It reports
// whether the cookie was not held before.
func (l *Ledger) Add(inh Inhibitor) bool {
	_, held := l.m[inh.Cookie]
	l.m[inh.Cookie] = inh
	return !held
}

// Remove drops cookie and reports whether it was held.
func (l *Ledger) Remove(cookie uint32) bool {
	if _, ok := l.m[cookie]; !ok {
		return false
	}
	delete(l.m, cookie)
	return true
}

func (l *Ledger) Has(cookie uint32) bool {
	_, ok := l.m[cookie]
	return ok
}

func (l *Ledger) Empty() bool { return len(l.m) == 0 }

func (l *Ledger) Len() int { return len(l.m) }

// List returns the inhibitors ordered by cookie.
func (l *Ledger) List() []Inhibitor {
	out := make([]Inhibitor, 0, len(l.m))
	for _, inh := range l.m {
		out = append(out, inh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cookie < out[j].Cookie })
	return out
}

// Applications returns the owning application names ordered by cookie.
func (l *Ledger) Applications() []string {
	list := l.List()
	out := make([]string, len(list))
	for i, inh := range list {
		out[i] = inh.Application
	}
	return out
}

// CookieAllocator hands out non-zero cookies, counting upwards and
// wrapping around. It is safe for concurrent use.
type CookieAllocator struct {
	mu   sync.Mutex
	last uint32
}

// Next returns the next cookie for which inUse reports false. A nil inUse
// treats every cookie as free. It returns 0 only if every cookie is taken.
func (a *CookieAllocator) Next(inUse func(uint32) bool) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.last
	for i := uint64(0); i < 1<<32; i++ {
		c++
		if c == 0 {
			continue
		}
		if inUse == nil || !inUse(c) {
			a.last = c
			return c
		}
	}
	return 0
}
