package sysbus

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// normalizeReply turns a capability reply into a bool. Session managers
// answer "yes", "no", "na" or "challenge"; UPower answers a bool.
func normalizeReply(v interface{}) bool {
	switch r := v.(type) {
	case bool:
		return r
	case string:
		return strings.EqualFold(strings.TrimSpace(r), "yes")
	case dbus.Variant:
		return normalizeReply(r.Value())
	}
	return false
}

func firstReply(body []interface{}) bool {
	if len(body) == 0 {
		return false
	}
	return normalizeReply(body[0])
}

// objectPath extracts a path from a signal argument, which may be an
// object path or a plain string depending on the service version.
func objectPath(v interface{}) (string, bool) {
	switch p := v.(type) {
	case dbus.ObjectPath:
		return string(p), p.IsValid()
	case string:
		return p, p != ""
	}
	return "", false
}
