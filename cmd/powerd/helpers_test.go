package main

import (
	"encoding/json"
	"testing"

	"github.com/fatih/color"

	"github.com/charlie0129/powerd/pkg/events"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "unknown"},
		{-5, "unknown"},
		{59, "0m"},
		{600, "10m"},
		{3600, "1h00m"},
		{5430, "1h30m"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.secs); got != tt.want {
			t.Errorf("formatSeconds(%v) = %v, want %v", tt.secs, got, tt.want)
		}
	}
}

func TestParseIntArg(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{args: []string{"42"}, want: 42},
		{args: []string{"-1"}, want: -1},
		{args: []string{"abc"}, wantErr: true},
		{args: []string{}, wantErr: true},
		{args: []string{"1", "2"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseIntArg(tt.args, "value")
		if (err != nil) != tt.wantErr {
			t.Errorf("parseIntArg(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseIntArg(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestParseInhibitorArgs(t *testing.T) {
	tests := []struct {
		args       []string
		wantClass  string
		wantCookie uint32
		wantErr    bool
	}{
		{args: []string{"pm", "7"}, wantClass: "powermanagement", wantCookie: 7},
		{args: []string{"screensaver", "1"}, wantClass: "screensaver", wantCookie: 1},
		{args: []string{"pm", "0"}, wantErr: true},
		{args: []string{"pm", "x"}, wantErr: true},
		{args: []string{"disk", "1"}, wantErr: true},
	}
	for _, tt := range tests {
		class, cookie, err := parseInhibitorArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInhibitorArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if class != tt.wantClass || cookie != tt.wantCookie {
			t.Errorf("parseInhibitorArgs(%v) = %v, %v, want %v, %v", tt.args, class, cookie, tt.wantClass, tt.wantCookie)
		}
	}
}

func TestIdleText(t *testing.T) {
	tests := []struct {
		timeout int
		action  string
		want    string
	}{
		{0, "sleep", "disabled"},
		{10, "none", "disabled"},
		{15, "sleep", "sleep after 15 minutes"},
	}
	for _, tt := range tests {
		if got := idleText(tt.timeout, tt.action); got != tt.want {
			t.Errorf("idleText(%v, %q) = %q, want %q", tt.timeout, tt.action, got, tt.want)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	color.NoColor = true

	action, _ := json.Marshal(events.ActionEvent{Source: "idle", Action: "sleep"})
	failed, _ := json.Marshal(events.ActionEvent{Source: "lid", Action: "hibernate", Outcome: "not allowed"})

	tests := []struct {
		ev   events.Event
		want string
	}{
		{
			ev:   events.Event{Name: string(events.ActionDispatched), Data: action},
			want: "action-dispatched sleep by idle: ok",
		},
		{
			ev:   events.Event{Name: string(events.ActionDispatched), Data: failed},
			want: "action-dispatched hibernate by lid: not allowed",
		},
		{
			ev:   events.Event{Name: string(events.LidClosed), Data: json.RawMessage("{}")},
			want: "lid-closed",
		},
		{
			ev:   events.Event{Name: string(events.DeviceAdded), Data: json.RawMessage(`{"path":"/bat0"}`)},
			want: `device-added {"path":"/bat0"}`,
		},
	}
	for _, tt := range tests {
		if got := formatEvent(tt.ev); got != tt.want {
			t.Errorf("formatEvent(%s) = %q, want %q", tt.ev.Name, got, tt.want)
		}
	}
}
