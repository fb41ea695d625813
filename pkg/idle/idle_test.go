package idle

import (
	"errors"
	"testing"
	"time"
)

func TestMinutes(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{in: 0, want: 0},
		{in: -time.Second, want: 0},
		{in: 59 * time.Second, want: 0},
		{in: time.Minute, want: 1},
		{in: 61*time.Minute + 30*time.Second, want: 61},
	}
	for _, tt := range tests {
		if got := minutes(tt.in); got != tt.want {
			t.Errorf("minutes(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIdleFor(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	since := uint64(now.Add(-10 * time.Minute).UnixMicro())

	tests := []struct {
		name string
		idle bool
		usec uint64
		want time.Duration
	}{
		{name: "idle", idle: true, usec: since, want: 10 * time.Minute},
		{name: "active", idle: false, usec: since, want: 0},
		{name: "no timestamp", idle: true, usec: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idleFor(tt.idle, tt.usec, now); got != tt.want {
				t.Errorf("idleFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

type staticSource struct {
	n   int
	err error
}

func (s staticSource) IdleMinutes() (int, error) { return s.n, s.err }

func TestFirst(t *testing.T) {
	src := First(staticSource{err: errors.New("no display")}, nil, staticSource{n: 7})
	got, err := src.IdleMinutes()
	if err != nil || got != 7 {
		t.Errorf("IdleMinutes() = %v, %v, want 7, nil", got, err)
	}

	if _, err := First(staticSource{err: errors.New("x")}).IdleMinutes(); !errors.Is(err, ErrNoSource) {
		t.Errorf("IdleMinutes() error = %v, want %v", err, ErrNoSource)
	}
}

func TestWithin(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	tests := []struct {
		name    string
		timeout time.Duration
		query   func() (time.Duration, error)
		want    time.Duration
		wantErr error
	}{
		{
			name:    "answers in time",
			timeout: time.Second,
			query:   func() (time.Duration, error) { return 3 * time.Minute, nil },
			want:    3 * time.Minute,
		},
		{
			name:    "no timeout",
			timeout: 0,
			query:   func() (time.Duration, error) { return time.Minute, nil },
			want:    time.Minute,
		},
		{
			name:    "query error",
			timeout: time.Second,
			query:   func() (time.Duration, error) { return 0, ErrNoSource },
			wantErr: ErrNoSource,
		},
		{
			name:    "hung query",
			timeout: 20 * time.Millisecond,
			query: func() (time.Duration, error) {
				<-block
				return time.Hour, nil
			},
			wantErr: ErrTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := within(tt.timeout, tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("within() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("within() = %v, want %v", got, tt.want)
			}
		})
	}
}
