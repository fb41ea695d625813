package idle

import (
	"fmt"
	"sync"
	"time"

	x "github.com/linuxdeepin/go-x11-client"
	xscreensaver "github.com/linuxdeepin/go-x11-client/ext/screensaver"
)

// X11 reads the time since the last input event from the MIT-SCREEN-SAVER
// extension. The display connection is opened on first use and reopened
// after a failure or a reply slower than the timeout.
type X11 struct {
	mu      sync.Mutex
	conn    *x.Conn
	timeout time.Duration
}

// NewX11 returns an X11 source whose queries give up after timeout. A
// non-positive timeout waits forever.
func NewX11(timeout time.Duration) *X11 { return &X11{timeout: timeout} }

func (s *X11) connLocked() (*x.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := x.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X display: %w", err)
	}
	s.conn = conn
	return conn, nil
}

func (s *X11) resetLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Idle returns the time since the last user input.
func (s *X11) Idle() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.connLocked()
	if err != nil {
		return 0, err
	}
	screen := conn.GetDefaultScreen()
	if screen == nil {
		s.resetLocked()
		return 0, fmt.Errorf("cannot get X11 default screen")
	}
	d, err := within(s.timeout, func() (time.Duration, error) {
		info, err := xscreensaver.QueryInfo(conn, x.Drawable(screen.Root)).Reply(conn)
		if err != nil {
			return 0, err
		}
		return time.Duration(info.MsSinceUserInput) * time.Millisecond, nil
	})
	if err != nil {
		// Closing the connection also unblocks a reply still in flight.
		s.resetLocked()
		return 0, fmt.Errorf("screensaver QueryInfo: %w", err)
	}
	return d, nil
}

func (s *X11) IdleMinutes() (int, error) {
	d, err := s.Idle()
	if err != nil {
		return 0, err
	}
	return minutes(d), nil
}

func (s *X11) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}
