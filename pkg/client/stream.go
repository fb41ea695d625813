package client

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/charlie0129/powerd/pkg/events"
)

// Watch streams daemon events to fn until ctx is done or the connection
// drops.
func (c *Client) Watch(ctx context.Context, fn func(events.Event)) error {
	dialer := websocket.Dialer{NetDialContext: dialUnix(c.socketPath)}
	conn, _, err := dialer.DialContext(ctx, "ws://unix/events/ws", nil)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event stream closed: %w", err)
		}
		fn(ev)
	}
}
