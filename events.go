package dashx

import (
	"context"
	"fmt"
)

// Track sends a custom event with the system context attached.
func (c *Client) Track(ctx context.Context, event string, data map[string]string) {
	s := c.session.Snapshot()
	c.background(ctx, "track", func(ctx context.Context) error {
		return c.tracker.Track(ctx, s, event, data)
	})
}

// TrackAppStarted sends "Application Installed", "Application Updated" or
// "Application Opened" depending on the last build seen on this device.
func (c *Client) TrackAppStarted(ctx context.Context, fromBackground bool) {
	s := c.session.Snapshot()
	c.background(ctx, "track app started", func(ctx context.Context) error {
		return c.tracker.TrackAppStarted(ctx, s, fromBackground)
	})
}

// TrackAppSession sends "Application Backgrounded" for a session of
// elapsedMs milliseconds.
func (c *Client) TrackAppSession(ctx context.Context, elapsedMs float64) {
	s := c.session.Snapshot()
	c.background(ctx, "track app session", func(ctx context.Context) error {
		return c.tracker.TrackAppSession(ctx, s, elapsedMs)
	})
}

// TrackAppCrashed sends "Application Crashed" and waits for the backend.
func (c *Client) TrackAppCrashed(ctx context.Context, cause error) error {
	return c.tracker.TrackAppCrashed(context.WithoutCancel(ctx), c.session.Snapshot(), cause)
}

// RecoverAndTrack reports a panic as "Application Crashed" and then panics
// again with the same value. Defer it directly:
//
//	defer client.RecoverAndTrack(ctx)
func (c *Client) RecoverAndTrack(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	if err := c.TrackAppCrashed(ctx, cause); err != nil {
		c.logger.Warn(ctx, "crash report failed", "err", err)
	}
	panic(r)
}

func (c *Client) Screen(ctx context.Context, name string, props map[string]string) {
	s := c.session.Snapshot()
	c.background(ctx, "screen", func(ctx context.Context) error {
		return c.tracker.Screen(ctx, s, name, props)
	})
}

// TrackNotification reports a status change for a received notification.
func (c *Client) TrackNotification(ctx context.Context, id string, status NotificationStatus) {
	c.background(ctx, "track notification", func(ctx context.Context) error {
		return c.tracker.TrackNotification(ctx, id, status)
	})
}

func (c *Client) NotificationDelivered(ctx context.Context, id string) {
	c.TrackNotification(ctx, id, NotificationDelivered)
}

func (c *Client) NotificationOpened(ctx context.Context, id string) {
	c.TrackNotification(ctx, id, NotificationOpened)
}

func (c *Client) NotificationDismissed(ctx context.Context, id string) {
	c.TrackNotification(ctx, id, NotificationDismissed)
}
