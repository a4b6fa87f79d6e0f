package dashx

import (
	"context"
	"errors"

	"github.com/dashxhq/dashx-go/internal/common"
)

// Identify links attrs to the account on the backend. Recognised keys are
// uid, anonymousUid, email, phone, name, firstName and lastName; uid and
// anonymousUid default to the session values. Local state is unchanged.
func (c *Client) Identify(ctx context.Context, attrs map[string]string) {
	s := c.session.Snapshot()
	c.background(ctx, "identify", func(ctx context.Context) error {
		return c.session.IdentifyAs(ctx, s, attrs)
	})
}

// SetIdentity sets the account uid and identity token together. Empty
// strings clear them.
func (c *Client) SetIdentity(ctx context.Context, uid, token string) error {
	return c.session.SetIdentity(ctx, uid, token)
}

func (c *Client) SetIdentityToken(ctx context.Context, token string) error {
	return c.session.SetIdentityToken(ctx, token)
}

// SetTargetEnvironment changes the environment every later call targets.
func (c *Client) SetTargetEnvironment(ctx context.Context, env string) error {
	return c.session.SetTargetEnvironment(ctx, env)
}

// Reset unsubscribes the device under the current identity, then clears the
// account uid and identity token and issues a new anonymous uid. It runs
// after every SetDeviceToken, Subscribe and Unsubscribe made before it.
func (c *Client) Reset(ctx context.Context) error {
	reset := func(ctx context.Context) error {
		if err := c.push.Unsubscribe(ctx); err != nil {
			c.logger.Warn(ctx, "unsubscribe before reset failed", "err", err)
		}
		return c.session.Reset(ctx)
	}
	err := c.pushQ.Do(ctx, "reset", reset)
	if errors.Is(err, common.ErrClosed) {
		return reset(ctx)
	}
	return err
}

// SetDeviceToken records the push token. A Subscribe that arrived before any
// token runs now.
func (c *Client) SetDeviceToken(ctx context.Context, token string) {
	c.pushQ.Go(context.WithoutCancel(ctx), "set device token", func(ctx context.Context) error {
		return c.push.SetDeviceToken(ctx, token)
	})
}

// Subscribe registers the device token for push. Without a token it waits
// for SetDeviceToken.
func (c *Client) Subscribe(ctx context.Context) {
	c.pushQ.Go(context.WithoutCancel(ctx), "subscribe", func(ctx context.Context) error {
		return c.push.Subscribe(ctx)
	})
}

func (c *Client) Unsubscribe(ctx context.Context) {
	c.pushQ.Go(context.WithoutCancel(ctx), "unsubscribe", func(ctx context.Context) error {
		return c.push.Unsubscribe(ctx)
	})
}
