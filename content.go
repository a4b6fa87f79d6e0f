package dashx

import (
	"context"
	"encoding/json"
)

// FetchContent fetches one item by urn ("{contentType}/{content}"). A
// malformed urn fails with a ValidationError before any request is made.
func (c *Client) FetchContent(ctx context.Context, urn string, opts FetchContentOptions) (json.RawMessage, error) {
	return c.content.FetchContent(ctx, urn, opts)
}

// SearchContent searches contentType. ReturnType defaults to "all".
func (c *Client) SearchContent(ctx context.Context, contentType string, opts SearchContentOptions) ([]json.RawMessage, error) {
	return c.content.SearchContent(ctx, contentType, opts)
}

// FetchCart requires an identified account.
func (c *Client) FetchCart(ctx context.Context) (json.RawMessage, error) {
	return c.content.FetchCart(ctx)
}

func (c *Client) AddItemToCart(ctx context.Context, in AddItemToCartInput) (json.RawMessage, error) {
	return c.content.AddItemToCart(ctx, in)
}

func (c *Client) FetchStoredPreferences(ctx context.Context) (map[string]Preference, error) {
	return c.content.FetchStoredPreferences(ctx)
}

func (c *Client) SaveStoredPreferences(ctx context.Context, prefs map[string]Preference) error {
	return c.content.SaveStoredPreferences(ctx, prefs)
}
