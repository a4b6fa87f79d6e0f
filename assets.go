package dashx

import (
	"context"

	"github.com/dashxhq/dashx-go/internal/common"
)

// UploadAsset uploads a file to a resource attribute and waits until the
// backend has processed it. Cancelling ctx stops the wait.
func (c *Client) UploadAsset(ctx context.Context, req UploadRequest) (*Asset, error) {
	return c.pipeline.UploadAsset(ctx, req)
}

// UploadExternalAsset uploads a file to an external column.
func (c *Client) UploadExternalAsset(ctx context.Context, req ExternalUploadRequest) (*ExternalAsset, error) {
	return c.pipeline.UploadExternalAsset(ctx, req)
}

// UploadAssetAsync runs UploadAsset in the background. Exactly one of
// onSuccess and onError is called.
func (c *Client) UploadAssetAsync(ctx context.Context, req UploadRequest, onSuccess func(*Asset), onError func(error)) {
	resolve(c, ctx, "upload asset", func(ctx context.Context) (*Asset, error) {
		return c.pipeline.UploadAsset(ctx, req)
	}, onSuccess, onError)
}

// UploadExternalAssetAsync runs UploadExternalAsset in the background.
// Exactly one of onSuccess and onError is called.
func (c *Client) UploadExternalAssetAsync(ctx context.Context, req ExternalUploadRequest, onSuccess func(*ExternalAsset), onError func(error)) {
	resolve(c, ctx, "upload external asset", func(ctx context.Context) (*ExternalAsset, error) {
		return c.pipeline.UploadExternalAsset(ctx, req)
	}, onSuccess, onError)
}

func resolve[T any](c *Client, ctx context.Context, name string, fn func(context.Context) (T, error), onSuccess func(T), onError func(error)) {
	if onSuccess == nil {
		onSuccess = func(T) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	accepted := c.uploads.Go(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			onError(err)
			return err
		}
		onSuccess(v)
		return nil
	})
	if !accepted {
		onError(common.ErrClosed)
	}
}
