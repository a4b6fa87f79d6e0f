// Package netx moves file bytes to pre-signed object store URLs.
package netx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dashxhq/dashx-go/internal/common"
)

// maxErrorBody caps how much of a failed response is echoed into the error.
const maxErrorBody = 4 << 10

// HTTPTransferer PUTs file bodies to pre-signed URLs.
type HTTPTransferer struct {
	client *http.Client
}

func NewHTTPTransferer(client *http.Client) *HTTPTransferer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransferer{client: client}
}

// Put streams body to target. size < 0 sends the body chunked. originID binds
// the object to the upload ticket that issued target.
func (t *HTTPTransferer) Put(ctx context.Context, target string, body io.Reader, size int64, contentType, originID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return common.TransportError.Wrap(err)
	}
	if size >= 0 {
		req.ContentLength = size
		if size == 0 {
			req.Body = http.NoBody
		}
	}
	req.Header.Set("Content-Type", contentType)
	if originID != "" {
		req.Header.Set(common.OriginIDHeaderName, originID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return common.TransportError.Wrap(fmt.Errorf("put %s: %w", redact(target), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return common.UploadFailure.New("%s; body: %s", resp.Status, bytes.TrimSpace(b))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// redact drops the query string so signatures never reach logs.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
