package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dashxhq/dashx-go/internal/common"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 8 << 20

// GraphQLClient posts operations to a GraphQL endpoint.
type GraphQLClient struct {
	endpoint string
	headers  Headers
	client   *http.Client
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName"`
}

// NewHTTPClient returns the client used when the caller does not supply one.
func NewHTTPClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Transport: transport, Timeout: requestTimeout}
}

func NewGraphQLClient(endpoint string, headers Headers, client *http.Client) *GraphQLClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GraphQLClient{endpoint: endpoint, headers: headers, client: client}
}

// GraphQLFactory returns a Factory that shares client across rebuilds.
func GraphQLFactory(endpoint string, client *http.Client) Factory {
	return FactoryFunc(func(h Headers) (Executor, error) {
		return NewGraphQLClient(endpoint, h, client), nil
	})
}

func (c *GraphQLClient) Execute(ctx context.Context, op Operation, vars map[string]any) (*Response, error) {
	doc, ok := Document(op)
	if !ok {
		return nil, common.ValidationError.New("unknown operation %q", op)
	}

	body, err := json.Marshal(graphqlRequest{Query: doc, Variables: vars, OperationName: string(op)})
	if err != nil {
		return nil, common.ValidationError.Wrap(fmt.Errorf("encode %s variables: %w", op, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, common.TransportError.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers.Map() {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.TransportError.Wrap(ctx.Err())
		}
		return nil, common.TransportError.Wrap(fmt.Errorf("%w: %v", common.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, common.TransportError.Wrap(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, common.TransportError.Wrap(statusError(resp.StatusCode, resp.Status, b))
	}

	return decodeEnvelope(b)
}

func statusError(code int, status string, body []byte) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, status)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", common.ErrUnavailable, status)
	default:
		return fmt.Errorf("unexpected status %s: %s", status, bytes.TrimSpace(body))
	}
}
