package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dashxhq/dashx-go/internal/common"
)

// Response is the transport-neutral result of an operation: the data object
// keyed by root field, and any application errors the backend reported.
type Response struct {
	Data   json.RawMessage
	Errors []string
}

// envelope is the wire shape shared by both transports.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeEnvelope(b []byte) (*Response, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, common.TransportError.Wrap(fmt.Errorf("malformed response: %w", err))
	}
	resp := &Response{Data: env.Data}
	for _, e := range env.Errors {
		resp.Errors = append(resp.Errors, e.Message)
	}
	return resp, nil
}

// Err reports the backend errors as an ApplicationError, or nil.
func (r *Response) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	return common.ApplicationError.New("%s", strings.Join(r.Errors, "; "))
}

// Decode unmarshals the value under field into v. A missing or null field is
// an ApplicationError.
func (r *Response) Decode(field string, v any) error {
	raw, err := r.Field(field)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return common.ApplicationError.Wrap(fmt.Errorf("decode %s: %w", field, err))
	}
	return nil
}

// Field returns the raw value under field.
func (r *Response) Field(field string) (json.RawMessage, error) {
	if r == nil || len(r.Data) == 0 {
		return nil, common.ApplicationError.New("response has no data")
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return nil, common.ApplicationError.Wrap(fmt.Errorf("decode data: %w", err))
	}
	raw, ok := data[field]
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, common.ApplicationError.New("response has no %s", field)
	}
	return raw, nil
}
