// Package content passes content, cart and stored preference calls through to
// the backend.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/models"
	"github.com/dashxhq/dashx-go/internal/rpc"
)

type SessionSource interface {
	Snapshot() models.Session
}

type Service struct {
	exec    rpc.Executor
	session SessionSource
	logger  logging.Logger
}

func New(exec rpc.Executor, session SessionSource, logger logging.Logger) *Service {
	return &Service{exec: exec, session: session, logger: logger.With("module", "content")}
}

// ParseURN splits "{contentType}/{content}". Both halves must be non-empty.
func ParseURN(urn string) (contentType, content string, err error) {
	contentType, content, ok := strings.Cut(urn, "/")
	if !ok || contentType == "" || content == "" {
		return "", "", common.ValidationError.Wrap(fmt.Errorf("%w: %q", common.ErrMalformedURN, urn))
	}
	return contentType, content, nil
}

// FetchContent fetches a single content item. A malformed urn fails before
// any call is made.
func (s *Service) FetchContent(ctx context.Context, urn string, opts models.FetchContentOptions) (json.RawMessage, error) {
	contentType, content, err := ParseURN(urn)
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"contentType": contentType,
		"content":     content,
	}
	addOptions(input, opts.Preview, opts.Language, opts.Fields, opts.Include, opts.Exclude)

	return s.call(ctx, rpc.FetchContent, input)
}

// SearchContent searches contentType. The result is always a list.
func (s *Service) SearchContent(ctx context.Context, contentType string, opts models.SearchContentOptions) ([]json.RawMessage, error) {
	if contentType == "" {
		return nil, common.ValidationError.New("content type is required")
	}

	returnType := opts.ReturnType
	if returnType == "" {
		returnType = "all"
	}
	input := map[string]any{
		"contentType": contentType,
		"returnType":  returnType,
	}
	if opts.Filter != nil {
		input["filter"] = opts.Filter
	}
	if opts.Order != nil {
		input["order"] = opts.Order
	}
	if opts.Limit != nil {
		input["limit"] = *opts.Limit
	}
	addOptions(input, opts.Preview, opts.Language, opts.Fields, opts.Include, opts.Exclude)

	raw, err := s.call(ctx, rpc.SearchContent, input)
	if err != nil {
		return nil, err
	}

	// returnType "one" yields a single object
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return []json.RawMessage{raw}, nil
	}
	return list, nil
}

func (s *Service) FetchCart(ctx context.Context) (json.RawMessage, error) {
	uid, err := s.accountUID()
	if err != nil {
		return nil, err
	}
	return s.call(ctx, rpc.FetchCart, map[string]any{"accountUid": uid})
}

func (s *Service) AddItemToCart(ctx context.Context, in models.AddItemToCartInput) (json.RawMessage, error) {
	uid, err := s.accountUID()
	if err != nil {
		return nil, err
	}
	input := map[string]any{
		"accountUid": uid,
		"itemId":     in.ItemID,
		"pricingId":  in.PricingID,
		"quantity":   in.Quantity,
		"reset":      in.Reset,
	}
	if in.Custom != nil {
		input["custom"] = in.Custom
	}
	return s.call(ctx, rpc.AddItemToCart, input)
}

// FetchStoredPreferences returns the account's preference map.
func (s *Service) FetchStoredPreferences(ctx context.Context) (map[string]models.Preference, error) {
	uid, err := s.accountUID()
	if err != nil {
		return nil, err
	}
	raw, err := s.call(ctx, rpc.FetchStoredPreferences, map[string]any{"accountUid": uid})
	if err != nil {
		return nil, err
	}

	var out struct {
		PreferenceData map[string]models.Preference `json:"preferenceData"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, common.ApplicationError.Wrap(fmt.Errorf("decode preferences: %w", err))
	}
	return out.PreferenceData, nil
}

func (s *Service) SaveStoredPreferences(ctx context.Context, prefs map[string]models.Preference) error {
	uid, err := s.accountUID()
	if err != nil {
		return err
	}
	_, err = s.call(ctx, rpc.SaveStoredPreferences, map[string]any{
		"accountUid":     uid,
		"preferenceData": prefs,
	})
	return err
}

func (s *Service) accountUID() (string, error) {
	uid := s.session.Snapshot().AccountUID
	if uid == "" {
		return "", common.ValidationError.Wrap(common.ErrNoAccount)
	}
	return uid, nil
}

func (s *Service) call(ctx context.Context, op rpc.Operation, input map[string]any) (json.RawMessage, error) {
	resp, err := s.exec.Execute(ctx, op, map[string]any{"input": input})
	if err == nil {
		err = resp.Err()
	}
	var raw json.RawMessage
	if err == nil {
		raw, err = resp.Field(op.Field())
	}
	if err != nil {
		s.logger.Error(ctx, "request failed", "op", op, "err", err)
		return nil, err
	}
	return raw, nil
}

func addOptions(input map[string]any, preview *bool, language string, fields, include, exclude []string) {
	if preview != nil {
		input["preview"] = *preview
	}
	if language != "" {
		input["language"] = language
	}
	if fields != nil {
		input["fields"] = fields
	}
	if include != nil {
		input["include"] = include
	}
	if exclude != nil {
		input["exclude"] = exclude
	}
}
