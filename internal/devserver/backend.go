// Package devserver is an in-memory DashX backend for local development and
// end-to-end tests. It speaks GraphQL over HTTP and the gRPC gateway
// protocol, issues identity tokens, presigns asset uploads and serves the
// object store those uploads land in.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dashxhq/dashx-go/internal/devserver/config"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/google/uuid"
)

// AppError is reported to clients in the response's errors list.
type AppError struct {
	Message string
}

func (e *AppError) Error() string { return e.Message }

func appErrorf(format string, args ...any) error {
	return &AppError{Message: fmt.Sprintf(format, args...)}
}

// Caller is the authenticated origin of a request.
type Caller struct {
	PublicKey         string
	TargetEnvironment string
	// UID is set when the request carried a valid identity token.
	UID string
}

// Call is one recorded operation.
type Call struct {
	Op     rpc.Operation
	Input  map[string]any
	Caller Caller
	At     time.Time
}

// PresignFunc returns a URL the client can PUT key's bytes to.
type PresignFunc func(ctx context.Context, key string) (string, error)

type assetKind int

const (
	kindAsset assetKind = iota
	kindExternal
)

type asset struct {
	id               string
	kind             assetKind
	resourceID       string
	attributeID      string
	externalColumnID string
	name             string
	mimeType         string
	size             int64
	key              string
	uploadURL        string

	uploaded    bool
	contentType string
	polls       int
}

type cartItem struct {
	ItemID    string
	PricingID string
	Quantity  int
	Custom    map[string]any
}

// Backend holds the dev server's state and implements every operation.
type Backend struct {
	cfg     *config.Config
	tokens  *Tokens
	presign PresignFunc
	logger  logging.Logger
	newID   func() string
	now     func() time.Time

	mu       sync.Mutex
	calls    []Call
	assets   map[string]*asset
	byKey    map[string]string
	content  map[string][]map[string]any
	prices   map[string]float64
	carts    map[string][]cartItem
	prefs    map[string]map[string]any
	contacts map[string]string
}

func NewBackend(cfg *config.Config, tokens *Tokens, presign PresignFunc, logger logging.Logger) *Backend {
	return &Backend{
		cfg:      cfg,
		tokens:   tokens,
		presign:  presign,
		logger:   logger.With("module", "backend"),
		newID:    uuid.NewString,
		now:      time.Now,
		assets:   map[string]*asset{},
		byKey:    map[string]string{},
		content:  map[string][]map[string]any{},
		prices:   map[string]float64{},
		carts:    map[string][]cartItem{},
		prefs:    map[string]map[string]any{},
		contacts: map[string]string{},
	}
}

// Authenticate checks the request headers and resolves the identity token.
func (b *Backend) Authenticate(publicKey, targetEnvironment, identityToken string) (Caller, error) {
	if publicKey == "" {
		return Caller{}, ErrMissingPublicKey
	}
	if len(b.cfg.PublicKeys) > 0 && !slices.Contains(b.cfg.PublicKeys, publicKey) {
		return Caller{}, ErrUnknownPublicKey
	}

	c := Caller{PublicKey: publicKey, TargetEnvironment: targetEnvironment}
	if identityToken != "" {
		uid, err := b.tokens.Verify(identityToken)
		if err != nil {
			return Caller{}, err
		}
		c.UID = uid
	}
	return c, nil
}

// Execute runs op for caller. Errors of type *AppError are reported in the
// response; anything else is a server fault.
func (b *Backend) Execute(ctx context.Context, caller Caller, op rpc.Operation, vars map[string]any) (any, error) {
	input, _ := vars["input"].(map[string]any)
	if input == nil {
		input = map[string]any{}
	}
	b.record(op, caller, vars, input)

	switch op {
	case rpc.IdentifyAccount:
		if str(input, "uid") == "" && str(input, "anonymousUid") == "" {
			return nil, appErrorf("uid or anonymousUid is required")
		}
		return map[string]any{"id": b.newID()}, nil
	case rpc.TrackEvent:
		if str(input, "event") == "" {
			return nil, appErrorf("event is required")
		}
		return map[string]any{"success": true}, nil
	case rpc.TrackNotification:
		if str(input, "id") == "" {
			return nil, appErrorf("id is required")
		}
		return map[string]any{"success": true}, nil
	case rpc.PrepareAsset:
		return b.prepare(ctx, kindAsset, input)
	case rpc.PrepareExternalAsset:
		return b.prepare(ctx, kindExternal, input)
	case rpc.Asset:
		return b.poll(kindAsset, str(vars, "id"))
	case rpc.ExternalAsset:
		return b.poll(kindExternal, str(vars, "id"))
	case rpc.SubscribeContact:
		return b.subscribe(input)
	case rpc.UnsubscribeContact:
		return b.unsubscribe(input)
	case rpc.FetchContent:
		return b.fetchContent(input)
	case rpc.SearchContent:
		return b.searchContent(input)
	case rpc.FetchCart:
		uid, err := b.account(caller, input)
		if err != nil {
			return nil, err
		}
		return b.cartView(uid), nil
	case rpc.AddItemToCart:
		return b.addItemToCart(caller, input)
	case rpc.FetchStoredPreferences:
		return b.fetchPreferences(caller, input)
	case rpc.SaveStoredPreferences:
		return b.savePreferences(caller, input)
	}
	return nil, appErrorf("unknown operation %q", op)
}

func (b *Backend) record(op rpc.Operation, caller Caller, vars, input map[string]any) {
	if op == rpc.Asset || op == rpc.ExternalAsset {
		input = vars
	}
	b.mu.Lock()
	b.calls = append(b.calls, Call{Op: op, Input: input, Caller: caller, At: b.now()})
	b.mu.Unlock()
}

// Calls returns the recorded calls of op, oldest first. With no op it
// returns every call.
func (b *Backend) Calls(op ...rpc.Operation) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if len(op) == 0 || slices.Contains(op, c.Op) {
			out = append(out, c)
		}
	}
	return out
}

// Contacts returns the registered push tokens keyed by token value.
func (b *Backend) Contacts() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.contacts))
	for k, v := range b.contacts {
		out[k] = v
	}
	return out
}

// PutContent adds or replaces an item of contentType keyed by identifier.
func (b *Backend) PutContent(contentType, identifier string, fields map[string]any) {
	item := map[string]any{"identifier": identifier}
	for k, v := range fields {
		item[k] = v
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.content[contentType]
	for i, it := range items {
		if it["identifier"] == identifier {
			items[i] = item
			return
		}
	}
	b.content[contentType] = append(items, item)
}

// SetPrice sets the unit price used for cart totals.
func (b *Backend) SetPrice(pricingID string, amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[pricingID] = amount
}

func (b *Backend) prepare(ctx context.Context, kind assetKind, input map[string]any) (any, error) {
	a := &asset{id: b.newID(), kind: kind}
	switch kind {
	case kindAsset:
		a.resourceID = str(input, "resourceId")
		a.attributeID = str(input, "attributeId")
		a.name = str(input, "name")
		a.mimeType = str(input, "mimeType")
		a.size = int64(num(input, "size"))
	case kindExternal:
		a.externalColumnID = str(input, "externalColumnId")
		if a.externalColumnID == "" {
			return nil, appErrorf("externalColumnId is required")
		}
	}
	a.key = "uploads/" + a.id

	url, err := b.presign(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", a.key, err)
	}
	a.uploadURL = url

	b.mu.Lock()
	defer b.mu.Unlock()
	b.assets[a.id] = a
	b.byKey[a.key] = a.id
	return b.assetView(a), nil
}

var (
	errUnknownObject  = errors.New("no upload was prepared for this key")
	errOriginMismatch = errors.New("origin id does not match the upload ticket")
)

// MarkUploaded binds an object PUT to the asset that prepared key.
func (b *Backend) MarkUploaded(key, originID, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.byKey[key]
	if !ok {
		return errUnknownObject
	}
	if originID != id {
		return errOriginMismatch
	}
	a := b.assets[id]
	a.uploaded = true
	a.contentType = contentType
	a.polls = 0
	return nil
}

func (b *Backend) poll(kind assetKind, id string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.assets[id]
	if !ok || a.kind != kind {
		return nil, appErrorf("asset %q not found", id)
	}
	if a.uploaded {
		a.polls++
	}
	return b.assetView(a), nil
}

func (a *asset) ready(after int) bool {
	return a.uploaded && a.polls > after
}

func (b *Backend) assetView(a *asset) map[string]any {
	data := map[string]any{}
	ready := a.ready(b.cfg.ReadyAfterPolls)

	switch {
	case ready && b.cfg.PlaybackIDs && strings.HasPrefix(a.mimeType, "video/"):
		data["asset"] = map[string]any{
			"status":       "ready",
			"playback_ids": []any{map[string]any{"id": strings.ReplaceAll(a.id, "-", ""), "policy": "public"}},
		}
	case ready:
		data["asset"] = map[string]any{
			"status": "ready",
			"url":    strings.TrimRight(b.cfg.PublicURL, "/") + "/" + b.cfg.S3Bucket + "/" + a.key,
		}
	case a.uploaded:
		data["upload"] = map[string]any{"status": "processing"}
	default:
		data["upload"] = map[string]any{"status": "waiting", "url": a.uploadURL}
	}

	if a.kind == kindExternal {
		status := "waiting"
		if ready {
			status = "ready"
		}
		return map[string]any{"id": a.id, "externalColumnId": a.externalColumnID, "status": status, "data": data}
	}

	uploadStatus := "PENDING"
	switch {
	case ready:
		uploadStatus = "UPLOADED"
	case a.uploaded:
		uploadStatus = "PROCESSING"
	}
	return map[string]any{
		"id":           a.id,
		"resourceId":   a.resourceID,
		"attributeId":  a.attributeID,
		"uploadStatus": uploadStatus,
		"data":         data,
	}
}

func (b *Backend) subscribe(input map[string]any) (any, error) {
	value := str(input, "value")
	if value == "" {
		return nil, appErrorf("value is required")
	}
	owner := str(input, "accountUid")
	if owner == "" {
		owner = str(input, "accountAnonymousUid")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.contacts[value] = owner
	return map[string]any{"id": b.newID(), "value": value}, nil
}

func (b *Backend) unsubscribe(input map[string]any) (any, error) {
	value := str(input, "value")

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.contacts[value]; !ok {
		return nil, appErrorf("contact %q not found", value)
	}
	delete(b.contacts, value)
	return map[string]any{"id": b.newID(), "value": value}, nil
}

func (b *Backend) fetchContent(input map[string]any) (any, error) {
	contentType, identifier := str(input, "contentType"), str(input, "content")

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.content[contentType] {
		if it["identifier"] == identifier {
			return project(it, stringList(input["fields"])), nil
		}
	}
	return nil, appErrorf("content %s/%s not found", contentType, identifier)
}

func (b *Backend) searchContent(input map[string]any) (any, error) {
	contentType := str(input, "contentType")
	filter, _ := input["filter"].(map[string]any)
	fields := stringList(input["fields"])

	b.mu.Lock()
	items := slices.Clone(b.content[contentType])
	b.mu.Unlock()

	out := []any{}
	for _, it := range items {
		if matches(it, filter) {
			out = append(out, project(it, fields))
		}
	}
	if limit := int(num(input, "limit")); limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	if str(input, "returnType") == "one" {
		if len(out) == 0 {
			return nil, nil
		}
		return out[0], nil
	}
	return out, nil
}

// account resolves the uid a cart or preference call acts on. A verified
// identity token must belong to the same account.
func (b *Backend) account(caller Caller, input map[string]any) (string, error) {
	uid := str(input, "accountUid")
	if uid == "" {
		return "", appErrorf("accountUid is required")
	}
	if caller.UID != "" && caller.UID != uid {
		return "", appErrorf("identity token does not belong to account %q", uid)
	}
	return uid, nil
}

func (b *Backend) addItemToCart(caller Caller, input map[string]any) (any, error) {
	uid, err := b.account(caller, input)
	if err != nil {
		return nil, err
	}
	itemID := str(input, "itemId")
	if itemID == "" {
		return nil, appErrorf("itemId is required")
	}
	qty, err := strconv.Atoi(str(input, "quantity"))
	if err != nil || qty < 0 {
		return nil, appErrorf("quantity must be a non-negative integer")
	}
	custom, _ := input["custom"].(map[string]any)
	reset, _ := input["reset"].(bool)

	b.mu.Lock()
	items := b.carts[uid]
	if reset {
		items = nil
	}
	idx := slices.IndexFunc(items, func(it cartItem) bool { return it.ItemID == itemID })
	switch {
	case idx >= 0 && qty == 0:
		items = slices.Delete(items, idx, idx+1)
	case idx >= 0:
		items[idx] = cartItem{ItemID: itemID, PricingID: str(input, "pricingId"), Quantity: qty, Custom: custom}
	case qty > 0:
		items = append(items, cartItem{ItemID: itemID, PricingID: str(input, "pricingId"), Quantity: qty, Custom: custom})
	}
	b.carts[uid] = items
	b.mu.Unlock()

	return b.cartView(uid), nil
}

func (b *Backend) cartView(uid string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	var total float64
	orderItems := []any{}
	for _, it := range b.carts[uid] {
		unit := b.prices[it.PricingID]
		line := unit * float64(it.Quantity)
		total += line
		orderItems = append(orderItems, map[string]any{
			"id":           it.ItemID,
			"quantity":     strconv.Itoa(it.Quantity),
			"unitPrice":    money(unit),
			"subtotal":     money(line),
			"discount":     money(0),
			"tax":          money(0),
			"total":        money(line),
			"custom":       it.Custom,
			"currencyCode": "USD",
		})
	}
	return map[string]any{
		"id":                uid,
		"status":            "CART",
		"subtotal":          money(total),
		"discount":          money(0),
		"tax":               money(0),
		"total":             money(total),
		"currencyCode":      "USD",
		"orderItems":        orderItems,
		"couponRedemptions": []any{},
	}
}

func (b *Backend) fetchPreferences(caller Caller, input map[string]any) (any, error) {
	uid, err := b.account(caller, input)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	prefs := b.prefs[uid]
	if prefs == nil {
		prefs = map[string]any{}
	}
	return map[string]any{"preferenceData": prefs}, nil
}

func (b *Backend) savePreferences(caller Caller, input map[string]any) (any, error) {
	uid, err := b.account(caller, input)
	if err != nil {
		return nil, err
	}
	data, _ := input["preferenceData"].(map[string]any)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefs[uid] = data
	return map[string]any{"success": true}, nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// num reads a JSON number, which arrives as float64 on both transports.
func num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, x := range list {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func project(item map[string]any, fields []string) map[string]any {
	out := map[string]any{}
	if len(fields) == 0 {
		for k, v := range item {
			out[k] = v
		}
		return out
	}
	out["identifier"] = item["identifier"]
	for _, f := range fields {
		if v, ok := item[f]; ok {
			out[f] = v
		}
	}
	return out
}

// matches applies an equality filter on top-level fields.
func matches(item, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprint(item[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
