// Package push registers the device's push token with the backend. A
// subscribe request made before a token exists is held until SetDeviceToken.
package push

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/models"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/dashxhq/dashx-go/internal/store"
	"github.com/dashxhq/dashx-go/internal/sysctx"
)

// TokenProvider is the platform messaging service that issued the token.
type TokenProvider interface {
	DeleteToken(ctx context.Context) error
}

// NopTokenProvider is used when no messaging service is wired in.
type NopTokenProvider struct{}

func (NopTokenProvider) DeleteToken(context.Context) error { return nil }

type SessionSource interface {
	Snapshot() models.Session
}

// Phase is the token state of the manager.
type Phase int

const (
	NoToken Phase = iota
	HasToken
)

func (p Phase) String() string {
	if p == HasToken {
		return "HasToken"
	}
	return "NoToken"
}

// ContactKind maps the running platform to the backend's contact kind.
func ContactKind(goos string) string {
	switch goos {
	case "android":
		return "ANDROID"
	case "ios":
		return "IOS"
	default:
		return "WEB"
	}
}

type Manager struct {
	exec     rpc.Executor
	session  SessionSource
	device   sysctx.DeviceInfo
	store    store.Store
	provider TokenProvider
	logger   logging.Logger
	kind     string

	// op serialises the read, RPC and save steps of subscribe and
	// unsubscribe so concurrent calls see each other's result.
	op sync.Mutex

	mu      sync.Mutex
	phase   Phase
	token   string
	pending bool
}

func NewManager(exec rpc.Executor, session SessionSource, device sysctx.DeviceInfo, s store.Store, provider TokenProvider, logger logging.Logger) *Manager {
	if provider == nil {
		provider = NopTokenProvider{}
	}
	return &Manager{
		exec:     exec,
		session:  session,
		device:   device,
		store:    s,
		provider: provider,
		logger:   logger.With("module", "push"),
		kind:     ContactKind(runtime.GOOS),
	}
}

// Phase reports the current state and whether a subscribe is pending.
func (m *Manager) Phase() (Phase, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase, m.pending
}

// Token returns the in-memory device token, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// SetDeviceToken moves to HasToken. A pending subscribe runs exactly once.
// An empty token moves back to NoToken.
func (m *Manager) SetDeviceToken(ctx context.Context, token string) error {
	m.mu.Lock()
	if token == "" {
		m.phase, m.token = NoToken, ""
		m.mu.Unlock()
		return nil
	}
	m.phase, m.token = HasToken, token
	run := m.pending
	m.pending = false
	m.mu.Unlock()

	if !run {
		return nil
	}
	m.logger.Debug(ctx, "running deferred subscribe")
	return m.subscribe(ctx, token)
}

// Subscribe registers the current token, or defers until one is set.
func (m *Manager) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	if m.phase == NoToken {
		m.pending = true
		m.mu.Unlock()
		m.logger.Debug(ctx, "subscribe deferred until a device token is set")
		return nil
	}
	token := m.token
	m.pending = false
	m.mu.Unlock()

	return m.subscribe(ctx, token)
}

func (m *Manager) subscribe(ctx context.Context, token string) error {
	m.op.Lock()
	defer m.op.Unlock()

	saved, _, err := m.store.Get(ctx, common.KeyDeviceToken)
	if err != nil {
		m.logger.Warn(ctx, "failed to read saved device token", "err", err)
	}
	if saved == token {
		m.logger.Debug(ctx, "already subscribed")
		return nil
	}

	s := m.session.Snapshot()
	input := map[string]any{
		"accountUid":          nullable(s.AccountUID),
		"accountAnonymousUid": nullable(s.AccountAnonymousUID),
		"kind":                m.kind,
		"value":               token,
	}
	if m.device != nil {
		input["name"] = nullable(m.device.DeviceName())
		input["osName"] = m.device.OSName()
		input["osVersion"] = m.device.OSVersion()
		input["deviceManufacturer"] = m.device.Manufacturer()
		input["deviceModel"] = m.device.Model()
	}

	if err := m.execute(ctx, rpc.SubscribeContact, input); err != nil {
		m.logger.Error(ctx, "failed to subscribe", "err", err)
		return err
	}

	if err := m.store.Put(ctx, common.KeyDeviceToken, token); err != nil {
		m.logger.Error(ctx, "failed to save device token", "err", err)
		return fmt.Errorf("save device token: %w", err)
	}
	m.logger.Debug(ctx, "subscribed")
	return nil
}

// Unsubscribe removes the saved registration. Without a saved token it is a
// no-op.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	saved, ok, err := m.store.Get(ctx, common.KeyDeviceToken)
	if err != nil {
		m.logger.Error(ctx, "failed to read saved device token", "err", err)
		return err
	}
	if !ok || saved == "" {
		m.logger.Debug(ctx, "unsubscribe called without subscribing first")
		return nil
	}

	s := m.session.Snapshot()

	if err := m.provider.DeleteToken(ctx); err != nil {
		m.logger.Error(ctx, "failed to delete platform token", "err", err)
		return fmt.Errorf("delete platform token: %w", err)
	}

	m.mu.Lock()
	m.phase, m.token = NoToken, ""
	m.mu.Unlock()

	if err := m.store.Remove(ctx, common.KeyDeviceToken); err != nil {
		m.logger.Error(ctx, "failed to remove saved device token", "err", err)
	}

	input := map[string]any{
		"accountUid":          nullable(s.AccountUID),
		"accountAnonymousUid": nullable(s.AccountAnonymousUID),
		"value":               saved,
	}
	if err := m.execute(ctx, rpc.UnsubscribeContact, input); err != nil {
		m.logger.Error(ctx, "failed to unsubscribe", "err", err)
		return err
	}
	m.logger.Debug(ctx, "unsubscribed")
	return nil
}

func (m *Manager) execute(ctx context.Context, op rpc.Operation, input map[string]any) error {
	resp, err := m.exec.Execute(ctx, op, map[string]any{"input": input})
	if err != nil {
		return err
	}
	return resp.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
