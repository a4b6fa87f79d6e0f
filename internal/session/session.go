// Package session owns the client's identity state (account uid, anonymous
// uid, identity token), persists it, and rebuilds the shared RPC client when
// a header-affecting field changes.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/models"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/dashxhq/dashx-go/internal/store"
	"github.com/google/uuid"
)

type Manager struct {
	store  store.Store
	handle *rpc.Handle
	logger logging.Logger

	newUID func() string

	mu    sync.RWMutex
	state models.Session
	base  rpc.Headers
}

// NewManager returns a Manager bound to s and h. base carries the public key
// and target environment; the identity token is filled from session state.
func NewManager(s store.Store, h *rpc.Handle, base rpc.Headers, logger logging.Logger) *Manager {
	return &Manager{
		store:  s,
		handle: h,
		logger: logger.With("module", "session"),
		newUID: uuid.NewString,
		base:   rpc.Headers{PublicKey: base.PublicKey, TargetEnvironment: base.TargetEnvironment},
	}
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Headers returns the headers the RPC client is currently built with.
func (m *Manager) Headers() rpc.Headers {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headersLocked()
}

func (m *Manager) headersLocked() rpc.Headers {
	h := m.base
	h.IdentityToken = m.state.IdentityToken
	return h
}

func (m *Manager) load(ctx context.Context, key string) string {
	v, _, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn(ctx, "failed to read session value", "key", key, "err", err)
		return ""
	}
	return v
}

// Initialize loads persisted state, generating and persisting an anonymous
// uid if none exists. It never fails on store errors; repeated calls keep the
// same anonymous uid.
func (m *Manager) Initialize(ctx context.Context) error {
	uid := m.load(ctx, common.KeyAccountUID)
	anon := m.load(ctx, common.KeyAccountAnonymousUID)
	token := m.load(ctx, common.KeyIdentityToken)

	m.mu.Lock()
	generated := false
	if anon == "" {
		anon = m.state.AccountAnonymousUID
		if anon == "" {
			anon = m.newUID()
		}
		generated = true
	}
	m.state.AccountUID = uid
	m.state.AccountAnonymousUID = anon
	m.state.IdentityToken = token
	rerr := m.handle.Rebuild(m.headersLocked())
	m.mu.Unlock()

	if generated {
		if err := m.store.Put(ctx, common.KeyAccountAnonymousUID, anon); err != nil {
			m.logger.Warn(ctx, "failed to persist anonymous uid", "err", err)
		}
		m.logger.Debug(ctx, "generated anonymous uid", "anonymous_uid", anon)
	}

	return rerr
}

// Identify links the given attributes to the account on the backend. Keys
// present in attrs win over session values for uid and anonymousUid. Local
// session state is not changed.
func (m *Manager) Identify(ctx context.Context, attrs map[string]string) error {
	return m.IdentifyAs(ctx, m.Snapshot(), attrs)
}

// IdentifyAs is Identify with uid and anonymousUid defaulting to s instead
// of the current session.
func (m *Manager) IdentifyAs(ctx context.Context, s models.Session, attrs map[string]string) error {
	if attrs == nil {
		err := common.ValidationError.New("identify requires attributes")
		m.logger.Error(ctx, "identify skipped", "err", err)
		return err
	}

	input := map[string]any{}

	if v, ok := attrs[common.AttrUID]; ok {
		input["uid"] = v
	} else if s.AccountUID != "" {
		input["uid"] = s.AccountUID
	}
	if v, ok := attrs[common.AttrAnonymousUID]; ok {
		input["anonymousUid"] = v
	} else if s.AccountAnonymousUID != "" {
		input["anonymousUid"] = s.AccountAnonymousUID
	}
	for _, k := range []string{common.AttrEmail, common.AttrPhone, common.AttrName, common.AttrFirstName, common.AttrLastName} {
		if v, ok := attrs[k]; ok {
			input[k] = v
		}
	}

	resp, err := m.handle.Execute(ctx, rpc.IdentifyAccount, map[string]any{"input": input})
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		m.logger.Error(ctx, "identify failed", "err", err)
		return err
	}

	m.logger.Debug(ctx, "identified account", "uid", input["uid"])
	return nil
}

// SetIdentity sets the account uid and identity token together. Empty values
// clear the field.
func (m *Manager) SetIdentity(ctx context.Context, uid, token string) error {
	m.mu.Lock()
	m.state.AccountUID = uid
	m.state.IdentityToken = token
	rerr := m.handle.Rebuild(m.headersLocked())
	m.mu.Unlock()

	err := m.store.PutMany(ctx, map[string]*string{
		common.KeyAccountUID:    optional(uid),
		common.KeyIdentityToken: optional(token),
	})
	if err != nil {
		err = fmt.Errorf("persist identity: %w", err)
		m.logger.Error(ctx, "set identity failed", "err", err)
	}

	if rerr != nil {
		return rerr
	}
	return err
}

// SetIdentityToken replaces only the identity token.
func (m *Manager) SetIdentityToken(ctx context.Context, token string) error {
	m.mu.Lock()
	m.state.IdentityToken = token
	rerr := m.handle.Rebuild(m.headersLocked())
	m.mu.Unlock()

	err := m.store.PutMany(ctx, map[string]*string{common.KeyIdentityToken: optional(token)})
	if err != nil {
		err = fmt.Errorf("persist identity token: %w", err)
		m.logger.Error(ctx, "set identity token failed", "err", err)
	}

	if rerr != nil {
		return rerr
	}
	return err
}

// Reset clears the account uid and identity token and always issues a new
// anonymous uid.
func (m *Manager) Reset(ctx context.Context) error {
	anon := m.newUID()

	m.mu.Lock()
	m.state.AccountUID = ""
	m.state.IdentityToken = ""
	m.state.AccountAnonymousUID = anon
	rerr := m.handle.Rebuild(m.headersLocked())
	m.mu.Unlock()

	err := m.store.PutMany(ctx, map[string]*string{
		common.KeyAccountUID:          nil,
		common.KeyIdentityToken:       nil,
		common.KeyAccountAnonymousUID: &anon,
	})
	if err != nil {
		err = fmt.Errorf("persist reset: %w", err)
		m.logger.Error(ctx, "reset failed", "err", err)
	}

	if rerr != nil {
		return rerr
	}
	return err
}

// RegenerateAnonymousUID issues and persists a new anonymous uid without
// touching the account uid or token.
func (m *Manager) RegenerateAnonymousUID(ctx context.Context) (string, error) {
	anon := m.newUID()

	m.mu.Lock()
	m.state.AccountAnonymousUID = anon
	m.mu.Unlock()

	if err := m.store.Put(ctx, common.KeyAccountAnonymousUID, anon); err != nil {
		return anon, fmt.Errorf("persist anonymous uid: %w", err)
	}
	return anon, nil
}

// SetTargetEnvironment changes the X-Target-Environment header.
func (m *Manager) SetTargetEnvironment(_ context.Context, env string) error {
	m.mu.Lock()
	m.base.TargetEnvironment = env
	err := m.handle.Rebuild(m.headersLocked())
	m.mu.Unlock()

	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
