package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/cryptox"
)

const saltSize = 16

// SealedStore encrypts the values of selected keys before handing them to
// the wrapped Store. Other keys pass through untouched.
type SealedStore struct {
	inner     Store
	key       []byte
	sensitive map[string]struct{}
}

// NewSealedStore derives the sealing key from secret and a per-store salt.
// The salt is created on first use and persisted in inner.
func NewSealedStore(ctx context.Context, inner Store, secret string, keys ...string) (*SealedStore, error) {
	salt, err := loadOrCreateSalt(ctx, inner)
	if err != nil {
		return nil, err
	}

	sensitive := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		sensitive[k] = struct{}{}
	}

	return &SealedStore{
		inner:     inner,
		key:       cryptox.DeriveKey([]byte(secret), salt),
		sensitive: sensitive,
	}, nil
}

func loadOrCreateSalt(ctx context.Context, s Store) ([]byte, error) {
	v, ok, err := s.Get(ctx, common.KeyStoreSalt)
	if err != nil {
		return nil, fmt.Errorf("load store salt: %w", err)
	}
	if ok {
		salt, err := base64.StdEncoding.DecodeString(v)
		if err == nil && len(salt) == saltSize {
			return salt, nil
		}
	}

	salt, err := cryptox.RandomBytes(saltSize)
	if err != nil {
		return nil, fmt.Errorf("generate store salt: %w", err)
	}
	if err := s.Put(ctx, common.KeyStoreSalt, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, fmt.Errorf("save store salt: %w", err)
	}
	return salt, nil
}

func (s *SealedStore) isSensitive(key string) bool {
	_, ok := s.sensitive[key]
	return ok
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok || !s.isSensitive(key) {
		return v, ok, err
	}

	plain, err := cryptox.Open(v, s.key)
	if err != nil {
		return "", false, fmt.Errorf("unseal %s: %w", key, err)
	}
	return string(plain), true, nil
}

func (s *SealedStore) Put(ctx context.Context, key, value string) error {
	if s.isSensitive(key) {
		sealed, err := cryptox.Seal([]byte(value), s.key)
		if err != nil {
			return fmt.Errorf("seal %s: %w", key, err)
		}
		value = sealed
	}
	return s.inner.Put(ctx, key, value)
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *SealedStore) PutMany(ctx context.Context, values map[string]*string) error {
	batch := make(map[string]*string, len(values))
	for k, v := range values {
		if v == nil || !s.isSensitive(k) {
			batch[k] = v
			continue
		}
		sealed, err := cryptox.Seal([]byte(*v), s.key)
		if err != nil {
			return fmt.Errorf("seal %s: %w", k, err)
		}
		batch[k] = &sealed
	}
	return s.inner.PutMany(ctx, batch)
}

// Unwrap returns the underlying store.
func (s *SealedStore) Unwrap() Store {
	return s.inner
}
