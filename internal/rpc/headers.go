package rpc

import "github.com/dashxhq/dashx-go/internal/common"

// Headers are attached to every request. Empty values are omitted.
type Headers struct {
	PublicKey         string
	TargetEnvironment string
	IdentityToken     string
}

// Map returns the header set keyed by wire name.
func (h Headers) Map() map[string]string {
	m := make(map[string]string, 3)
	if h.PublicKey != "" {
		m[common.PublicKeyHeaderName] = h.PublicKey
	}
	if h.TargetEnvironment != "" {
		m[common.TargetEnvironmentHeaderName] = h.TargetEnvironment
	}
	if h.IdentityToken != "" {
		m[common.IdentityTokenHeaderName] = h.IdentityToken
	}
	return m
}
