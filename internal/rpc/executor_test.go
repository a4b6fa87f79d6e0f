package rpc

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	headers Headers

	mu    sync.Mutex
	calls []Operation

	entered chan struct{}
	block   chan struct{}
}

func (f *fakeExecutor) Execute(_ context.Context, op Operation, _ map[string]any) (*Response, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	return &Response{}, nil
}

type fakeFactory struct {
	built   []*fakeExecutor
	err     error
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeFactory) New(h Headers) (Executor, error) {
	if f.err != nil {
		return nil, f.err
	}
	e := &fakeExecutor{headers: h, entered: f.entered, block: f.block}
	f.built = append(f.built, e)
	return e, nil
}

func TestHandle_ExecuteBeforeRebuild(t *testing.T) {
	h := NewHandle(&fakeFactory{})
	_, err := h.Execute(context.Background(), TrackEvent, nil)
	require.ErrorIs(t, err, ErrNotBuilt)
	require.Equal(t, Headers{}, h.Headers())
}

func TestHandle_RebuildSwapsExecutor(t *testing.T) {
	f := &fakeFactory{}
	h := NewHandle(f)

	require.NoError(t, h.Rebuild(Headers{PublicKey: "pk"}))
	_, err := h.Execute(context.Background(), TrackEvent, nil)
	require.NoError(t, err)

	require.NoError(t, h.Rebuild(Headers{PublicKey: "pk", IdentityToken: "tok"}))
	_, err = h.Execute(context.Background(), Asset, nil)
	require.NoError(t, err)

	require.Len(t, f.built, 2)
	require.Equal(t, []Operation{TrackEvent}, f.built[0].calls)
	require.Equal(t, []Operation{Asset}, f.built[1].calls)
	require.Equal(t, "tok", h.Headers().IdentityToken)
}

func TestHandle_InFlightCallKeepsOldExecutor(t *testing.T) {
	entered := make(chan struct{})
	block := make(chan struct{})
	f := &fakeFactory{entered: entered, block: block}
	h := NewHandle(f)
	require.NoError(t, h.Rebuild(Headers{PublicKey: "old"}))

	done := make(chan struct{})
	go func() {
		_, _ = h.Execute(context.Background(), TrackEvent, nil)
		close(done)
	}()

	<-entered
	f.entered, f.block = nil, nil
	require.NoError(t, h.Rebuild(Headers{PublicKey: "new"}))
	close(block)
	<-done

	require.Equal(t, []Operation{TrackEvent}, f.built[0].calls)
	require.Empty(t, f.built[1].calls)
}

func TestHandle_RebuildErrorKeepsCurrent(t *testing.T) {
	f := &fakeFactory{}
	h := NewHandle(f)
	require.NoError(t, h.Rebuild(Headers{PublicKey: "pk"}))

	f.err = errors.New("boom")
	require.Error(t, h.Rebuild(Headers{PublicKey: "other"}))
	require.Equal(t, "pk", h.Headers().PublicKey)
}
