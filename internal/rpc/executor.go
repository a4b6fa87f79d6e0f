package rpc

import (
	"context"
	"errors"
	"sync/atomic"
)

// Executor runs one operation. Implementations attach their headers to every
// call and never retry.
type Executor interface {
	Execute(ctx context.Context, op Operation, vars map[string]any) (*Response, error)
}

// Factory builds an Executor bound to a header set.
type Factory interface {
	New(h Headers) (Executor, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(h Headers) (Executor, error)

func (f FactoryFunc) New(h Headers) (Executor, error) { return f(h) }

var ErrNotBuilt = errors.New("rpc client not built")

type bound struct {
	exec    Executor
	headers Headers
}

// Handle is the shared, replaceable executor. Rebuild swaps in a client with
// new headers; calls already in flight finish on the client they started with.
type Handle struct {
	factory Factory
	cur     atomic.Pointer[bound]
}

func NewHandle(f Factory) *Handle {
	return &Handle{factory: f}
}

// Rebuild constructs a new executor for h and publishes it.
func (h *Handle) Rebuild(headers Headers) error {
	exec, err := h.factory.New(headers)
	if err != nil {
		return err
	}
	h.cur.Store(&bound{exec: exec, headers: headers})
	return nil
}

// Headers returns the headers of the current executor.
func (h *Handle) Headers() Headers {
	if b := h.cur.Load(); b != nil {
		return b.headers
	}
	return Headers{}
}

func (h *Handle) Execute(ctx context.Context, op Operation, vars map[string]any) (*Response, error) {
	b := h.cur.Load()
	if b == nil {
		return nil, ErrNotBuilt
	}
	return b.exec.Execute(ctx, op, vars)
}
