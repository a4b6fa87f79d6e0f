// Package upload runs the asset upload protocol: prepare a ticket, PUT the
// file to the pre-signed URL, then poll until the backend reports the asset
// ready.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/filex"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/models"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxAttempts = 10
)

// State is a step of one upload.
type State string

const (
	StatePreparing    State = "PREPARING"
	StateTransferring State = "TRANSFERRING"
	StatePolling      State = "POLLING"
	StateReady        State = "READY"
	StateFailed       State = "FAILED"
	StateTimedOut     State = "TIMED_OUT"
)

// Transferer moves the file body to the pre-signed URL.
type Transferer interface {
	Put(ctx context.Context, url string, body io.Reader, size int64, contentType, originID string) error
}

// PollState is owned by a single upload call.
type PollState struct {
	Attempt     int
	MaxAttempts int
	Interval    time.Duration
}

type Pipeline struct {
	exec        rpc.Executor
	transfer    Transferer
	interval    time.Duration
	maxAttempts int
	logger      logging.Logger
}

// NewPipeline returns a Pipeline; non-positive interval or maxAttempts fall
// back to the defaults.
func NewPipeline(exec rpc.Executor, transfer Transferer, interval time.Duration, maxAttempts int, logger logging.Logger) *Pipeline {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	return &Pipeline{
		exec:        exec,
		transfer:    transfer,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger.With("module", "upload"),
	}
}

type record interface {
	State() models.AssetStatus
	AssetData() *models.AssetData
}

// UploadAsset uploads req to a resource attribute and returns the asset once
// it is ready.
func (p *Pipeline) UploadAsset(ctx context.Context, req models.UploadRequest) (*models.Asset, error) {
	src, err := openSource(req.File, req.Path, req.FileName, req.Size)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	prepare := func(ctx context.Context) (models.UploadTicket, error) {
		var a models.Asset
		err := p.call(ctx, rpc.PrepareAsset, map[string]any{"input": map[string]any{
			"resourceId":  req.ResourceID,
			"attributeId": req.AttributeID,
			"name":        src.name,
			"mimeType":    src.contentType,
			"size":        src.size,
		}}, &a)
		return ticketOf(a.ID, &a.Data), err
	}

	return run[models.Asset](ctx, p, src, prepare, rpc.Asset)
}

// UploadExternalAsset uploads req to an external column and returns the
// external asset once it is ready.
func (p *Pipeline) UploadExternalAsset(ctx context.Context, req models.ExternalUploadRequest) (*models.ExternalAsset, error) {
	src, err := openSource(req.File, req.Path, req.FileName, req.Size)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	prepare := func(ctx context.Context) (models.UploadTicket, error) {
		var a models.ExternalAsset
		err := p.call(ctx, rpc.PrepareExternalAsset, map[string]any{"input": map[string]any{
			"externalColumnId": req.ExternalColumnID,
		}}, &a)
		return ticketOf(a.ID, &a.Data), err
	}

	return run[models.ExternalAsset](ctx, p, src, prepare, rpc.ExternalAsset)
}

func ticketOf(id string, d *models.AssetData) models.UploadTicket {
	t := models.UploadTicket{ID: id}
	if d.Upload != nil {
		t.UploadURL = d.Upload.URL
	}
	return t
}

func run[T any, PT interface {
	*T
	record
}](ctx context.Context, p *Pipeline, src *source, prepare func(context.Context) (models.UploadTicket, error), fetch rpc.Operation) (PT, error) {
	p.transition(ctx, StatePreparing, "name", src.name, "size", src.size)
	ticket, err := prepare(ctx)
	if err == nil && ticket.UploadURL == "" {
		err = common.ApplicationError.Wrap(common.ErrNoUploadURL)
	}
	if err != nil {
		return nil, p.fail(ctx, StatePreparing, err)
	}

	p.transition(ctx, StateTransferring, "id", ticket.ID, "content_type", filex.Category(src.contentType))
	if err := p.transfer.Put(ctx, ticket.UploadURL, src.body, src.size, filex.Category(src.contentType), ticket.ID); err != nil {
		return nil, p.fail(ctx, StateTransferring, err)
	}

	state := PollState{MaxAttempts: p.maxAttempts, Interval: p.interval}
	p.transition(ctx, StatePolling, "id", ticket.ID, "max_attempts", state.MaxAttempts)

	var result PT
	err = p.poll(ctx, &state, func(ctx context.Context) (bool, error) {
		rec := PT(new(T))
		if err := p.call(ctx, fetch, map[string]any{"id": ticket.ID}, rec); err != nil {
			return false, err
		}
		if rec.State() != models.AssetReady {
			return false, nil
		}
		result = rec
		return true, nil
	})

	switch {
	case err == nil:
		if result.AssetData().SynthesizeURL() {
			p.logger.Debug(ctx, "synthesized stream url", "id", ticket.ID)
		}
		p.transition(ctx, StateReady, "id", ticket.ID, "attempts", state.Attempt)
		return result, nil
	case errors.Is(err, common.ErrNotReady):
		p.transition(ctx, StateTimedOut, "id", ticket.ID, "attempts", state.Attempt)
		return nil, common.PollTimeout.Wrap(fmt.Errorf("asset %s after %d attempts: %w", ticket.ID, state.Attempt, err))
	default:
		return nil, p.fail(ctx, StatePolling, err)
	}
}

// poll calls check until it reports ready, returns an error, or the budget
// in state runs out. At most state.MaxAttempts checks are made.
func (p *Pipeline) poll(ctx context.Context, state *PollState, check func(context.Context) (bool, error)) error {
	backoff := retry.WithMaxRetries(uint64(state.MaxAttempts-1), retry.NewConstant(state.Interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		state.Attempt++
		ready, err := check(ctx)
		if err != nil {
			return err
		}
		if !ready {
			p.logger.Debug(ctx, "asset not ready", "attempt", state.Attempt, "max_attempts", state.MaxAttempts)
			return retry.RetryableError(common.ErrNotReady)
		}
		return nil
	})
	if err != nil && ctx.Err() != nil && !errors.Is(err, common.ErrNotReady) {
		return fmt.Errorf("poll canceled after %d attempts: %w", state.Attempt, err)
	}
	return err
}

func (p *Pipeline) call(ctx context.Context, op rpc.Operation, vars map[string]any, out any) error {
	resp, err := p.exec.Execute(ctx, op, vars)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(op.Field(), out)
}

func (p *Pipeline) transition(ctx context.Context, s State, args ...any) {
	p.logger.Debug(ctx, "upload state", append([]any{"state", s}, args...)...)
}

func (p *Pipeline) fail(ctx context.Context, at State, err error) error {
	p.logger.Error(ctx, "upload failed", "state", StateFailed, "at", at, "err", err)
	return err
}
