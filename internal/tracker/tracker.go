// Package tracker sends analytics events and derives app lifecycle events.
// Every operation is fire-and-forget from the caller's point of view: errors
// are logged and returned for the runner, never raised.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/models"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/dashxhq/dashx-go/internal/store"
	"github.com/dashxhq/dashx-go/internal/sysctx"
)

// AppInfo is the running application's version as the host reports it.
type AppInfo struct {
	Version string
	Build   int64
}

type Tracker struct {
	exec   rpc.Executor
	sys    sysctx.Provider
	store  store.Store
	app    AppInfo
	logger logging.Logger

	now func() time.Time
}

func New(exec rpc.Executor, sys sysctx.Provider, s store.Store, app AppInfo, logger logging.Logger) *Tracker {
	return &Tracker{
		exec:   exec,
		sys:    sys,
		store:  s,
		app:    app,
		logger: logger.With("module", "tracker"),
		now:    time.Now,
	}
}

// Track sends event with data and the current system context. The event is
// attributed to the identity in s, which callers capture when the event
// happens rather than when it is sent.
func (t *Tracker) Track(ctx context.Context, s models.Session, event string, data map[string]string) error {
	payload := make(map[string]any, len(data))
	for k, v := range data {
		payload[k] = v
	}

	input := map[string]any{
		"event": event,
		"data":  payload,
	}
	if s.AccountUID != "" {
		input["accountUid"] = s.AccountUID
	}
	if s.AccountAnonymousUID != "" {
		input["accountAnonymousUid"] = s.AccountAnonymousUID
	}
	if t.sys != nil {
		if sc := t.sys.FetchSystemContext(ctx); sc != nil {
			input["systemContext"] = sc
		}
	}

	if err := t.execute(ctx, rpc.TrackEvent, map[string]any{"input": input}); err != nil {
		t.logger.Error(ctx, "track failed", "event", event, "err", err)
		return err
	}
	t.logger.Debug(ctx, "tracked event", "event", event)
	return nil
}

// TrackAppStarted emits Installed, Updated or Opened depending on the build
// persisted by the previous run.
func (t *Tracker) TrackAppStarted(ctx context.Context, s models.Session, fromBackground bool) error {
	props := map[string]string{
		"version": t.app.Version,
		"build":   strconv.FormatInt(t.app.Build, 10),
	}
	if fromBackground {
		props["from_background"] = "true"
	}

	prev, ok, err := store.GetInt64(ctx, t.store, common.KeyBuild)
	if err != nil {
		t.logger.Warn(ctx, "failed to read stored build", "err", err)
		ok = false
	}

	var event string
	switch {
	case !ok:
		event = common.EventAppInstalled
	case prev < t.app.Build:
		event = common.EventAppUpdated
	default:
		event = common.EventAppOpened
	}

	trackErr := t.Track(ctx, s, event, props)

	if event != common.EventAppOpened {
		if err := store.PutInt64(ctx, t.store, common.KeyBuild, t.app.Build); err != nil {
			t.logger.Error(ctx, "failed to persist build", "err", err)
			if trackErr == nil {
				trackErr = fmt.Errorf("persist build: %w", err)
			}
		}
	}
	return trackErr
}

// TrackAppSession reports the foreground session length in seconds.
func (t *Tracker) TrackAppSession(ctx context.Context, s models.Session, elapsedMs float64) error {
	return t.Track(ctx, s, common.EventAppBackgrounded, map[string]string{
		"session_length": formatSeconds(elapsedMs / 1000),
	})
}

// TrackAppCrashed reports err as the crash cause. It never panics.
func (t *Tracker) TrackAppCrashed(ctx context.Context, s models.Session, cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("track crash: %v", r)
			t.logger.Error(ctx, "track crash panicked", "panic", r)
		}
	}()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.Track(ctx, s, common.EventAppCrashed, map[string]string{"exception": msg})
}

// Screen reports a screen view. props is not modified.
func (t *Tracker) Screen(ctx context.Context, s models.Session, name string, props map[string]string) error {
	merged := make(map[string]string, len(props)+1)
	for k, v := range props {
		merged[k] = v
	}
	merged["name"] = name
	return t.Track(ctx, s, common.EventScreenViewed, merged)
}

// TrackNotification reports a delivery status change for notification id.
func (t *Tracker) TrackNotification(ctx context.Context, id string, status models.NotificationStatus) error {
	input := map[string]any{
		"id":        id,
		"status":    string(status),
		"timestamp": t.now().UTC().Format(time.RFC3339Nano),
	}
	if err := t.execute(ctx, rpc.TrackNotification, map[string]any{"input": input}); err != nil {
		t.logger.Error(ctx, "track notification failed", "id", id, "status", status, "err", err)
		return err
	}
	return nil
}

func (t *Tracker) execute(ctx context.Context, op rpc.Operation, vars map[string]any) error {
	resp, err := t.exec.Execute(ctx, op, vars)
	if err != nil {
		return err
	}
	return resp.Err()
}

// formatSeconds always renders a fractional part: 2 -> "2.0", 1.5 -> "1.5".
func formatSeconds(s float64) string {
	out := strconv.FormatFloat(s, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
