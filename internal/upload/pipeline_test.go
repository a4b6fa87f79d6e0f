package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/models"
	"github.com/dashxhq/dashx-go/internal/netx"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/stretchr/testify/require"
)

// scriptedExec answers prepare calls with prepareData and poll calls with
// successive entries of polls (the last entry repeats).
type scriptedExec struct {
	mu sync.Mutex

	prepareData string
	prepareErr  error
	polls       []string
	pollErrAt   int

	prepareVars map[string]any
	pollCalls   map[string]int
}

func (s *scriptedExec) Execute(_ context.Context, op rpc.Operation, vars map[string]any) (*rpc.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch op {
	case rpc.PrepareAsset, rpc.PrepareExternalAsset:
		s.prepareVars = vars
		if s.prepareErr != nil {
			return nil, s.prepareErr
		}
		return data(op, s.prepareData), nil
	case rpc.Asset, rpc.ExternalAsset:
		if s.pollCalls == nil {
			s.pollCalls = map[string]int{}
		}
		id := vars["id"].(string)
		s.pollCalls[id]++
		n := s.pollCalls[id]
		if s.pollErrAt > 0 && n == s.pollErrAt {
			return &rpc.Response{Errors: []string{"asset lookup failed"}}, nil
		}
		i := n - 1
		if i >= len(s.polls) {
			i = len(s.polls) - 1
		}
		return data(op, s.polls[i]), nil
	}
	return nil, fmt.Errorf("unexpected op %s", op)
}

func (s *scriptedExec) polled(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCalls[id]
}

func data(op rpc.Operation, body string) *rpc.Response {
	return &rpc.Response{Data: json.RawMessage(fmt.Sprintf(`{%q:%s}`, op.Field(), body))}
}

func assetJSON(id, status string) string {
	return fmt.Sprintf(`{"id":%q,"uploadStatus":%q,"data":{"asset":{"status":"ready","url":"https://cdn/%s"}}}`, id, status, id)
}

type fakeTransfer struct {
	lastURL, lastType, lastOrigin string
	lastBody                      []byte
	lastSize                      int64
	calls                         int
	err                           error
}

func (f *fakeTransfer) Put(_ context.Context, url string, body io.Reader, size int64, contentType, originID string) error {
	f.calls++
	f.lastURL, f.lastType, f.lastOrigin, f.lastSize = url, contentType, originID, size
	f.lastBody, _ = io.ReadAll(body)
	return f.err
}

const prepareT1 = `{"id":"t1","data":{"upload":{"url":"https://x/y"}}}`

func newPipeline(exec rpc.Executor, tr Transferer, maxAttempts int) *Pipeline {
	return NewPipeline(exec, tr, time.Millisecond, maxAttempts, logging.NopLogger{})
}

func pngRequest() models.UploadRequest {
	return models.UploadRequest{
		File:        strings.NewReader("\x89PNG\r\n\x1a\nrest-of-image"),
		FileName:    "avatar.png",
		ResourceID:  "users",
		AttributeID: "avatar",
	}
}

func TestUploadAsset_HappyPath(t *testing.T) {
	exec := &scriptedExec{
		prepareData: prepareT1,
		polls:       []string{assetJSON("t1", "PENDING"), assetJSON("t1", "PENDING"), assetJSON("t1", "UPLOADED")},
	}
	tr := &fakeTransfer{}

	asset, err := newPipeline(exec, tr, 10).UploadAsset(context.Background(), pngRequest())
	require.NoError(t, err)
	require.Equal(t, "t1", asset.ID)
	require.Equal(t, models.AssetReady, asset.State())
	require.Equal(t, 3, exec.polled("t1"))

	input := exec.prepareVars["input"].(map[string]any)
	require.Equal(t, "users", input["resourceId"])
	require.Equal(t, "avatar", input["attributeId"])
	require.Equal(t, "avatar.png", input["name"])
	require.Equal(t, "image/png", input["mimeType"])
	require.Equal(t, int64(21), input["size"])

	require.Equal(t, 1, tr.calls)
	require.Equal(t, "https://x/y", tr.lastURL)
	require.Equal(t, "image/*", tr.lastType)
	require.Equal(t, "t1", tr.lastOrigin)
	require.Equal(t, int64(21), tr.lastSize)
	require.Equal(t, "\x89PNG\r\n\x1a\nrest-of-image", string(tr.lastBody))
}

func TestUploadAsset_PollStateIsPerCall(t *testing.T) {
	exec := &scriptedExec{
		prepareData: prepareT1,
		polls:       []string{assetJSON("t1", "PENDING"), assetJSON("t1", "UPLOADED")},
	}
	p := newPipeline(exec, &fakeTransfer{}, 3)

	_, err := p.UploadAsset(context.Background(), pngRequest())
	require.NoError(t, err)
	require.Equal(t, 2, exec.polled("t1"))

	exec2 := &scriptedExec{
		prepareData: `{"id":"t2","data":{"upload":{"url":"https://x/z"}}}`,
		polls:       []string{assetJSON("t2", "PENDING"), assetJSON("t2", "PENDING"), assetJSON("t2", "UPLOADED")},
	}
	p.exec = exec2

	_, err = p.UploadAsset(context.Background(), pngRequest())
	require.NoError(t, err, "second upload gets its own full budget")
	require.Equal(t, 3, exec2.polled("t2"))
}

func TestUploadAsset_BudgetExhausted(t *testing.T) {
	exec := &scriptedExec{prepareData: prepareT1, polls: []string{assetJSON("t1", "PENDING")}}

	_, err := newPipeline(exec, &fakeTransfer{}, 4).UploadAsset(context.Background(), pngRequest())
	require.Error(t, err)
	require.True(t, common.PollTimeout.Has(err))
	require.False(t, common.TransportError.Has(err))
	require.ErrorIs(t, err, common.ErrNotReady)
	require.Equal(t, 4, exec.polled("t1"), "never polls a fifth time")
}

func TestUploadAsset_SingleAttemptBudget(t *testing.T) {
	exec := &scriptedExec{prepareData: prepareT1, polls: []string{assetJSON("t1", "PENDING")}}

	_, err := newPipeline(exec, &fakeTransfer{}, 1).UploadAsset(context.Background(), pngRequest())
	require.True(t, common.PollTimeout.Has(err))
	require.Equal(t, 1, exec.polled("t1"))
}

func TestUploadAsset_ReadyOnLastAttempt(t *testing.T) {
	exec := &scriptedExec{
		prepareData: prepareT1,
		polls:       []string{assetJSON("t1", "PENDING"), assetJSON("t1", "PENDING"), assetJSON("t1", "UPLOADED")},
	}

	_, err := newPipeline(exec, &fakeTransfer{}, 3).UploadAsset(context.Background(), pngRequest())
	require.NoError(t, err)
}

func TestUploadAsset_PollErrorFailsImmediately(t *testing.T) {
	exec := &scriptedExec{prepareData: prepareT1, polls: []string{assetJSON("t1", "PENDING")}, pollErrAt: 2}

	_, err := newPipeline(exec, &fakeTransfer{}, 10).UploadAsset(context.Background(), pngRequest())
	require.True(t, common.ApplicationError.Has(err))
	require.False(t, common.PollTimeout.Has(err))
	require.Equal(t, 2, exec.polled("t1"))
}

func TestUploadAsset_PrepareErrors(t *testing.T) {
	tr := &fakeTransfer{}

	exec := &scriptedExec{prepareErr: common.TransportError.New("down")}
	_, err := newPipeline(exec, tr, 10).UploadAsset(context.Background(), pngRequest())
	require.True(t, common.TransportError.Has(err))

	exec = &scriptedExec{prepareData: `{"id":"t1","data":{}}`}
	_, err = newPipeline(exec, tr, 10).UploadAsset(context.Background(), pngRequest())
	require.True(t, common.ApplicationError.Has(err))
	require.ErrorIs(t, err, common.ErrNoUploadURL)

	require.Zero(t, tr.calls)
}

func TestUploadAsset_TransferFailureStopsBeforePolling(t *testing.T) {
	exec := &scriptedExec{prepareData: prepareT1, polls: []string{assetJSON("t1", "UPLOADED")}}
	tr := &fakeTransfer{err: common.UploadFailure.New("403 Forbidden; body: denied")}

	_, err := newPipeline(exec, tr, 10).UploadAsset(context.Background(), pngRequest())
	require.True(t, common.UploadFailure.Has(err))
	require.Contains(t, err.Error(), "denied")
	require.Zero(t, exec.polled("t1"))
}

func TestUploadAsset_MuxURLSynthesized(t *testing.T) {
	exec := &scriptedExec{
		prepareData: prepareT1,
		polls: []string{`{"id":"t1","uploadStatus":"UPLOADED",
			"data":{"asset":{"status":"ready","playback_ids":[{"id":"abc","policy":"public"}]}}}`},
	}

	asset, err := newPipeline(exec, &fakeTransfer{}, 10).UploadAsset(context.Background(), pngRequest())
	require.NoError(t, err)
	require.Equal(t, "https://stream.mux.com/abc.m3u8", asset.Data.URL())
}

func TestUploadAsset_CancelStopsPolling(t *testing.T) {
	exec := &scriptedExec{prepareData: prepareT1, polls: []string{assetJSON("t1", "PENDING")}}
	p := NewPipeline(exec, &fakeTransfer{}, time.Hour, 10, logging.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := p.UploadAsset(ctx, pngRequest())
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, common.PollTimeout.Has(err))
	require.Equal(t, 1, exec.polled("t1"))
}

func TestUploadAsset_MissingFile(t *testing.T) {
	exec := &scriptedExec{}
	_, err := newPipeline(exec, &fakeTransfer{}, 10).UploadAsset(context.Background(), models.UploadRequest{ResourceID: "r"})
	require.True(t, common.ValidationError.Has(err))
	require.ErrorIs(t, err, common.ErrMissingFile)
	require.Nil(t, exec.prepareVars)
}

func TestUploadAsset_FromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	exec := &scriptedExec{prepareData: prepareT1, polls: []string{assetJSON("t1", "UPLOADED")}}
	tr := &fakeTransfer{}

	_, err := newPipeline(exec, tr, 10).UploadAsset(context.Background(), models.UploadRequest{Path: path})
	require.NoError(t, err)

	input := exec.prepareVars["input"].(map[string]any)
	require.Equal(t, "clip.bin", input["name"])
	require.Equal(t, int64(10), input["size"])
	require.Equal(t, "*/*", tr.lastType)
	require.Equal(t, "0123456789", string(tr.lastBody))
}

func TestUploadAsset_UnknownLengthIsBuffered(t *testing.T) {
	exec := &scriptedExec{prepareData: prepareT1, polls: []string{assetJSON("t1", "UPLOADED")}}
	tr := &fakeTransfer{}

	r := io.MultiReader(strings.NewReader("abc"), strings.NewReader("def"))
	_, err := newPipeline(exec, tr, 10).UploadAsset(context.Background(), models.UploadRequest{File: r, FileName: "x.txt"})
	require.NoError(t, err)
	require.Equal(t, int64(6), tr.lastSize)
	require.Equal(t, "abcdef", string(tr.lastBody))
}

func TestUploadExternalAsset_HappyPath(t *testing.T) {
	exec := &scriptedExec{
		prepareData: `{"id":"e1","externalColumnId":"col","data":{"upload":{"url":"https://x/e"}}}`,
		polls: []string{
			`{"id":"e1","status":"waiting","data":{}}`,
			`{"id":"e1","status":"ready","data":{"asset":{"status":"ready","playback_ids":[{"id":"vid"}]}}}`,
		},
	}
	tr := &fakeTransfer{}

	asset, err := newPipeline(exec, tr, 5).UploadExternalAsset(context.Background(), models.ExternalUploadRequest{
		File:             bytes.NewReader([]byte("data")),
		FileName:         "movie.mov",
		ExternalColumnID: "col",
	})
	require.NoError(t, err)
	require.Equal(t, "e1", asset.ID)
	require.Equal(t, "https://stream.mux.com/vid.m3u8", asset.Data.URL())
	require.Equal(t, map[string]any{"externalColumnId": "col"}, exec.prepareVars["input"])
	require.Equal(t, "e1", tr.lastOrigin)
	require.Equal(t, 2, exec.polled("e1"))
}

func TestUploadExternalAsset_Timeout(t *testing.T) {
	exec := &scriptedExec{
		prepareData: `{"id":"e1","data":{"upload":{"url":"https://x/e"}}}`,
		polls:       []string{`{"id":"e1","status":"waiting","data":{}}`},
	}

	_, err := newPipeline(exec, &fakeTransfer{}, 2).UploadExternalAsset(context.Background(), models.ExternalUploadRequest{
		File: strings.NewReader("d"), ExternalColumnID: "col",
	})
	require.True(t, common.PollTimeout.Has(err))
	require.Equal(t, 2, exec.polled("e1"))
}

func TestUploadAsset_ConcurrentUploadsIndependent(t *testing.T) {
	var mu sync.Mutex
	next := 0
	exec := rpc.Executor(execFunc(func(ctx context.Context, op rpc.Operation, vars map[string]any) (*rpc.Response, error) {
		switch op {
		case rpc.PrepareAsset:
			mu.Lock()
			next++
			id := fmt.Sprintf("t%d", next)
			mu.Unlock()
			return data(op, fmt.Sprintf(`{"id":%q,"data":{"upload":{"url":"https://x/%s"}}}`, id, id)), nil
		default:
			return data(op, assetJSON(vars["id"].(string), "UPLOADED")), nil
		}
	}))
	p := newPipeline(exec, &lockedTransfer{}, 3)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.UploadAsset(context.Background(), pngRequest())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

type execFunc func(ctx context.Context, op rpc.Operation, vars map[string]any) (*rpc.Response, error)

func (f execFunc) Execute(ctx context.Context, op rpc.Operation, vars map[string]any) (*rpc.Response, error) {
	return f(ctx, op, vars)
}

type lockedTransfer struct{ mu sync.Mutex }

func (l *lockedTransfer) Put(_ context.Context, _ string, body io.Reader, _ int64, _, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.Copy(io.Discard, body)
	return err
}

func TestUploadAsset_OverHTTP(t *testing.T) {
	var got []byte
	var gotOrigin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		gotOrigin = r.Header.Get(common.OriginIDHeaderName)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := &scriptedExec{
		prepareData: fmt.Sprintf(`{"id":"t1","data":{"upload":{"url":%q}}}`, srv.URL+"/bucket/t1?sig=1"),
		polls:       []string{assetJSON("t1", "UPLOADED")},
	}

	_, err := newPipeline(exec, netx.NewHTTPTransferer(srv.Client()), 3).UploadAsset(context.Background(), pngRequest())
	require.NoError(t, err)
	require.Equal(t, "t1", gotOrigin)
	require.True(t, bytes.HasPrefix(got, []byte("\x89PNG")))
}

func TestPoll_StateCountsAttempts(t *testing.T) {
	p := newPipeline(&scriptedExec{}, &fakeTransfer{}, 5)
	state := PollState{MaxAttempts: 5, Interval: time.Millisecond}

	n := 0
	err := p.poll(context.Background(), &state, func(context.Context) (bool, error) {
		n++
		return n == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, state.Attempt)

	state = PollState{MaxAttempts: 2, Interval: time.Millisecond}
	boom := errors.New("boom")
	err = p.poll(context.Background(), &state, func(context.Context) (bool, error) { return false, boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, state.Attempt)
}
