package dashx_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	dashx "github.com/dashxhq/dashx-go"
	"github.com/dashxhq/dashx-go/internal/devserver"
	"github.com/dashxhq/dashx-go/internal/devserver/config"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDevServer serves the dev backend over HTTP and, when withGRPC is set,
// over gRPC on a loopback port.
func startDevServer(t *testing.T, withGRPC bool) (*devserver.Server, *httptest.Server, string) {
	t.Helper()
	ts := httptest.NewUnstartedServer(nil)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PublicURL = "http://" + ts.Listener.Addr().String()
	cfg.PublicKeys = []string{"pk_e2e"}
	cfg.ReadyAfterPolls = 0

	srv, err := devserver.New(context.Background(), cfg, logging.NopLogger{})
	require.NoError(t, err)
	ts.Config.Handler = srv.Handler()
	ts.Start()
	t.Cleanup(ts.Close)

	if !withGRPC {
		return srv, ts, ""
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := srv.GRPCServer()
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	return srv, ts, lis.Addr().String()
}

func newClient(t *testing.T, ts *httptest.Server, grpcAddr string) *dashx.Client {
	t.Helper()
	cfg := dashx.DefaultConfig("pk_e2e")
	cfg.BaseURI = ts.URL + "/graphql"
	cfg.StoragePath = filepath.Join(t.TempDir(), "state", "dashx.db")
	cfg.TargetEnvironment = "staging"
	cfg.AppVersion = "2.0.0"
	cfg.AppBuild = 20
	cfg.PollInterval = 5 * time.Millisecond
	cfg.PollMaxAttempts = 5
	if grpcAddr != "" {
		cfg.Transport = dashx.TransportGRPC
		cfg.GRPCAddr = grpcAddr
	}

	c, err := dashx.New(context.Background(), cfg, dashx.WithLogger(logging.NopLogger{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func transports(t *testing.T, fn func(t *testing.T, srv *devserver.Server, ts *httptest.Server, c *dashx.Client)) {
	t.Run("graphql", func(t *testing.T) {
		srv, ts, _ := startDevServer(t, false)
		fn(t, srv, ts, newClient(t, ts, ""))
	})
	t.Run("grpc", func(t *testing.T) {
		srv, ts, addr := startDevServer(t, true)
		fn(t, srv, ts, newClient(t, ts, addr))
	})
}

func TestE2E_TrackAndIdentify(t *testing.T) {
	transports(t, func(t *testing.T, srv *devserver.Server, _ *httptest.Server, c *dashx.Client) {
		ctx := context.Background()

		c.Track(ctx, "Signed Up", map[string]string{"plan": "pro"})
		c.Flush()
		c.Identify(ctx, map[string]string{"uid": "u-1", "email": "a@example.com"})
		c.Flush()

		tracked := srv.Backend().Calls(rpc.TrackEvent)
		require.Len(t, tracked, 1)
		assert.Equal(t, "Signed Up", tracked[0].Input["event"])
		assert.Equal(t, c.AnonymousUID(), tracked[0].Input["accountAnonymousUid"])
		assert.Equal(t, "staging", tracked[0].Caller.TargetEnvironment)

		identified := srv.Backend().Calls(rpc.IdentifyAccount)
		require.Len(t, identified, 1)
		assert.Equal(t, "u-1", identified[0].Input["uid"])
		assert.Equal(t, "a@example.com", identified[0].Input["email"])
	})
}

func TestE2E_UploadAsset(t *testing.T) {
	transports(t, func(t *testing.T, srv *devserver.Server, ts *httptest.Server, c *dashx.Client) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello dashx"), 0o600))

		a, err := c.UploadAsset(context.Background(), dashx.UploadRequest{
			Path:        path,
			ResourceID:  "res-1",
			AttributeID: "attr-1",
		})
		require.NoError(t, err)
		assert.Equal(t, dashx.AssetReady, a.State())
		require.NotEmpty(t, a.Data.URL())

		body, _, ok := srv.Objects().Object("uploads/" + a.ID)
		require.True(t, ok)
		assert.Equal(t, "hello dashx", string(body))

		res, err := ts.Client().Get(a.Data.URL())
		require.NoError(t, err)
		defer res.Body.Close()
		got, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello dashx", string(got))
	})
}

func TestE2E_UploadExternalAssetAsync(t *testing.T) {
	srv, ts, _ := startDevServer(t, false)
	c := newClient(t, ts, "")

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

	done := make(chan *dashx.ExternalAsset, 1)
	failed := make(chan error, 1)
	c.UploadExternalAssetAsync(context.Background(), dashx.ExternalUploadRequest{Path: path, ExternalColumnID: "col-1"},
		func(a *dashx.ExternalAsset) { done <- a },
		func(err error) { failed <- err },
	)

	select {
	case a := <-done:
		assert.Equal(t, dashx.AssetReady, a.State())
		assert.Equal(t, "col-1", a.ExternalColumnID)
	case err := <-failed:
		t.Fatalf("upload failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("upload never resolved")
	}
	assert.Len(t, srv.Backend().Calls(rpc.PrepareExternalAsset), 1)
}

func TestE2E_CartAndPreferences(t *testing.T) {
	transports(t, func(t *testing.T, srv *devserver.Server, _ *httptest.Server, c *dashx.Client) {
		ctx := context.Background()
		srv.Backend().SetPrice("price-1", 2.5)

		_, err := c.FetchCart(ctx)
		require.ErrorIs(t, err, dashx.ErrNoAccount)

		token, err := srv.IssueIdentityToken("u-7")
		require.NoError(t, err)
		require.NoError(t, c.SetIdentity(ctx, "u-7", token))

		raw, err := c.AddItemToCart(ctx, dashx.AddItemToCartInput{ItemID: "sku-1", PricingID: "price-1", Quantity: "4"})
		require.NoError(t, err)
		var cart struct {
			Total      string `json:"total"`
			OrderItems []struct {
				ID string `json:"id"`
			} `json:"orderItems"`
		}
		require.NoError(t, json.Unmarshal(raw, &cart))
		assert.Equal(t, "10.00", cart.Total)
		require.Len(t, cart.OrderItems, 1)

		require.NoError(t, c.SaveStoredPreferences(ctx, map[string]dashx.Preference{
			"newsletter": {Enabled: true, Email: true},
		}))
		prefs, err := c.FetchStoredPreferences(ctx)
		require.NoError(t, err)
		assert.Equal(t, dashx.Preference{Enabled: true, Email: true}, prefs["newsletter"])
	})
}

func TestE2E_ForeignIdentityTokenIsRejected(t *testing.T) {
	srv, ts, _ := startDevServer(t, false)
	c := newClient(t, ts, "")
	ctx := context.Background()

	token, err := srv.IssueIdentityToken("someone-else")
	require.NoError(t, err)
	require.NoError(t, c.SetIdentity(ctx, "u-7", token))

	_, err = c.FetchCart(ctx)
	require.True(t, dashx.ApplicationError.Has(err))
}

func TestE2E_Content(t *testing.T) {
	transports(t, func(t *testing.T, srv *devserver.Server, _ *httptest.Server, c *dashx.Client) {
		ctx := context.Background()
		srv.Backend().PutContent("article", "welcome", map[string]any{"title": "Welcome", "lang": "en"})
		srv.Backend().PutContent("article", "bienvenue", map[string]any{"title": "Bienvenue", "lang": "fr"})

		raw, err := c.FetchContent(ctx, "article/welcome", dashx.FetchContentOptions{Fields: []string{"title"}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"identifier":"welcome","title":"Welcome"}`, string(raw))

		items, err := c.SearchContent(ctx, "article", dashx.SearchContentOptions{Filter: map[string]any{"lang": "fr"}})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Contains(t, string(items[0]), "Bienvenue")

		_, err = c.FetchContent(ctx, "article/missing", dashx.FetchContentOptions{})
		require.True(t, dashx.ApplicationError.Has(err))
	})
}

func TestE2E_UnknownPublicKey(t *testing.T) {
	_, ts, _ := startDevServer(t, false)

	cfg := dashx.DefaultConfig("pk_unknown")
	cfg.BaseURI = ts.URL + "/graphql"
	cfg.StoragePath = ":memory:"
	c, err := dashx.New(context.Background(), cfg, dashx.WithLogger(logging.NopLogger{}))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SearchContent(context.Background(), "article", dashx.SearchContentOptions{})
	require.ErrorIs(t, err, dashx.ErrUnauthorized)
	require.True(t, dashx.TransportError.Has(err))
}
