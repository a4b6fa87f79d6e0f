package dashx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/config"
	"github.com/dashxhq/dashx-go/internal/content"
	"github.com/dashxhq/dashx-go/internal/filex"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/netx"
	"github.com/dashxhq/dashx-go/internal/push"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/dashxhq/dashx-go/internal/session"
	"github.com/dashxhq/dashx-go/internal/store"
	"github.com/dashxhq/dashx-go/internal/sysctx"
	"github.com/dashxhq/dashx-go/internal/tracker"
	"github.com/dashxhq/dashx-go/internal/upload"
)

// Client is the SDK handle. It is safe for concurrent use.
type Client struct {
	cfg    Config
	logger logging.Logger

	store    store.Store
	handle   *rpc.Handle
	session  *session.Manager
	tracker  *tracker.Tracker
	pipeline *upload.Pipeline
	push     *push.Manager
	content  *content.Service
	runner   *runner
	uploads  *runner
	pushQ    *serial

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	store      store.Store
	logger     logging.Logger
	sys        sysctx.Provider
	device     sysctx.DeviceInfo
	provider   push.TokenProvider
	httpClient *http.Client
	factory    rpc.Factory
}

// Option customizes New.
type Option func(*options)

// WithStore replaces the SQLite store at cfg.StoragePath.
func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSystemContext replaces the runtime-derived context. If p also
// implements DeviceInfo it describes the device for push registration.
func WithSystemContext(p SystemContext) Option {
	return func(o *options) {
		o.sys = p
		if d, ok := p.(sysctx.DeviceInfo); ok {
			o.device = d
		}
	}
}

func WithTokenProvider(p TokenProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithHTTPClient is used for GraphQL requests and file transfers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRPCFactory replaces the configured transport.
func WithRPCFactory(f RPCFactory) Option {
	return func(o *options) { o.factory = f }
}

// New validates cfg, opens the state store, connects the transport and
// loads the session. It fails when the public key is missing.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, common.ValidationError.Wrap(common.ErrMissingPublicKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewDefault()
	}

	c := &Client{cfg: *cfg, logger: o.logger.With("sdk", cfg.Library.Name)}
	if err := c.init(ctx, o); err != nil {
		_ = c.closeResources()
		return nil, err
	}
	return c, nil
}

func (c *Client) init(ctx context.Context, o *options) error {
	cfg := &c.cfg

	inner := o.store
	if inner == nil {
		if cfg.StoragePath != ":memory:" {
			if err := filex.EnsureParentDir(cfg.StoragePath); err != nil {
				return fmt.Errorf("prepare store: %w", err)
			}
		}
		db, err := store.OpenSQLite(ctx, cfg.StoragePath)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, db.Close)
		inner = db
	}
	sealed, err := store.NewSealedStore(ctx, inner, cfg.Secret(), common.KeyIdentityToken, common.KeyDeviceToken)
	if err != nil {
		return fmt.Errorf("open sealed store: %w", err)
	}
	c.store = sealed

	rpcClient := o.httpClient
	transferClient := o.httpClient
	if rpcClient == nil {
		rpcClient = rpc.NewHTTPClient(cfg.ConnectTimeout, cfg.RequestTimeout)
		// transfers are bounded by the caller's context, not a fixed timeout
		transferClient = rpc.NewHTTPClient(cfg.ConnectTimeout, 0)
	}

	factory := o.factory
	if factory == nil {
		switch cfg.Transport {
		case config.TransportGRPC:
			gf, err := rpc.DialGateway(cfg.GRPCAddr)
			if err != nil {
				return err
			}
			c.closers = append(c.closers, gf.Close)
			factory = gf
		default:
			factory = rpc.GraphQLFactory(cfg.BaseURI, rpcClient)
		}
	}
	c.handle = rpc.NewHandle(factory)

	c.session = session.NewManager(c.store, c.handle, rpc.Headers{
		PublicKey:         cfg.PublicKey,
		TargetEnvironment: cfg.TargetEnvironment,
	}, c.logger)
	if err := c.session.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	sys, device := o.sys, o.device
	if sys == nil {
		rp := sysctx.NewRuntimeProvider(cfg.AppName, cfg.AppVersion, strconv.FormatInt(cfg.AppBuild, 10), cfg.Library)
		sys = rp
		if device == nil {
			device = rp
		}
	}
	if device == nil {
		device = sysctx.NewRuntimeProvider(cfg.AppName, cfg.AppVersion, strconv.FormatInt(cfg.AppBuild, 10), cfg.Library)
	}

	c.tracker = tracker.New(c.handle, sys, c.store, tracker.AppInfo{Version: cfg.AppVersion, Build: cfg.AppBuild}, c.logger)
	c.pipeline = upload.NewPipeline(c.handle, netx.NewHTTPTransferer(transferClient), cfg.PollInterval, cfg.PollMaxAttempts, c.logger)
	c.push = push.NewManager(c.handle, c.session, device, c.store, o.provider, c.logger)
	c.content = content.New(c.handle, c.session, c.logger)

	workers := cfg.BackgroundWorkers
	if workers <= 0 {
		workers = config.DefaultBackgroundWorkers
	}
	c.runner = newRunner(workers, c.logger.With("module", "runner"))
	c.uploads = newRunner(workers, c.logger.With("module", "uploads"))
	c.pushQ = newSerial(c.logger.With("module", "push"))
	return nil
}

// background runs fn detached from ctx's cancellation.
func (c *Client) background(ctx context.Context, name string, fn func(context.Context) error) {
	c.runner.Go(context.WithoutCancel(ctx), name, fn)
}

// Flush waits for every fire-and-forget call and async upload made before it.
func (c *Client) Flush() {
	c.pushQ.Flush()
	c.runner.Flush()
	c.uploads.Flush()
}

// Close waits for background calls and releases the store and transport.
// Later calls are dropped.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.pushQ.Close()
		c.runner.Close()
		c.uploads.Close()
		c.closeErr = c.closeResources()
	})
	return c.closeErr
}

func (c *Client) closeResources() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Session returns a copy of the identity state.
func (c *Client) Session() Session {
	return c.session.Snapshot()
}

// DeviceToken returns the push token last set on this device.
func (c *Client) DeviceToken() string { return c.push.Token() }

func (c *Client) AccountUID() string { return c.session.Snapshot().AccountUID }

func (c *Client) AnonymousUID() string { return c.session.Snapshot().AccountAnonymousUID }

func (c *Client) IdentityToken() string { return c.session.Snapshot().IdentityToken }

func (c *Client) PublicKey() string { return c.cfg.PublicKey }

func (c *Client) BaseURI() string { return c.cfg.BaseURI }

func (c *Client) TargetEnvironment() string { return c.session.Headers().TargetEnvironment }
