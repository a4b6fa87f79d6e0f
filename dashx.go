// Package dashx is the DashX client SDK.
//
// A Client is built once from a Config and shared by the whole application:
//
//	cfg := dashx.DefaultConfig("pk_live_...")
//	cfg.AppVersion, cfg.AppBuild = "2.3.0", 230
//
//	client, err := dashx.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	client.Track(ctx, "Signed Up", map[string]string{"plan": "pro"})
//
// Tracking, identify and push calls are fire-and-forget: they run in the
// background, log failures and never return an error. Uploads and content
// calls return a value or an error.
package dashx

import (
	"log/slog"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/config"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/models"
	"github.com/dashxhq/dashx-go/internal/push"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/dashxhq/dashx-go/internal/store"
	"github.com/dashxhq/dashx-go/internal/sysctx"
)

type (
	Config    = config.Config
	Transport = config.Transport

	Session     = models.Session
	LibraryInfo = models.LibraryInfo

	UploadRequest         = models.UploadRequest
	ExternalUploadRequest = models.ExternalUploadRequest
	Asset                 = models.Asset
	ExternalAsset         = models.ExternalAsset
	AssetData             = models.AssetData
	AssetStatus           = models.AssetStatus

	FetchContentOptions  = models.FetchContentOptions
	SearchContentOptions = models.SearchContentOptions
	AddItemToCartInput   = models.AddItemToCartInput
	Preference           = models.Preference

	NotificationStatus = models.NotificationStatus

	// Store persists session state. Values are strings; Get reports
	// presence separately from the value.
	Store = store.Store
	// Logger receives the SDK's structured log output.
	Logger = logging.Logger
	// SystemContext supplies the context blob attached to tracked events.
	SystemContext = sysctx.Provider
	// DeviceInfo describes the device registered for push.
	DeviceInfo = sysctx.DeviceInfo
	// TokenProvider deletes the platform push token on unsubscribe.
	TokenProvider = push.TokenProvider

	RPCFactory  = rpc.Factory
	RPCExecutor = rpc.Executor
	RPCHeaders  = rpc.Headers
	Operation   = rpc.Operation
	Response    = rpc.Response
)

const (
	TransportGraphQL = config.TransportGraphQL
	TransportGRPC    = config.TransportGRPC

	NotificationDelivered = models.NotificationDelivered
	NotificationOpened    = models.NotificationOpened
	NotificationDismissed = models.NotificationDismissed

	AssetWaiting = models.AssetWaiting
	AssetReady   = models.AssetReady
)

// Error classes. Match with Class.Has(err).
var (
	TransportError   = common.TransportError
	ApplicationError = common.ApplicationError
	ValidationError  = common.ValidationError
	UploadFailure    = common.UploadFailure
	PollTimeout      = common.PollTimeout
)

// Sentinels. Match with errors.Is.
var (
	ErrMissingPublicKey = common.ErrMissingPublicKey
	ErrNoAccount        = common.ErrNoAccount
	ErrMalformedURN     = common.ErrMalformedURN
	ErrMissingFile      = common.ErrMissingFile
	ErrUnauthorized     = common.ErrUnauthorized
	ErrUnavailable      = common.ErrUnavailable
	ErrClosed           = common.ErrClosed
)

// DefaultConfig returns a Config with production defaults for publicKey.
func DefaultConfig(publicKey string) *Config {
	return config.Default(publicKey)
}

// LoadConfig applies defaults and then the JSON file at path.
func LoadConfig(path string) (*Config, error) {
	c := config.Default("")
	if err := c.LoadJSON(path); err != nil {
		return nil, err
	}
	return c, nil
}

// NewMemoryStore returns a Store that keeps state for the life of the
// process.
func NewMemoryStore() Store {
	return store.NewMemoryStore()
}

// NewSlogLogger adapts l to Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return logging.NewSlogLogger(l)
}

// StaticSystemContext returns a SystemContext and DeviceInfo with fixed
// values.
func StaticSystemContext(blob map[string]any, device, osName, osVersion, manufacturer, model string) sysctx.Static {
	return sysctx.Static{
		Context: blob,
		Name:    device,
		OS:      osName,
		Version: osVersion,
		Maker:   manufacturer,
		Device:  model,
	}
}
