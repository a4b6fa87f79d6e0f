// Package config holds the SDK settings.
//
// Sources, in increasing precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional JSON file (see (*Config).LoadJSON).
//  3. Whatever the host sets on the struct before passing it to dashx.New.
//
// Durations in JSON may be strings such as "3s" or integer nanoseconds:
//
//	{
//	  "public_key": "pk_live_...",
//	  "transport": "grpc",
//	  "grpc_addr": "gateway.dashx.com:443",
//	  "poll_interval": "3s"
//	}
package config

import (
	"fmt"
	"time"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/models"
)

// Transport selects how operations reach the backend.
type Transport string

const (
	TransportGraphQL Transport = "graphql"
	TransportGRPC    Transport = "grpc"
)

const (
	DefaultPollInterval      = 3 * time.Second
	DefaultPollMaxAttempts   = 10
	DefaultConnectTimeout    = 10 * time.Second
	DefaultRequestTimeout    = 60 * time.Second
	DefaultBackgroundWorkers = 8
	DefaultStoragePath       = "dashx.db"
)

// Library identifies this SDK on outgoing events.
var Library = models.LibraryInfo{Name: "dashx-go", Version: "1.0.0"}

// Config holds the runtime settings of one client.
//
// StorageSecret seals the identity token at rest; when empty the public key
// is used. StoragePath may be ":memory:" for an ephemeral client.
type Config struct {
	PublicKey         string
	BaseURI           string
	TargetEnvironment string

	Transport Transport
	GRPCAddr  string

	StoragePath   string
	StorageSecret string

	PollInterval    time.Duration
	PollMaxAttempts int

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	AppName    string
	AppVersion string
	AppBuild   int64
	Library    models.LibraryInfo

	BackgroundWorkers int
}

// LoadDefaults populates c with production defaults. PublicKey stays empty.
func (c *Config) LoadDefaults() {
	c.BaseURI = common.DefaultBaseURI
	c.Transport = TransportGraphQL
	c.StoragePath = DefaultStoragePath
	c.PollInterval = DefaultPollInterval
	c.PollMaxAttempts = DefaultPollMaxAttempts
	c.ConnectTimeout = DefaultConnectTimeout
	c.RequestTimeout = DefaultRequestTimeout
	c.Library = Library
	c.BackgroundWorkers = DefaultBackgroundWorkers
}

// Default returns a Config with defaults applied and the given public key.
func Default(publicKey string) *Config {
	c := &Config{}
	c.LoadDefaults()
	c.PublicKey = publicKey
	return c
}

// Secret is the key material used to seal stored credentials.
func (c *Config) Secret() string {
	if c.StorageSecret != "" {
		return c.StorageSecret
	}
	return c.PublicKey
}

// Validate fails when a required setting is missing or out of range.
func (c *Config) Validate() error {
	if c.PublicKey == "" {
		return common.ValidationError.Wrap(common.ErrMissingPublicKey)
	}
	switch c.Transport {
	case TransportGraphQL:
		if c.BaseURI == "" {
			return common.ValidationError.New("base uri is required for the graphql transport")
		}
	case TransportGRPC:
		if c.GRPCAddr == "" {
			return common.ValidationError.New("grpc address is required for the grpc transport")
		}
	default:
		return common.ValidationError.Wrap(fmt.Errorf("unknown transport %q", c.Transport))
	}
	if c.PollInterval < 0 || c.PollMaxAttempts < 0 {
		return common.ValidationError.New("poll settings must not be negative")
	}
	if c.BackgroundWorkers < 0 {
		return common.ValidationError.New("background workers must not be negative")
	}
	return nil
}
