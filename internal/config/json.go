package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dashxhq/dashx-go/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Pointer fields distinguish an
// absent key from a zero value so a file only overrides what it names.
type JsonConfig struct {
	PublicKey         *string         `json:"public_key"`
	BaseURI           *string         `json:"base_uri"`
	TargetEnvironment *string         `json:"target_environment"`
	Transport         *string         `json:"transport"`
	GRPCAddr          *string         `json:"grpc_addr"`
	StoragePath       *string         `json:"storage_path"`
	StorageSecret     *string         `json:"storage_secret"`
	PollInterval      *timex.Duration `json:"poll_interval"`
	PollMaxAttempts   *int            `json:"poll_max_attempts"`
	ConnectTimeout    *timex.Duration `json:"connect_timeout"`
	RequestTimeout    *timex.Duration `json:"request_timeout"`
	AppName           *string         `json:"app_name"`
	AppVersion        *string         `json:"app_version"`
	AppBuild          *int64          `json:"app_build"`
	BackgroundWorkers *int            `json:"background_workers"`
}

// LoadJSON overlays the settings in the file at path onto c.
func (c *Config) LoadJSON(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return c.applyJSON(file)
}

func (c *Config) applyJSON(b []byte) error {
	j := &JsonConfig{}
	if err := json.Unmarshal(b, j); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.PublicKey, j.PublicKey)
	setString(&c.BaseURI, j.BaseURI)
	setString(&c.TargetEnvironment, j.TargetEnvironment)
	if j.Transport != nil {
		c.Transport = Transport(*j.Transport)
	}
	setString(&c.GRPCAddr, j.GRPCAddr)
	setString(&c.StoragePath, j.StoragePath)
	setString(&c.StorageSecret, j.StorageSecret)
	if j.PollInterval != nil {
		c.PollInterval = j.PollInterval.Duration
	}
	if j.PollMaxAttempts != nil {
		c.PollMaxAttempts = *j.PollMaxAttempts
	}
	if j.ConnectTimeout != nil {
		c.ConnectTimeout = j.ConnectTimeout.Duration
	}
	if j.RequestTimeout != nil {
		c.RequestTimeout = j.RequestTimeout.Duration
	}
	setString(&c.AppName, j.AppName)
	setString(&c.AppVersion, j.AppVersion)
	if j.AppBuild != nil {
		c.AppBuild = *j.AppBuild
	}
	if j.BackgroundWorkers != nil {
		c.BackgroundWorkers = *j.BackgroundWorkers
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
