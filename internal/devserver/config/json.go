package config

import (
	"encoding/json"
	"os"

	"github.com/dashxhq/dashx-go/internal/flagx"
	"github.com/dashxhq/dashx-go/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations accept "24h" strings
// or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr              string         `json:"http_addr"`
	GRPCAddr              string         `json:"grpc_addr"`
	PublicURL             string         `json:"public_url"`
	PublicKeys            []string       `json:"public_keys"`
	SecretKey             string         `json:"secret_key"`
	IdentityTokenValidity timex.Duration `json:"identity_token_validity"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	ReadyAfterPolls       *int           `json:"ready_after_polls"`
	PlaybackIDs           bool           `json:"playback_ids"`
}

// parseJson overlays the file named by -c/-config. Keys missing from the
// file keep their current values. A file that cannot be read or parsed
// panics.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlay(&config.HTTPAddr, c.HTTPAddr)
	overlay(&config.GRPCAddr, c.GRPCAddr)
	overlay(&config.PublicURL, c.PublicURL)
	if len(c.PublicKeys) > 0 {
		config.PublicKeys = c.PublicKeys
	}
	overlay(&config.SecretKey, c.SecretKey)
	if c.IdentityTokenValidity.Duration > 0 {
		config.IdentityTokenValidity = c.IdentityTokenValidity.Duration
	}
	overlay(&config.S3AccessKey, c.S3AccessKey)
	overlay(&config.S3SecretKey, c.S3SecretKey)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	if c.ReadyAfterPolls != nil {
		config.ReadyAfterPolls = *c.ReadyAfterPolls
	}
	config.PlaybackIDs = config.PlaybackIDs || c.PlaybackIDs
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
