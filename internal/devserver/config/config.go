// Package config loads settings for the DashX dev server.
//
// Sources, in increasing precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config (see parseJson).
//  3. Command-line flags (see parseFlags).
package config

import (
	"strings"
	"time"
)

// Config holds runtime settings for the dev server.
//
// PublicURL is the externally reachable base URL of the HTTP listener; the
// presigned upload URLs and the asset URLs handed to clients point at it.
// An empty PublicKeys accepts any non-empty public key.
type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	PublicURL string

	PublicKeys []string

	SecretKey             string
	IdentityTokenValidity time.Duration

	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string

	ReadyAfterPolls int
	PlaybackIDs     bool
}

// LoadDefaults populates Config with development defaults. They are not
// meant for anything reachable from outside the host.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = "127.0.0.1:8080"
	c.GRPCAddr = "127.0.0.1:50051"
	c.PublicURL = "http://127.0.0.1:8080"
	c.SecretKey = "secretKey"
	c.IdentityTokenValidity = 24 * time.Hour
	c.S3AccessKey = "dashx"
	c.S3SecretKey = "dashx-secret"
	c.S3Bucket = "assets"
	c.S3Region = "us-east-1"
	c.ReadyAfterPolls = 2
}

// LoadConfig applies defaults, then the JSON file and finally flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
