package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dashxhq/dashx-go/internal/flagx"
)

// parseFlags populates Config from command-line flags.
//
//	-a string   HTTP listen address
//	-g string   gRPC listen address
//	-u string   public base URL of the HTTP listener
//	-k string   comma-separated accepted public keys
//	-s string   HMAC secret for identity tokens
//	-t int      identity token validity, minutes
//	-b string   bucket name
//	-n int      polls after upload before an asset is ready
//	-m bool     report video assets with playback ids instead of a URL
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], flagx.Known{
		"-a": true, "-g": true, "-u": true, "-k": true, "-s": true,
		"-t": true, "-b": true, "-n": true, "-m": false,
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP listen address")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC listen address")
	fs.StringVar(&config.PublicURL, "u", config.PublicURL, "public base URL")
	keys := fs.String("k", strings.Join(config.PublicKeys, ","), "accepted public keys")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "identity token secret")
	validity := fs.Int("t", int(config.IdentityTokenValidity.Minutes()), "identity token validity (in minutes)")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "asset bucket")
	fs.IntVar(&config.ReadyAfterPolls, "n", config.ReadyAfterPolls, "polls before an uploaded asset is ready")
	fs.BoolVar(&config.PlaybackIDs, "m", config.PlaybackIDs, "report playback ids for video assets")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PublicKeys = splitList(*keys)
	config.IdentityTokenValidity = time.Duration(*validity) * time.Minute
}
