// Package sysctx supplies the device and runtime context attached to tracked
// events and push subscriptions.
package sysctx

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dashxhq/dashx-go/internal/models"
)

// Provider returns the context blob sent with every tracked event. The blob
// is opaque to the SDK and passed through unmodified.
type Provider interface {
	FetchSystemContext(ctx context.Context) map[string]any
}

// DeviceInfo describes the device a push contact is registered for.
type DeviceInfo interface {
	DeviceName() string
	OSName() string
	OSVersion() string
	Manufacturer() string
	Model() string
}

// RuntimeProvider derives context from the Go runtime and host environment.
type RuntimeProvider struct {
	AppName    string
	AppVersion string
	AppBuild   string
	Library    models.LibraryInfo

	// Optional overrides for values the runtime cannot discover.
	Version string
	Maker   string
	Device  string

	hostname func() (string, error)
	getenv   func(string) string
	now      func() time.Time
}

func NewRuntimeProvider(appName, appVersion, appBuild string, lib models.LibraryInfo) *RuntimeProvider {
	return &RuntimeProvider{
		AppName:    appName,
		AppVersion: appVersion,
		AppBuild:   appBuild,
		Library:    lib,
		hostname:   os.Hostname,
		getenv:     os.Getenv,
		now:        time.Now,
	}
}

func (p *RuntimeProvider) FetchSystemContext(_ context.Context) map[string]any {
	zone, _ := p.clock().Zone()
	return map[string]any{
		"app": map[string]any{
			"name":    p.AppName,
			"version": p.AppVersion,
			"build":   p.AppBuild,
		},
		"library": map[string]any{
			"name":    p.Library.Name,
			"version": p.Library.Version,
		},
		"os": map[string]any{
			"name":    p.OSName(),
			"version": p.OSVersion(),
		},
		"device": map[string]any{
			"name":         p.DeviceName(),
			"manufacturer": p.Manufacturer(),
			"model":        p.Model(),
			"kind":         runtime.GOARCH,
		},
		"locale":   p.locale(),
		"timeZone": zone,
		"runtime":  runtime.Version(),
	}
}

func (p *RuntimeProvider) DeviceName() string {
	if p.hostname == nil {
		return ""
	}
	h, err := p.hostname()
	if err != nil {
		return ""
	}
	return h
}

func (p *RuntimeProvider) OSName() string {
	switch runtime.GOOS {
	case "android":
		return "Android"
	case "ios":
		return "iOS"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	default:
		return runtime.GOOS
	}
}

func (p *RuntimeProvider) OSVersion() string { return p.Version }

func (p *RuntimeProvider) Manufacturer() string { return p.Maker }

func (p *RuntimeProvider) Model() string {
	if p.Device != "" {
		return p.Device
	}
	return runtime.GOARCH
}

// locale turns LANG=en_US.UTF-8 into en-US.
func (p *RuntimeProvider) locale() string {
	if p.getenv == nil {
		return ""
	}
	lang := p.getenv("LC_ALL")
	if lang == "" {
		lang = p.getenv("LANG")
	}
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "C" || lang == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(lang, "_", "-")
}

func (p *RuntimeProvider) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// Static returns a fixed context blob and device description.
type Static struct {
	Context map[string]any

	Name, OS, Version, Maker, Device string
}

func (s Static) FetchSystemContext(context.Context) map[string]any { return s.Context }
func (s Static) DeviceName() string                                { return s.Name }
func (s Static) OSName() string                                    { return s.OS }
func (s Static) OSVersion() string                                 { return s.Version }
func (s Static) Manufacturer() string                              { return s.Maker }
func (s Static) Model() string                                     { return s.Device }
