package models

import (
	"io"
	"strings"
)

// AssetStatus is the coarse processing state the upload poller cares about.
type AssetStatus string

const (
	AssetWaiting AssetStatus = "waiting"
	AssetReady   AssetStatus = "ready"
	AssetOther   AssetStatus = "other"
)

// ParseAssetStatus accepts both the upload status enum (UPLOADED, PENDING, ...)
// and the lower-case processing status (ready, waiting).
func ParseAssetStatus(s string) AssetStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ready", "uploaded":
		return AssetReady
	case "waiting", "pending", "processing":
		return AssetWaiting
	default:
		return AssetOther
	}
}

// UploadRequest describes a file destined for a resource attribute.
// Either File or Path must be set; Path is opened by the pipeline.
type UploadRequest struct {
	File        io.Reader
	Path        string
	FileName    string
	Size        int64
	ResourceID  string
	AttributeID string
}

// ExternalUploadRequest describes a file destined for an external column.
type ExternalUploadRequest struct {
	File             io.Reader
	Path             string
	FileName         string
	Size             int64
	ExternalColumnID string
}

// UploadTicket is what the backend returns from a prepare call.
type UploadTicket struct {
	ID        string
	UploadURL string
}

type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy,omitempty"`
}

type UploadData struct {
	Status      string       `json:"status,omitempty"`
	URL         string       `json:"url,omitempty"`
	PlaybackIDs []PlaybackID `json:"playback_ids,omitempty"`
}

type AssetData struct {
	Asset  *UploadData `json:"asset,omitempty"`
	Upload *UploadData `json:"upload,omitempty"`
}

// SynthesizeURL fills Asset.URL from the first playback id when the backend
// reported playback ids but no URL. It reports whether it changed anything.
func (d *AssetData) SynthesizeURL() bool {
	if d == nil || d.Asset == nil {
		return false
	}
	if d.Asset.URL != "" || len(d.Asset.PlaybackIDs) == 0 {
		return false
	}
	d.Asset.URL = MuxStreamURL(d.Asset.PlaybackIDs[0].ID)
	return true
}

// URL returns the resolved asset URL or "".
func (d *AssetData) URL() string {
	if d == nil || d.Asset == nil {
		return ""
	}
	return d.Asset.URL
}

// MuxStreamURL builds the HLS stream URL for a video playback id.
func MuxStreamURL(playbackID string) string {
	return "https://stream.mux.com/" + playbackID + ".m3u8"
}

type Asset struct {
	ID           string    `json:"id"`
	ResourceID   string    `json:"resourceId,omitempty"`
	AttributeID  string    `json:"attributeId,omitempty"`
	UploadStatus string    `json:"uploadStatus,omitempty"`
	Status       string    `json:"status,omitempty"`
	Data         AssetData `json:"data"`
}

// State resolves the poller-facing status of the asset.
func (a *Asset) State() AssetStatus {
	if a.UploadStatus != "" {
		return ParseAssetStatus(a.UploadStatus)
	}
	if a.Status != "" {
		return ParseAssetStatus(a.Status)
	}
	if a.Data.Asset != nil {
		return ParseAssetStatus(a.Data.Asset.Status)
	}
	return AssetOther
}

type ExternalAsset struct {
	ID               string    `json:"id"`
	ExternalColumnID string    `json:"externalColumnId,omitempty"`
	Status           string    `json:"status,omitempty"`
	Data             AssetData `json:"data"`
}

func (a *ExternalAsset) State() AssetStatus {
	if a.Status != "" {
		return ParseAssetStatus(a.Status)
	}
	if a.Data.Asset != nil {
		return ParseAssetStatus(a.Data.Asset.Status)
	}
	return AssetOther
}

// AssetData returns the record's processing payload.
func (a *Asset) AssetData() *AssetData { return &a.Data }

func (a *ExternalAsset) AssetData() *AssetData { return &a.Data }
