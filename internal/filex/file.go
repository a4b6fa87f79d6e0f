// Package filex holds small filesystem helpers: preparing the state store's
// directory and classifying files for upload.
package filex

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// SniffLen is how many leading bytes DetectContentType inspects.
const SniffLen = 512

// Upload content type categories sent with the PUT.
const (
	CategoryImage   = "image/*"
	CategoryVideo   = "video/*"
	CategoryGeneric = "*/*"
)

// EnsureDir creates dir (and parents) if missing and returns its absolute
// path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// EnsureParentDir creates the directory that will hold file path.
func EnsureParentDir(path string) error {
	_, err := EnsureDir(filepath.Dir(path))
	return err
}

// DetectContentType resolves the MIME type of a file from its name, falling
// back to sniffing head.
func DetectContentType(name string, head []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return t
		}
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(head)
}

// Category collapses a MIME type to the wildcard the asset store expects.
func Category(contentType string) string {
	major, _, _ := strings.Cut(contentType, "/")
	switch strings.ToLower(strings.TrimSpace(major)) {
	case "image":
		return CategoryImage
	case "video":
		return CategoryVideo
	default:
		return CategoryGeneric
	}
}
