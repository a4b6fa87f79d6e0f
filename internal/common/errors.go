// Package common defines shared constants and error values used across the
// SDK layers. Callers match sentinels with errors.Is and taxonomy classes
// with Class.Has.
package common

import (
	"errors"

	"github.com/zeebo/errs"
)

// Error taxonomy. Every error surfaced by a result-returning operation
// belongs to exactly one of these classes.
var (
	// TransportError: the RPC failed at the network/protocol level
	// (non-2xx, connection failure, malformed response).
	TransportError = errs.Class("transport")

	// ApplicationError: the RPC succeeded but the response carries errors.
	ApplicationError = errs.Class("application")

	// ValidationError: the caller broke a precondition.
	ValidationError = errs.Class("validation")

	// UploadFailure: the file PUT returned a non-2xx status.
	UploadFailure = errs.Class("upload failed")

	// PollTimeout: the poll budget ran out before the asset became ready.
	PollTimeout = errs.Class("poll timeout")
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingPublicKey = errors.New("public key is required")
	ErrNoAccount        = errors.New("account uid is not set")
	ErrMalformedURN     = errors.New("urn must be of form {contentType}/{content}")
	ErrMissingFile      = errors.New("file is required")

	ErrClosed = errors.New("client is closed")

	ErrNoUploadURL = errors.New("prepare response has no upload url")
	ErrNotReady    = errors.New("asset is not ready")
)
