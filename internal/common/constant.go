// Package common contains shared constants and sentinel errors used across
// DashX SDK components.
package common

// Header names attached to every outbound RPC request.
const (
	PublicKeyHeaderName         = "X-Public-Key"
	TargetEnvironmentHeaderName = "X-Target-Environment"
	IdentityTokenHeaderName     = "X-Identity-Token"
)

// OriginIDHeaderName binds an asset PUT to the upload ticket that issued it.
const OriginIDHeaderName = "x-goog-meta-origin-id"

// DefaultBaseURI is the production GraphQL endpoint.
const DefaultBaseURI = "https://api.dashx.com/graphql"

const (
	packageName     = "com.dashx.sdk"
	defaultInstance = "default"
	keyPrefix       = packageName + "." + defaultInstance + "."
)

// Local state store keys.
const (
	KeyAccountUID          = keyPrefix + "account_uid"
	KeyAccountAnonymousUID = keyPrefix + "account_anonymous_uid"
	KeyIdentityToken       = keyPrefix + "identity_token"
	KeyDeviceToken         = keyPrefix + "device_token"
	KeyBuild               = keyPrefix + "build"
	KeyStoreSalt           = keyPrefix + "store_salt"
)

// Internal lifecycle event names.
const (
	EventAppInstalled    = "Application Installed"
	EventAppUpdated      = "Application Updated"
	EventAppOpened       = "Application Opened"
	EventAppBackgrounded = "Application Backgrounded"
	EventAppCrashed      = "Application Crashed"
	EventScreenViewed    = "Screen Viewed"
)

// User attribute keys accepted by identify.
const (
	AttrUID          = "uid"
	AttrAnonymousUID = "anonymousUid"
	AttrEmail        = "email"
	AttrPhone        = "phone"
	AttrName         = "name"
	AttrFirstName    = "firstName"
	AttrLastName     = "lastName"
)
