// Package rpc executes DashX backend operations over GraphQL-over-HTTP or the
// gRPC gateway. Callers see one Executor regardless of transport.
package rpc

// Operation names a backend operation.
type Operation string

const (
	IdentifyAccount        Operation = "IdentifyAccount"
	TrackEvent             Operation = "TrackEvent"
	TrackNotification      Operation = "TrackNotification"
	PrepareAsset           Operation = "PrepareAsset"
	Asset                  Operation = "Asset"
	PrepareExternalAsset   Operation = "PrepareExternalAsset"
	ExternalAsset          Operation = "ExternalAsset"
	SubscribeContact       Operation = "SubscribeContact"
	UnsubscribeContact     Operation = "UnsubscribeContact"
	FetchContent           Operation = "FetchContent"
	SearchContent          Operation = "SearchContent"
	FetchCart              Operation = "FetchCart"
	AddItemToCart          Operation = "AddItemToCart"
	FetchStoredPreferences Operation = "FetchStoredPreferences"
	SaveStoredPreferences  Operation = "SaveStoredPreferences"
)

// Operations lists every operation the SDK issues.
var Operations = []Operation{
	IdentifyAccount, TrackEvent, TrackNotification,
	PrepareAsset, Asset, PrepareExternalAsset, ExternalAsset,
	SubscribeContact, UnsubscribeContact,
	FetchContent, SearchContent,
	FetchCart, AddItemToCart,
	FetchStoredPreferences, SaveStoredPreferences,
}

// Field is the root field the operation's result is returned under,
// e.g. "trackEvent" for TrackEvent.
func (o Operation) Field() string {
	if o == "" {
		return ""
	}
	b := []byte(o)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// GRPCMethod is the full method name on the gateway service.
func (o Operation) GRPCMethod() string {
	return "/" + GatewayService + "/" + string(o)
}

// GatewayService is the gRPC service that accepts every operation.
const GatewayService = "dashx.v1.Gateway"
