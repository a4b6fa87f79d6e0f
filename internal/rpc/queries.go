package rpc

// documents holds the GraphQL document sent for each operation. Every
// operation takes its arguments as a single variables map; most use $input.
var documents = map[Operation]string{
	IdentifyAccount: `mutation IdentifyAccount($input: IdentifyAccountInput!) {
  identifyAccount(input: $input) { id }
}`,
	TrackEvent: `mutation TrackEvent($input: TrackEventInput!) {
  trackEvent(input: $input) { success }
}`,
	TrackNotification: `mutation TrackNotification($input: TrackNotificationInput!) {
  trackNotification(input: $input) { success }
}`,
	PrepareAsset: `mutation PrepareAsset($input: PrepareAssetInput!) {
  prepareAsset(input: $input) { id resourceId attributeId uploadStatus data }
}`,
	Asset: `query Asset($id: UUID!) {
  asset(id: $id) { id resourceId attributeId uploadStatus data }
}`,
	PrepareExternalAsset: `mutation PrepareExternalAsset($input: PrepareExternalAssetInput!) {
  prepareExternalAsset(input: $input) { id externalColumnId status data }
}`,
	ExternalAsset: `query ExternalAsset($id: UUID!) {
  externalAsset(id: $id) { id externalColumnId status data }
}`,
	SubscribeContact: `mutation SubscribeContact($input: SubscribeContactInput!) {
  subscribeContact(input: $input) { id value }
}`,
	UnsubscribeContact: `mutation UnsubscribeContact($input: UnsubscribeContactInput!) {
  unsubscribeContact(input: $input) { id value }
}`,
	FetchContent: `query FetchContent($input: FetchContentInput!) {
  fetchContent(input: $input)
}`,
	SearchContent: `query SearchContent($input: SearchContentInput!) {
  searchContent(input: $input)
}`,
	FetchCart: `query FetchCart($input: FetchCartInput!) {
  fetchCart(input: $input) {
    id status subtotal discount tax total gatewayMeta currencyCode
    orderItems { id quantity unitPrice subtotal discount tax total custom currencyCode }
    couponRedemptions { coupon { name identifier discountType discountAmount currencyCode expiresAt } }
  }
}`,
	AddItemToCart: `mutation AddItemToCart($input: AddItemToCartInput!) {
  addItemToCart(input: $input) {
    id status subtotal discount tax total gatewayMeta currencyCode
    orderItems { id quantity unitPrice subtotal discount tax total custom currencyCode }
    couponRedemptions { coupon { name identifier discountType discountAmount currencyCode expiresAt } }
  }
}`,
	FetchStoredPreferences: `query FetchStoredPreferences($input: FetchStoredPreferencesInput!) {
  fetchStoredPreferences(input: $input) { preferenceData }
}`,
	SaveStoredPreferences: `mutation SaveStoredPreferences($input: SaveStoredPreferencesInput!) {
  saveStoredPreferences(input: $input) { success }
}`,
}

// Document returns the GraphQL document for op.
func Document(op Operation) (string, bool) {
	d, ok := documents[op]
	return d, ok
}
