// Package models holds the plain data types passed between SDK components.
package models

// Session is a point-in-time copy of the client's identity state.
// Empty strings mean the value is absent.
type Session struct {
	AccountUID          string
	AccountAnonymousUID string
	IdentityToken       string
}

// LibraryInfo identifies the SDK build that produced a request.
type LibraryInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NotificationStatus string

const (
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationOpened    NotificationStatus = "OPENED"
	NotificationDismissed NotificationStatus = "DISMISSED"
)
