package models

// FetchContentOptions narrows a single content fetch.
type FetchContentOptions struct {
	Preview  *bool    `json:"preview,omitempty"`
	Language string   `json:"language,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Include  []string `json:"include,omitempty"`
	Exclude  []string `json:"exclude,omitempty"`
}

// SearchContentOptions narrows a content search. ReturnType defaults to "all".
type SearchContentOptions struct {
	ReturnType string         `json:"returnType,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
	Order      map[string]any `json:"order,omitempty"`
	Limit      *int           `json:"limit,omitempty"`
	Preview    *bool          `json:"preview,omitempty"`
	Language   string         `json:"language,omitempty"`
	Fields     []string       `json:"fields,omitempty"`
	Include    []string       `json:"include,omitempty"`
	Exclude    []string       `json:"exclude,omitempty"`
}

type AddItemToCartInput struct {
	ItemID    string         `json:"itemId"`
	PricingID string         `json:"pricingId"`
	Quantity  string         `json:"quantity"`
	Reset     bool           `json:"reset"`
	Custom    map[string]any `json:"custom,omitempty"`
}

// Preference is one stored preference entry keyed by preference name.
type Preference struct {
	Enabled  bool `json:"enabled"`
	Email    bool `json:"email,omitempty"`
	Push     bool `json:"push,omitempty"`
	SMS      bool `json:"sms,omitempty"`
	WhatsApp bool `json:"whatsapp,omitempty"`
}
