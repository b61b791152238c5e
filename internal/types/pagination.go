package types

// PageInfo contains pagination metadata for list responses.
type PageInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalItems int  `json:"total_items"`
	HasMore    bool `json:"has_more"`
}

// ListResponse is a generic paginated response wrapper.
type ListResponse[T any] struct {
	Data     []T      `json:"data"`
	PageInfo PageInfo `json:"pagination"`
}

// DefaultPageLimit caps history queries that do not specify a limit.
const DefaultPageLimit = 20

// MaxPageLimit is the hard ceiling for a single history page.
const MaxPageLimit = 100

// Normalize clamps page and limit to sane bounds.
func (f *WebhookFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}
