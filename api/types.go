package api

import "time"

// SavedRoute is a stored origin/destination pair.
type SavedRoute struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	RouteTypes  *string   `json:"route_types"`
	Notes       *string   `json:"notes"`
	IsFavorite  bool      `json:"is_favorite"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RouteList is one page of saved routes.
type RouteList struct {
	Routes         []SavedRoute `json:"routes"`
	Total          int          `json:"total"`
	FavoritesCount int          `json:"favorites_count"`
}

// NewRoute is the create payload.
type NewRoute struct {
	Name        string  `json:"name"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	RouteTypes  *string `json:"route_types,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	IsFavorite  bool    `json:"is_favorite"`
}

// RouteUpdate is a partial update; nil fields are left unchanged.
type RouteUpdate struct {
	Name        *string `json:"name,omitempty"`
	Origin      *string `json:"origin,omitempty"`
	Destination *string `json:"destination,omitempty"`
	RouteTypes  *string `json:"route_types,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	IsFavorite  *bool   `json:"is_favorite,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListRoutesOptions pages the saved-routes listing. Zero Limit uses the
// server default of 100.
type ListRoutesOptions struct {
	Skip          int
	Limit         int
	FavoritesOnly bool
}
