package domain

// Story is the canonical record every API response shape is mapped into.
// CreatedAt stays an ISO-8601 string: it is the sort key and lexicographic
// order equals chronological order for RFC 3339 timestamps.
type Story struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	Description string   `json:"description" db:"description"`
	PhotoURL    string   `json:"photoUrl" db:"photo_url"`
	CreatedAt   string   `json:"createdAt" db:"created_at"`
	Lat         *float64 `json:"lat,omitempty" db:"lat"`
	Lon         *float64 `json:"lon,omitempty" db:"lon"`
}

// HasLocation reports whether both coordinates are present. Presence gates
// map rendering in callers; a record never carries just one of the pair.
func (s Story) HasLocation() bool {
	return s.Lat != nil && s.Lon != nil
}

// CachedStory is a story persisted as a side effect of a successful remote
// read. SavedAt and IsOffline are stamped by the store at write time.
type CachedStory struct {
	Story
	SavedAt   string `json:"savedAt" db:"saved_at"`
	IsOffline bool   `json:"isOffline" db:"is_offline"`
}

// FavoriteStory is a story explicitly saved by user action. The favorites
// collection is independent of the cache; removing from one never touches
// the other.
type FavoriteStory struct {
	Story
	SavedAt    string `json:"savedAt" db:"saved_at"`
	IsFavorite bool   `json:"isFavorite" db:"is_favorite"`
}

// ListOptions selects a page of the remote story listing.
type ListOptions struct {
	Page         int
	Size         int
	WithLocation bool
}

// NewStory carries the fields of a story about to be created remotely.
// Photo is the raw image payload sent as a multipart part.
type NewStory struct {
	Description string
	Photo       []byte
	PhotoName   string
	Lat         *float64
	Lon         *float64
}

// PushSubscription mirrors the web-push subscription sent to the API.
type PushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys"`
}

// Session is the result of a successful login.
type Session struct {
	Token  string
	UserID string
	Name   string
}
