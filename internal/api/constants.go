package api

// Cache-Control header values.
const (
	// Bulk views change once a month.
	CacheViews   = "public, max-age=300"
	CacheNoStore = "no-store"
)

// Search limits.
const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)
