package constants

import "time"

const (
	// Pagination constants.
	DefaultPageSize = 50
	MaxPageSize     = 200

	// Cache constants. Libraries and recent scans share one cache, told
	// apart by key prefix.
	LibraryCacheTTL    = 5 * time.Minute
	LibraryCachePrefix = "library:"
	ScanCachePrefix    = "scan:"
)
