package domain

import "errors"

// Common domain errors
var (
	// ErrLibraryNotFound is returned when a library is not found
	ErrLibraryNotFound = errors.New("library not found")

	// ErrGameNotFound is returned when a game is not found
	ErrGameNotFound = errors.New("game not found")

	// ErrScanInProgress is returned when a library already has a running scan
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrScanFinished is returned when mutating a completed or failed scan
	ErrScanFinished = errors.New("scan already finished")

	// ErrNoMatch is returned when no metadata provider recognizes a path
	ErrNoMatch = errors.New("no metadata provider matched path")

	// ErrInvalidPath is returned when a directory mapping path is not absolute
	ErrInvalidPath = errors.New("invalid library path")

	// ErrDuplicatePath is returned when a directory is already mapped by a library
	ErrDuplicatePath = errors.New("directory already mapped by a library")

	// ErrInvalidScanType is returned for unknown scan types
	ErrInvalidScanType = errors.New("invalid scan type")
)
