package engine

import "errors"

var (
	// ErrInvalidRange is returned for inverted holding-time bounds or empty offset ranges
	ErrInvalidRange = errors.New("invalid range")
	// ErrUnknownSortKey is returned for a sort key outside the supported set
	ErrUnknownSortKey = errors.New("unknown sort key")
	// ErrInvalidSampleSize is returned when the score normalization size is not positive
	ErrInvalidSampleSize = errors.New("sample size must be positive")
	// ErrNoOffsets is returned when the fixed offset set is empty
	ErrNoOffsets = errors.New("offset set is empty")
)
