package explorer

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousFingerprint is returned when an item carries more than one
	// hash key.
	ErrAmbiguousFingerprint = errors.New("item has more than one hash key")

	// ErrEmptyIndex is returned by New when no item ended up with a
	// fingerprint.
	ErrEmptyIndex = errors.New("no fingerprints to index")

	// ErrMissingFingerprint is returned when a query cannot be reduced to a
	// fingerprint.
	ErrMissingFingerprint = errors.New("query has no fingerprint")

	// ErrUnsupportedQueryType is returned for query values Explore cannot
	// resolve.
	ErrUnsupportedQueryType = errors.New("unsupported query type")

	// ErrInvalidK is returned for a negative result count.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrNotReady is returned when querying an explorer that was not built
	// with New.
	ErrNotReady = errors.New("explorer is not ready")

	// ErrFingerprintWidth is returned when a fingerprint's width differs from
	// the index width.
	ErrFingerprintWidth = errors.New("fingerprint width differs from index")
)

// AmbiguousFingerprintError reports an item with several hash keys.
type AmbiguousFingerprintError struct {
	Collection string // empty for query items
	ItemID     string
	Count      int
}

func (e *AmbiguousFingerprintError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("item %q has %d hash keys, expected at most one", e.ItemID, e.Count)
	}
	return fmt.Sprintf("item %q in collection %q has %d hash keys, expected at most one",
		e.ItemID, e.Collection, e.Count)
}

func (e *AmbiguousFingerprintError) Is(target error) bool {
	return target == ErrAmbiguousFingerprint
}

// UnsupportedQueryTypeError reports the Go type of a rejected query.
type UnsupportedQueryTypeError struct {
	Type string
}

func (e *UnsupportedQueryTypeError) Error() string {
	return fmt.Sprintf("unsupported query type %s: want *dataset.Item, string or fingerprint.Fingerprint", e.Type)
}

func (e *UnsupportedQueryTypeError) Is(target error) bool {
	return target == ErrUnsupportedQueryType
}
