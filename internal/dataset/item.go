// Package dataset models the items being explored: ordered collections of
// items, each with an optional media payload, optional text and a list of
// annotations such as labels and hash keys.
package dataset

import (
	"slices"
	"time"

	"github.com/iishyfishyy/lookalike/internal/fingerprint"
)

// AnnotationKind identifies the concrete type of an Annotation.
type AnnotationKind int

const (
	KindLabel AnnotationKind = iota
	KindHashKey
)

func (k AnnotationKind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindHashKey:
		return "hash_key"
	default:
		return "unknown"
	}
}

// Annotation is a piece of metadata attached to an item.
type Annotation interface {
	Kind() AnnotationKind
}

// Label tags an item with a class name.
type Label struct {
	Name string
}

// Kind implements Annotation.
func (Label) Kind() AnnotationKind { return KindLabel }

// HashKey attaches a binary fingerprint to an item.
// An item should carry at most one.
type HashKey struct {
	Key fingerprint.Fingerprint
}

// Kind implements Annotation.
func (HashKey) Kind() AnnotationKind { return KindHashKey }

// Item is a single entry of a collection.
type Item struct {
	ID          string
	Media       Media        // nil for text-only items
	Text        string       // caption or body text
	Annotations []Annotation // labels, hash keys
	UpdatedAt   time.Time    // source modification time
}

// HashKeys returns every fingerprint attached to the item, in order.
func (it *Item) HashKeys() []fingerprint.Fingerprint {
	var keys []fingerprint.Fingerprint
	for _, ann := range it.Annotations {
		if hk, ok := ann.(HashKey); ok {
			keys = append(keys, hk.Key)
		}
	}
	return keys
}

// AttachHashKey appends a HashKey annotation.
func (it *Item) AttachHashKey(fp fingerprint.Fingerprint) {
	it.Annotations = append(it.Annotations, HashKey{Key: fp})
}

// Labels returns the names of all Label annotations.
func (it *Item) Labels() []string {
	var names []string
	for _, ann := range it.Annotations {
		if l, ok := ann.(Label); ok {
			names = append(names, l.Name)
		}
	}
	return names
}

// Clone returns a copy of the item with its own annotation slice.
// Media is shared.
func (it *Item) Clone() *Item {
	cp := *it
	cp.Annotations = slices.Clone(it.Annotations)
	return &cp
}
