package explorer

import (
	"errors"

	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/fingerprint"
)

// FingerprintOf returns the single hash key attached to item. ok is false
// when the item has none. More than one key is an AmbiguousFingerprintError.
func FingerprintOf(item *dataset.Item) (fp fingerprint.Fingerprint, ok bool, err error) {
	keys := item.HashKeys()
	switch len(keys) {
	case 0:
		return fingerprint.Fingerprint{}, false, nil
	case 1:
		return keys[0], true, nil
	default:
		return fingerprint.Fingerprint{}, false, &AmbiguousFingerprintError{ItemID: item.ID, Count: len(keys)}
	}
}

// Partition splits c into the items that already carry a hash key and the
// items that still need inference. Both results keep c's name and order.
// c is not modified.
func Partition(c *dataset.Collection) (with, without *dataset.Collection, err error) {
	with = dataset.NewCollection(c.Name())
	without = dataset.NewCollection(c.Name())

	for _, item := range c.Items() {
		_, ok, err := FingerprintOf(item)
		if err != nil {
			var ae *AmbiguousFingerprintError
			if errors.As(err, &ae) {
				ae.Collection = c.Name()
			}
			return nil, nil, err
		}
		if ok {
			with.Put(item)
		} else {
			without.Put(item)
		}
	}

	return with, without, nil
}
