package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/fingerprint"
)

// Hasher is an Embedder that runs a float embedding model and hashes the
// vector into a fingerprint.
//
// Items with readable media go through the image model when one is set.
// Otherwise the item's text is embedded. Items with neither yield
// ErrNoFingerprint.
//
// Hasher is safe for concurrent use when its models are.
type Hasher struct {
	text      Model
	image     ImageModel
	binarizer *fingerprint.Binarizer
}

// NewHasher creates a Hasher producing bits-wide fingerprints. image may be
// nil; when set it must share text's vector space and dimension.
func NewHasher(text Model, image ImageModel, bits int, seed uint64) (*Hasher, error) {
	if text == nil {
		return nil, fmt.Errorf("text model is required")
	}
	if image != nil && image.Dimensions() != text.Dimensions() {
		return nil, fmt.Errorf("image model %s has %d dimensions, text model %s has %d",
			image.Name(), image.Dimensions(), text.Name(), text.Dimensions())
	}

	bz, err := fingerprint.NewBinarizer(text.Dimensions(), bits, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create binarizer: %w", err)
	}

	return &Hasher{
		text:      text,
		image:     image,
		binarizer: bz,
	}, nil
}

// Name identifies the models behind the fingerprints, for cache validation.
func (h *Hasher) Name() string {
	if h.image != nil && h.image.Name() != h.text.Name() {
		return h.text.Name() + "+" + h.image.Name()
	}
	return h.text.Name()
}

// Bits returns the fingerprint width.
func (h *Hasher) Bits() int {
	return h.binarizer.Bits()
}

// Seed returns the hyperplane seed.
func (h *Hasher) Seed() uint64 {
	return h.binarizer.Seed()
}

// EmbedText implements Embedder.
func (h *Hasher) EmbedText(ctx context.Context, text string) (fingerprint.Fingerprint, error) {
	if strings.TrimSpace(text) == "" {
		return fingerprint.Fingerprint{}, fmt.Errorf("%w: empty text", ErrNoFingerprint)
	}

	vec, err := h.text.Embed(ctx, text)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	return h.binarizer.Fingerprint(vec)
}

// EmbedItem implements Embedder.
func (h *Hasher) EmbedItem(ctx context.Context, item *dataset.Item) (fingerprint.Fingerprint, error) {
	if vec, ok, err := h.imageVector(ctx, item); err != nil {
		return fingerprint.Fingerprint{}, err
	} else if ok {
		return h.binarizer.Fingerprint(vec)
	}

	text := strings.TrimSpace(item.Text)
	if text == "" {
		return fingerprint.Fingerprint{}, fmt.Errorf("%w: item %q has no media or text", ErrNoFingerprint, item.ID)
	}

	vec, err := h.text.Embed(ctx, text)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	return h.binarizer.Fingerprint(vec)
}

// EmbedItems implements BatchEmbedder. Text items share one EmbedBatch call;
// image items are embedded one at a time.
func (h *Hasher) EmbedItems(ctx context.Context, items []*dataset.Item) ([]fingerprint.Fingerprint, error) {
	out := make([]fingerprint.Fingerprint, len(items))

	var texts []string
	var textIdx []int

	for i, item := range items {
		vec, ok, err := h.imageVector(ctx, item)
		if err != nil {
			return nil, err
		}
		if ok {
			fp, err := h.binarizer.Fingerprint(vec)
			if err != nil {
				return nil, fmt.Errorf("item %q: %w", item.ID, err)
			}
			out[i] = fp
			continue
		}

		if text := strings.TrimSpace(item.Text); text != "" {
			texts = append(texts, text)
			textIdx = append(textIdx, i)
		}
	}

	if len(texts) == 0 {
		return out, nil
	}

	vecs, err := h.text.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("model returned %d embeddings for %d texts", len(vecs), len(texts))
	}

	for j, vec := range vecs {
		fp, err := h.binarizer.Fingerprint(vec)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", items[textIdx[j]].ID, err)
		}
		out[textIdx[j]] = fp
	}

	return out, nil
}

// imageVector embeds item's media through the image model. ok is false when
// there is no image model, no media, or the media has no data.
func (h *Hasher) imageVector(ctx context.Context, item *dataset.Item) ([]float32, bool, error) {
	if h.image == nil || item.Media == nil {
		return nil, false, nil
	}

	data, err := item.Media.Data(ctx)
	if errors.Is(err, dataset.ErrNoData) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("item %q: %w", item.ID, err)
	}

	vec, err := h.image.EmbedImage(ctx, data, item.Media.MimeType())
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}
