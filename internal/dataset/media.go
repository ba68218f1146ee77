package dataset

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoData is returned by Media.Data when the payload is unavailable.
var ErrNoData = errors.New("media has no data")

// Media is the raw payload of an item (usually an image).
type Media interface {
	// Path identifies the payload: a file path or an object URL.
	Path() string

	// MimeType returns the payload content type, e.g. "image/png".
	MimeType() string

	// Data reads the payload. It returns ErrNoData when there is nothing to
	// read.
	Data(ctx context.Context) ([]byte, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

func mimeFor(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// FileMedia is a payload stored on the local filesystem.
type FileMedia struct {
	path string
}

// NewFileMedia creates a FileMedia for path.
func NewFileMedia(path string) *FileMedia {
	return &FileMedia{path: path}
}

// Path implements Media.
func (f *FileMedia) Path() string { return f.path }

// MimeType implements Media.
func (f *FileMedia) MimeType() string { return mimeFor(f.path) }

// Data implements Media.
func (f *FileMedia) Data(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoData, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoData, f.path)
	}
	return data, nil
}

// BytesMedia is an in-memory payload.
type BytesMedia struct {
	name string
	data []byte
}

// NewBytesMedia creates a BytesMedia; name is used for Path and MimeType.
func NewBytesMedia(name string, data []byte) *BytesMedia {
	return &BytesMedia{name: name, data: data}
}

// Path implements Media.
func (b *BytesMedia) Path() string { return b.name }

// MimeType implements Media.
func (b *BytesMedia) MimeType() string { return mimeFor(b.name) }

// Data implements Media.
func (b *BytesMedia) Data(_ context.Context) ([]byte, error) {
	if len(b.data) == 0 {
		return nil, ErrNoData
	}
	return b.data, nil
}
