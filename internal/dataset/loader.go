package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Loader builds collections from directories on disk.
//
// Layout:
//   - images (*.jpg, *.png, ...) become media items; an optional sidecar
//     "<image>.yaml" adds caption, labels and hash keys
//   - text documents (*.md, *.txt) become items, with optional YAML
//     frontmatter; a document whose frontmatter names an image claims it, and
//     the image is not loaded a second time
//   - README.md and names starting with "_" or "." are skipped
type Loader struct {
	parser *Parser
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{
		parser: NewParser(),
		logger: logger,
	}
}

func isDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".txt"
}

func isMeta(name string) bool {
	return strings.EqualFold(name, "README.md") || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// LoadDir loads every item under dir into a collection called name.
//
// Files that fail to parse are skipped and reported together in the returned
// error; the collection is still usable when err wraps only such failures.
// A missing directory is a hard error and returns a nil collection.
func (l *Loader) LoadDir(name, dir string) (*Collection, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to open collection directory: %w", err)
	}

	var docs, images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && isMeta(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			l.logger.Debug("skipping meta file", "path", path)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case isDocument(d.Name()):
			docs = append(docs, path)
		case IsImage(d.Name()):
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk collection directory: %w", err)
	}

	l.logger.Debug("scanned collection directory", "dir", dir, "documents", len(docs), "images", len(images))

	ids := make([]string, len(docs))
	for i, path := range docs {
		ids[i] = relID(dir, path)
	}

	var failures []error

	docItems, err := l.parser.ParseAll(docs, ids)
	if err != nil {
		failures = append(failures, err)
	}

	claimed := make(map[string]bool)
	for _, it := range docItems {
		if it.Media != nil {
			claimed[filepath.Clean(it.Media.Path())] = true
		}
	}

	coll := NewCollection(name)
	for _, it := range docItems {
		coll.Put(it)
	}

	for _, path := range images {
		if claimed[filepath.Clean(path)] {
			continue
		}
		item, err := l.loadImage(dir, path)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", path, err))
			continue
		}
		coll.Put(item)
	}

	if len(failures) > 0 {
		err := errors.Join(failures...)
		l.logger.Warn("collection loaded with failures", "collection", name, "loaded", coll.Len(), "error", err)
		return coll, err
	}

	l.logger.Debug("collection loaded", "collection", name, "items", coll.Len())
	return coll, nil
}

func (l *Loader) loadImage(dir, path string) (*Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	item := &Item{
		ID:        relID(dir, path),
		Media:     NewFileMedia(path),
		UpdatedAt: info.ModTime(),
	}

	sidecar := path + ".yaml"
	data, err := os.ReadFile(sidecar)
	if errors.Is(err, os.ErrNotExist) {
		return item, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	fm, err := l.parser.ParseSidecar(data)
	if err != nil {
		return nil, err
	}
	if err := fm.Apply(item); err != nil {
		return nil, err
	}

	if sinfo, err := os.Stat(sidecar); err == nil && sinfo.ModTime().After(item.UpdatedAt) {
		item.UpdatedAt = sinfo.ModTime()
	}

	return item, nil
}

func relID(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
