package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iishyfishyy/lookalike/internal/fingerprint"
	"gopkg.in/yaml.v3"
)

// Parser reads item documents: text files with optional YAML frontmatter,
// and YAML sidecar files describing an image.
type Parser struct{}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// Frontmatter holds the item fields that can be set from YAML.
//
//	---
//	id: cat-01
//	caption: a cat on a sofa
//	labels: [cat, indoor]
//	image: cat-01.jpg
//	hash_key: 0f3a9c1e00ff12aa
//	---
type Frontmatter struct {
	ID       string   `yaml:"id"`
	Caption  string   `yaml:"caption"`
	Labels   []string `yaml:"labels"`
	Image    string   `yaml:"image"`
	HashKey  string   `yaml:"hash_key"`
	HashKeys []string `yaml:"hash_keys"`
}

// Parse parses a text document from disk. The item ID defaults to id.
// A relative image reference is resolved against the document directory.
func (p *Parser) Parse(path, id string) (*Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	item, fm, err := p.ParseDocument(id, data, info.ModTime())
	if err != nil {
		return nil, err
	}

	if fm != nil && fm.Image != "" {
		imgPath := fm.Image
		if !filepath.IsAbs(imgPath) {
			imgPath = filepath.Join(filepath.Dir(path), imgPath)
		}
		item.Media = NewFileMedia(imgPath)
	}

	return item, nil
}

// ParseDocument parses document bytes into an item. The returned
// frontmatter is nil when the document has none; callers resolve
// fm.Image themselves.
func (p *Parser) ParseDocument(id string, data []byte, modTime time.Time) (*Item, *Frontmatter, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	fm, body, err := p.parseFrontmatter(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	item := &Item{
		ID:        id,
		UpdatedAt: modTime,
	}

	if fm != nil {
		if err := fm.Apply(item); err != nil {
			return nil, nil, err
		}
	}

	body = strings.TrimSpace(body)
	switch {
	case item.Text == "":
		item.Text = body
	case body != "":
		item.Text += "\n" + body
	}

	return item, fm, nil
}

// ParseSidecar parses a plain YAML sidecar describing an image.
func (p *Parser) ParseSidecar(data []byte) (*Frontmatter, error) {
	var fm Frontmatter
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &fm, nil
}

// parseFrontmatter extracts YAML frontmatter and returns it with the remaining content
func (p *Parser) parseFrontmatter(lines []string) (*Frontmatter, string, error) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, strings.Join(lines, "\n"), nil
	}

	endIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			endIdx = i
			break
		}
	}

	if endIdx == -1 {
		return nil, "", fmt.Errorf("unclosed frontmatter")
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:endIdx], "\n")), &fm); err != nil {
		return nil, "", fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &fm, strings.Join(lines[endIdx+1:], "\n"), nil
}

// Apply copies the frontmatter fields onto item. Every hash key listed is
// attached, so conflicting imports stay visible to the caller.
func (fm *Frontmatter) Apply(item *Item) error {
	if fm.ID != "" {
		item.ID = fm.ID
	}
	if fm.Caption != "" {
		item.Text = strings.TrimSpace(fm.Caption)
	}
	for _, name := range fm.Labels {
		item.Annotations = append(item.Annotations, Label{Name: name})
	}

	keys := fm.HashKeys
	if fm.HashKey != "" {
		keys = append([]string{fm.HashKey}, keys...)
	}
	for _, k := range keys {
		fp, err := fingerprint.ParseHex(k)
		if err != nil {
			return fmt.Errorf("invalid hash key %q: %w", k, err)
		}
		item.AttachHashKey(fp)
	}

	return nil
}

// ParseAll parses multiple documents. ids[i] is the default ID of paths[i].
// Documents that fail are skipped and reported in the returned error.
func (p *Parser) ParseAll(paths, ids []string) ([]*Item, error) {
	var items []*Item
	var errs []string

	for i, path := range paths {
		item, err := p.Parse(path, ids[i])
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		items = append(items, item)
	}

	if len(errs) > 0 {
		return items, fmt.Errorf("failed to parse some files:\n%s", strings.Join(errs, "\n"))
	}

	return items, nil
}
