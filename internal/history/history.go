package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	HistoryFileName = "history.json"

	// MaxEntries is the number of queries kept on disk
	MaxEntries = 500
)

// Result is one match returned for a query
type Result struct {
	ItemID   string `json:"item_id"`
	Path     string `json:"path,omitempty"`
	Distance int    `json:"distance"`
}

// Entry represents a single query history entry
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // text, item, image or hash
	Query     string    `json:"query"`
	K         int       `json:"k"`
	Results   []Result  `json:"results,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// History manages query history
type History struct {
	Entries []Entry `json:"entries"`
}

// GetHistoryPath returns the path to the history file
func GetHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".lookalike", HistoryFileName), nil
}

// Load reads the history from disk
func Load() (*History, error) {
	historyPath, err := GetHistoryPath()
	if err != nil {
		return nil, err
	}

	// If history doesn't exist, return empty history
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		return &History{Entries: []Entry{}}, nil
	}

	data, err := os.ReadFile(historyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var hist History
	if err := json.Unmarshal(data, &hist); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}

	return &hist, nil
}

// Save writes the history to disk, keeping the newest MaxEntries entries
func (h *History) Save() error {
	historyPath, err := GetHistoryPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(historyPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if len(h.Entries) > MaxEntries {
		h.Entries = h.Entries[len(h.Entries)-MaxEntries:]
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.WriteFile(historyPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}

	return nil
}

// AddEntry adds a new entry to the history
func (h *History) AddEntry(entry Entry) {
	h.Entries = append(h.Entries, entry)
}

// Recent returns up to n entries, newest first
func (h *History) Recent(n int) []Entry {
	if n <= 0 || n > len(h.Entries) {
		n = len(h.Entries)
	}
	out := make([]Entry, 0, n)
	for i := len(h.Entries) - 1; i >= len(h.Entries)-n; i-- {
		out = append(out, h.Entries[i])
	}
	return out
}

// NewEntry creates a new history entry
func NewEntry(kind, query string, k int, results []Result, err error) Entry {
	entry := Entry{
		Timestamp: time.Now(),
		Kind:      kind,
		Query:     query,
		K:         k,
		Results:   results,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}
