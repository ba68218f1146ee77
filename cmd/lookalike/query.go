package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/iishyfishyy/lookalike/internal/catalog"
	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/executor"
	"github.com/iishyfishyy/lookalike/internal/explorer"
	"github.com/iishyfishyy/lookalike/internal/fingerprint"
	"github.com/iishyfishyy/lookalike/internal/history"
	"github.com/iishyfishyy/lookalike/internal/ui"
)

type queryFlags struct {
	item     string
	image    string
	hash     string
	k        int
	jsonOut  bool
	copyPath bool
	open     bool
}

func newQueryCmd() *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "query [text...]",
		Short: "Find the items closest to a text, item, image or fingerprint",
		Example: `  lookalike query red bicycle
  lookalike query --item photos/2024/beach.jpg -k 5
  lookalike query --image ~/Downloads/cat.png
  lookalike query --hash 0f3a9c --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, &f)
		},
	}

	cmd.Flags().StringVar(&f.item, "item", "", "Query with an indexed item (collection/id)")
	cmd.Flags().StringVar(&f.image, "image", "", "Query with an image file")
	cmd.Flags().StringVar(&f.hash, "hash", "", "Query with a hex-encoded fingerprint")
	cmd.Flags().IntVarP(&f.k, "top", "k", explorer.DefaultTopK, "Number of matches to return")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print matches as JSON")
	cmd.Flags().BoolVar(&f.copyPath, "copy", false, "Copy the best match's path to the clipboard")
	cmd.Flags().BoolVar(&f.open, "open", false, "Open the best match in the default viewer")

	return cmd
}

// queryKind picks the single query source given on the command line
func queryKind(args []string, f *queryFlags) (string, string, error) {
	var kinds []string
	var value string
	if len(args) > 0 {
		kinds = append(kinds, "text")
		value = strings.Join(args, " ")
	}
	if f.item != "" {
		kinds = append(kinds, "item")
		value = f.item
	}
	if f.image != "" {
		kinds = append(kinds, "image")
		value = f.image
	}
	if f.hash != "" {
		kinds = append(kinds, "hash")
		value = f.hash
	}

	switch len(kinds) {
	case 0:
		return "", "", errors.New("nothing to query: pass text, --item, --image or --hash")
	case 1:
		return kinds[0], value, nil
	default:
		return "", "", fmt.Errorf("only one query source allowed, got %s", strings.Join(kinds, " and "))
	}
}

// buildQuery turns the query source into a value the explorer accepts
func buildQuery(manager *catalog.Manager, kind, value string) (any, error) {
	switch kind {
	case "text":
		return value, nil
	case "item":
		item, _, err := manager.FindItem(value)
		if err != nil {
			return nil, err
		}
		return item, nil
	case "image":
		path, err := filepath.Abs(value)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("cannot read image: %w", err)
		}
		if !dataset.IsImage(path) {
			return nil, fmt.Errorf("%s is not a supported image", value)
		}
		return &dataset.Item{ID: filepath.Base(path), Media: dataset.NewFileMedia(path)}, nil
	case "hash":
		return fingerprint.ParseHex(value)
	}
	return nil, fmt.Errorf("unknown query kind %q", kind)
}

func runQuery(cmd *cobra.Command, args []string, f *queryFlags) error {
	kind, value, err := queryKind(args, f)
	if err != nil {
		return err
	}

	manager, err := newManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx := cmd.Context()
	result, err := manager.Index(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to index: %w", err)
	}
	if n := len(result.Report.Failures); n > 0 && !f.jsonOut {
		ui.ShowWarning(fmt.Sprintf("%d items could not be fingerprinted (see 'lookalike index')", n))
	}

	q, err := buildQuery(manager, kind, value)
	if err != nil {
		return err
	}

	var opts []explorer.QueryOption
	k := manager.Explorer().TopK()
	if cmd.Flags().Changed("top") {
		k = f.k
		opts = append(opts, explorer.TopK(k))
	}

	matches, err := manager.Query(ctx, q, opts...)
	recordQuery(newLogger(), kind, value, k, matches, err)
	if err != nil {
		return err
	}

	if f.jsonOut {
		return printJSON(matches)
	}

	bits := manager.Explorer().Bits()
	rows := make([]ui.Row, len(matches))
	for i, m := range matches {
		rows[i] = ui.Row{
			Rank:       m.Rank,
			Distance:   m.Distance,
			Bits:       bits,
			Collection: m.Collection,
			ItemID:     m.Item.ID,
			Detail:     detail(m.Item),
		}
	}
	ui.ShowMatches(rows)

	if f.copyPath && len(matches) > 0 {
		best := matchPath(matches[0])
		if err := clipboard.WriteAll(best); err != nil {
			ui.ShowWarning(fmt.Sprintf("Could not copy to clipboard: %v", err))
		} else {
			ui.ShowSuccess("Copied " + best)
		}
	}

	if f.open && len(matches) > 0 {
		if media := matches[0].Item.Media; media != nil && !strings.HasPrefix(media.Path(), "s3://") {
			if err := executor.Open(ctx, media.Path(), newLogger()); err != nil {
				ui.ShowWarning(err.Error())
			}
		} else {
			ui.ShowWarning("Best match has no local file to open")
		}
	}

	return nil
}

type jsonMatch struct {
	Rank       int      `json:"rank"`
	Distance   int      `json:"distance"`
	Collection string   `json:"collection"`
	ItemID     string   `json:"item_id"`
	Path       string   `json:"path,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Key        string   `json:"key,omitempty"`
}

func printJSON(matches []explorer.Match) error {
	out := make([]jsonMatch, len(matches))
	for i, m := range matches {
		out[i] = jsonMatch{
			Rank:       m.Rank,
			Distance:   m.Distance,
			Collection: m.Collection,
			ItemID:     m.Item.ID,
			Labels:     m.Item.Labels(),
		}
		if m.Item.Media != nil {
			out[i].Path = m.Item.Media.Path()
		}
		if fp, ok, _ := explorer.FingerprintOf(m.Item); ok {
			out[i].Key = fp.String()
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// recordQuery appends the query to the history file. Failures are logged,
// never returned.
func recordQuery(logger *slog.Logger, kind, value string, k int, matches []explorer.Match, qerr error) {
	hist, err := history.Load()
	if err != nil {
		logger.Warn("failed to load history", "error", err)
		return
	}
	results := make([]history.Result, len(matches))
	for i, m := range matches {
		results[i] = history.Result{
			ItemID:   m.Collection + "/" + m.Item.ID,
			Distance: m.Distance,
		}
		if m.Item.Media != nil {
			results[i].Path = m.Item.Media.Path()
		}
	}
	hist.AddEntry(history.NewEntry(kind, value, k, results, qerr))
	if err := hist.Save(); err != nil {
		logger.Warn("failed to save history", "error", err)
	}
}

func matchPath(m explorer.Match) string {
	if m.Item.Media != nil {
		return m.Item.Media.Path()
	}
	return m.Collection + "/" + m.Item.ID
}

// detail is the media path, or the first line of text for text-only items
func detail(item *dataset.Item) string {
	if item.Media != nil {
		return item.Media.Path()
	}
	line, _, _ := strings.Cut(strings.TrimSpace(item.Text), "\n")
	const maxLen = 60
	if runes := []rune(line); len(runes) > maxLen {
		line = string(runes[:maxLen]) + "..."
	}
	return line
}
