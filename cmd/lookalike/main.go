package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iishyfishyy/lookalike/internal/catalog"
	"github.com/iishyfishyy/lookalike/internal/config"
	"github.com/iishyfishyy/lookalike/internal/history"
	"github.com/iishyfishyy/lookalike/internal/ui"
)

var (
	// version is set by goreleaser at build time
	version = "dev"

	// CLI flags
	debug        bool
	configPath   string
	forceReindex bool
	historyLimit int
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "lookalike",
		Short:   "Find similar items by binary fingerprint",
		Long:    "lookalike hashes images and documents into binary fingerprints and finds the closest ones by Hamming distance",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.DisableColorUnlessTerminal()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.lookalike/config.yaml)")

	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure the embedding provider and collections",
		RunE:  runConfigure,
	}

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Fingerprint all collections and cache the results",
		RunE:  runIndex,
	}
	indexCmd.Flags().BoolVarP(&forceReindex, "force", "f", false, "Force reindexing (bypass cache)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List collections and cached fingerprints",
		RunE:  runList,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent queries",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of entries to show (0 for all)")

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.ShowError(err.Error())
		os.Exit(1)
	}
}

// newLogger logs to stderr; --debug lowers the level from warnings to debug
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// readConfig reads the config named by --config or the default one.
// It returns nil if the file does not exist.
func readConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func loadConfig() (*config.Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no configuration found, run 'lookalike configure' first")
	}
	return cfg, nil
}

func saveConfig(cfg *config.Config) error {
	if configPath != "" {
		return config.SaveFile(cfg, configPath)
	}
	return config.Save(cfg)
}

func newManager() (*catalog.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return catalog.NewManager(cfg, catalog.WithLogger(newLogger()))
}

func runIndex(cmd *cobra.Command, args []string) error {
	ui.ShowSection("Indexing Collections")

	manager, err := newManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	if forceReindex {
		ui.ShowInfo("Force reindexing (--force flag)")
	}

	start := time.Now()
	result, err := manager.Index(cmd.Context(), forceReindex)
	if err != nil {
		return fmt.Errorf("failed to index: %w", err)
	}

	showIndexResult(result, time.Since(start))
	return nil
}

func showIndexResult(result *catalog.IndexResult, took time.Duration) {
	if result.CacheReset != "" {
		ui.ShowWarning(fmt.Sprintf("Fingerprint cache reset (%s)", result.CacheReset))
	}

	r := result.Report
	ui.ShowSuccess(fmt.Sprintf("%d of %d items indexed across %d collections (%.1fs)",
		r.Indexed, r.Total, result.Collections, took.Seconds()))
	ui.ShowInfo(fmt.Sprintf("  from source: %d, from cache: %d, computed: %d",
		r.Cached-result.Hydrated, result.Hydrated, r.Inferred))
	if result.Stale > 0 || result.Pruned > 0 {
		ui.ShowInfo(fmt.Sprintf("  recomputed after changes: %d, removed from cache: %d", result.Stale, result.Pruned))
	}

	const maxShown = 10
	for i, f := range r.Failures {
		if i == maxShown {
			ui.ShowWarning(fmt.Sprintf("... and %d more (use --debug for all)", len(r.Failures)-maxShown))
			break
		}
		ui.ShowWarning(f.String())
	}
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	statuses, cache, err := manager.Status(cmd.Context())
	if err != nil {
		return err
	}

	ui.ShowSection("Collections")
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	red := color.New(color.FgRed)

	for _, st := range statuses {
		fmt.Println()
		cyan.Printf("%s", st.Name)
		gray.Printf("  %s\n", st.Path)
		if st.LoadErr != nil && st.Items == 0 {
			red.Printf("  ✗ %v\n", st.LoadErr)
			continue
		}
		fmt.Printf("  Items: %d (%d with media)\n", st.Items, st.Images)
		fmt.Printf("  Fingerprints: %d from source, %d cached\n", st.Keyed, st.Cached)
		if st.LoadErr != nil {
			red.Printf("  ! some items could not be read: %v\n", st.LoadErr)
		}
	}

	fmt.Println()
	cyan.Println("Cache:")
	fmt.Printf("  Location: %s\n", cache.Path)
	if !cache.Exists {
		fmt.Println("  Not indexed yet (run 'lookalike index')")
		return nil
	}
	fmt.Printf("  Model: %s (%s), %d bits, seed %d\n", cache.Meta.Model, cache.Meta.Provider, cache.Meta.Bits, cache.Meta.Seed)
	fmt.Printf("  Entries: %d", cache.Entries)
	if !cache.IndexedAt.IsZero() {
		fmt.Printf(" (indexed %s ago)", formatDuration(cache.IndexedAt))
	}
	fmt.Println()

	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	hist, err := history.Load()
	if err != nil {
		return err
	}

	entries := hist.Recent(historyLimit)
	if len(entries) == 0 {
		ui.ShowInfo("No queries yet")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	bold := color.New(color.Bold)
	for _, e := range entries {
		gray.Printf("%s ago  ", formatDuration(e.Timestamp))
		bold.Printf("[%s] %s", e.Kind, e.Query)
		fmt.Printf("  (k=%d)\n", e.K)
		if e.Error != "" {
			ui.ShowError("  " + e.Error)
			continue
		}
		for i, r := range e.Results {
			fmt.Printf("    %d. %s (distance %d)\n", i+1, r.ItemID, r.Distance)
		}
	}

	return nil
}

// formatDuration formats a duration in human-readable form
func formatDuration(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "moments"
	} else if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
