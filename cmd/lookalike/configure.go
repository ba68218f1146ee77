package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iishyfishyy/lookalike/internal/config"
	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/setup"
	"github.com/iishyfishyy/lookalike/internal/ui"
)

func runConfigure(cmd *cobra.Command, args []string) error {
	ui.ShowSection("Lookalike Configuration")

	if !ui.IsInteractive() {
		return fmt.Errorf("configure needs an interactive terminal, edit the config file directly instead")
	}

	ctx := cmd.Context()

	cfg, err := readConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg == nil {
		// first run
		ui.ShowInfo("No configuration found, starting setup")
		cfg = config.Default()
		if err := configureProvider(ctx, cfg); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		ui.ShowSuccess("Configuration saved")
	}

	for {
		options := []string{
			"Embedding Provider",
			"Add Collection",
			"Remove Collection",
			"S3 Storage",
			"View Current Configuration",
			"Exit",
		}

		selected, err := ui.ShowMenu("What would you like to configure?", options)
		if err != nil {
			return err
		}

		var changeErr error
		switch selected {
		case 0:
			changeErr = configureProvider(ctx, cfg)
		case 1:
			changeErr = addCollection(ctx, cfg)
		case 2:
			changeErr = removeCollection(cfg)
		case 3:
			changeErr = configureS3(ctx, cfg)
		case 4:
			viewConfiguration(cfg)
			continue
		case 5:
			ui.ShowInfo("Configuration menu closed")
			return nil
		}

		if changeErr != nil {
			ui.ShowError(fmt.Sprintf("Configuration failed: %v", changeErr))
			continue
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		ui.ShowSuccess("Configuration saved")
	}
}

func configureProvider(ctx context.Context, cfg *config.Config) error {
	provider, err := ui.PromptProvider()
	if err != nil {
		return err
	}

	switch config.Provider(provider) {
	case config.ProviderOllama:
		return setup.SetupOllama(ctx, cfg)
	case config.ProviderOpenAI:
		return setup.SetupOpenAI(ctx, cfg)
	case config.ProviderCLIP:
		return setup.SetupCLIP(ctx, cfg)
	}
	return fmt.Errorf("unknown provider %q", provider)
}

func addCollection(ctx context.Context, cfg *config.Config) error {
	name, err := ui.PromptInput("Collection name:", "")
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid collection name %q", name)
	}
	if _, ok := cfg.Collection(name); ok {
		return fmt.Errorf("collection %s already exists", name)
	}

	path, err := ui.PromptInput("Directory or s3://bucket/prefix:", "")
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)

	coll := config.CollectionConfig{Name: name, Path: path}
	if coll.IsS3() && cfg.S3.Endpoint == "" {
		if err := configureS3(ctx, cfg); err != nil {
			return err
		}
	}

	cfg.Collections = append(cfg.Collections, coll)
	if err := cfg.Validate(); err != nil {
		cfg.Collections = cfg.Collections[:len(cfg.Collections)-1]
		return err
	}

	if coll.IsS3() {
		if err := setup.TestS3(ctx, cfg); err != nil {
			cfg.Collections = cfg.Collections[:len(cfg.Collections)-1]
			return err
		}
		ui.ShowSuccess("Bucket reachable")
		return nil
	}

	dir, err := config.ExpandHome(path)
	if err != nil {
		return err
	}
	loaded, err := dataset.NewLoader(nil).LoadDir(name, dir)
	if loaded == nil {
		cfg.Collections = cfg.Collections[:len(cfg.Collections)-1]
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err != nil {
		ui.ShowWarning(fmt.Sprintf("Some files could not be read: %v", err))
	}
	ui.ShowSuccess(fmt.Sprintf("Found %d items in %s", loaded.Len(), path))
	return nil
}

func removeCollection(cfg *config.Config) error {
	if len(cfg.Collections) == 0 {
		ui.ShowInfo("No collections configured")
		return nil
	}

	options := make([]string, 0, len(cfg.Collections)+1)
	for _, c := range cfg.Collections {
		options = append(options, fmt.Sprintf("%s (%s)", c.Name, c.Path))
	}
	options = append(options, "Cancel")

	selected, err := ui.ShowMenu("Remove which collection?", options)
	if err != nil {
		return err
	}
	if selected == len(cfg.Collections) {
		return nil
	}

	removed := cfg.Collections[selected]
	cfg.Collections = append(cfg.Collections[:selected], cfg.Collections[selected+1:]...)
	ui.ShowInfo(fmt.Sprintf("Removed %s, its cached fingerprints are pruned on the next index", removed.Name))
	return nil
}

func configureS3(ctx context.Context, cfg *config.Config) error {
	ui.ShowSection("S3 Storage")

	endpoint, err := ui.PromptInput("Endpoint (host:port):", cfg.S3.Endpoint)
	if err != nil {
		return err
	}
	region, err := ui.PromptInput("Region (optional):", cfg.S3.Region)
	if err != nil {
		return err
	}

	useEnv, err := ui.PromptYesNo(fmt.Sprintf("Read credentials from %s and %s?", config.EnvS3AccessKey, config.EnvS3SecretKey), true)
	if err != nil {
		return err
	}

	s3 := cfg.S3
	s3.Endpoint = strings.TrimSpace(endpoint)
	s3.Region = strings.TrimSpace(region)
	if useEnv {
		s3.AccessKey, s3.SecretKey = "", ""
	} else {
		if s3.AccessKey, err = ui.PromptInput("Access key:", cfg.S3.AccessKey); err != nil {
			return err
		}
		if s3.SecretKey, err = ui.PromptPassword("Secret key:"); err != nil {
			return err
		}
	}

	secure, err := ui.PromptYesNo("Use TLS?", !cfg.S3.Insecure)
	if err != nil {
		return err
	}
	s3.Insecure = !secure

	prev := cfg.S3
	cfg.S3 = s3
	if err := setup.TestS3(ctx, cfg); err != nil {
		cfg.S3 = prev
		return err
	}
	return nil
}

func viewConfiguration(cfg *config.Config) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	fmt.Println()
	if path, err := config.GetConfigPath(); err == nil && configPath == "" {
		gray.Printf("%s\n\n", path)
	} else if configPath != "" {
		gray.Printf("%s\n\n", configPath)
	}

	cyan.Println("Embeddings:")
	emb := cfg.Embedding()
	fmt.Printf("  Provider: %s\n", cfg.Provider)
	switch cfg.Provider {
	case config.ProviderOllama:
		fmt.Printf("  Model: %s at %s\n", cfg.Ollama.Model, cfg.Ollama.URL)
	case config.ProviderOpenAI:
		fmt.Printf("  Model: %s\n", cfg.OpenAI.Model)
		if cfg.OpenAI.UseEnv {
			fmt.Printf("  API key: from %s\n", config.EnvOpenAIKey)
		} else {
			fmt.Println("  API key: stored in config")
		}
	case config.ProviderCLIP:
		fmt.Printf("  Model: %s at %s\n", cfg.CLIP.Model, cfg.CLIP.URL)
	}
	if emb.Dimensions > 0 {
		fmt.Printf("  Dimensions: %d\n", emb.Dimensions)
	}
	fmt.Printf("  Fingerprint: %d bits, seed %d\n", cfg.Hashing.Bits, cfg.Hashing.Seed)

	fmt.Println()
	cyan.Println("Explorer:")
	fmt.Printf("  Top k: %d\n", cfg.Explorer.TopK)
	fmt.Printf("  Concurrency: %d\n", cfg.Explorer.Concurrency)
	if cfg.Explorer.RateLimit > 0 {
		fmt.Printf("  Rate limit: %.1f calls/s (burst %d)\n", cfg.Explorer.RateLimit, cfg.Explorer.Burst)
	}

	fmt.Println()
	cyan.Println("Collections:")
	if len(cfg.Collections) == 0 {
		fmt.Println("  none")
	}
	for _, c := range cfg.Collections {
		fmt.Printf("  %s: %s\n", c.Name, c.Path)
	}
	if cfg.S3.Endpoint != "" {
		fmt.Printf("  S3 endpoint: %s\n", cfg.S3.Endpoint)
	}

	if cache, err := cfg.CacheFile(); err == nil {
		fmt.Println()
		gray.Printf("Cache: %s\n", cache)
	}
	fmt.Println()
}
