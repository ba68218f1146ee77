// Package setup walks the user through getting an embedding provider
// running and checks that it answers.
package setup

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/iishyfishyy/lookalike/internal/config"
	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/embeddings"
	"github.com/iishyfishyy/lookalike/internal/ui"
)

const defaultOllamaURL = "http://localhost:11434"

// SetupOllama handles the complete Ollama setup flow
func SetupOllama(ctx context.Context, cfg *config.Config) error {
	ui.ShowSection("Ollama Setup")

	baseURL := cfg.Ollama.URL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	// Check if Ollama is installed
	if !IsOllamaInstalled() {
		ui.ShowInfo("Ollama not found")

		install, err := ui.PromptYesNo("Install Ollama now?", true)
		if err != nil {
			return err
		}

		if !install {
			return fmt.Errorf("ollama installation declined - required for local embeddings")
		}

		ui.ShowInfo("Installing Ollama...")
		if err := InstallOllama(); err != nil {
			return fmt.Errorf("failed to install Ollama: %w", err)
		}

		ui.ShowSuccess("Ollama installed successfully")
	} else {
		ui.ShowSuccess("Ollama is already installed")
	}

	// Check if Ollama is running
	if !IsOllamaRunning(baseURL) {
		ui.ShowInfo("Starting Ollama service...")
		if err := StartOllama(); err != nil {
			return fmt.Errorf("failed to start Ollama: %w", err)
		}
		// Give it a moment to start
		time.Sleep(2 * time.Second)
	}

	model := cfg.Ollama.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	ui.ShowInfo(fmt.Sprintf("Downloading embedding model (%s)...", model))
	ui.ShowInfo("This may take a few minutes...")

	if err := PullOllamaModel(model); err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	ui.ShowSuccess("Model downloaded successfully")

	cfg.Provider = config.ProviderOllama
	cfg.Ollama.URL = baseURL
	cfg.Ollama.Model = model

	ui.ShowInfo("Testing Ollama...")
	if err := TestProvider(ctx, cfg); err != nil {
		return fmt.Errorf("ollama test failed: %w", err)
	}

	ui.ShowSuccess("Ollama setup complete!")
	return nil
}

// SetupOpenAI handles OpenAI setup flow
func SetupOpenAI(ctx context.Context, cfg *config.Config) error {
	ui.ShowSection("OpenAI Setup")

	// Ask how to provide API key
	useEnv, err := ui.PromptAPIKeyStorage()
	if err != nil {
		return err
	}

	var apiKey string

	if useEnv {
		apiKey = os.Getenv(config.EnvOpenAIKey)
		if apiKey == "" {
			ui.ShowWarning("OPENAI_API_KEY environment variable not set")
			ui.ShowInfo("")
			ui.ShowInfo("Please set it in your shell or a .env file:")
			ui.ShowInfo("  export OPENAI_API_KEY=sk-...")
			ui.ShowInfo("")

			return fmt.Errorf("OPENAI_API_KEY not set")
		}
	} else {
		apiKey, err = ui.PromptPassword("Enter OpenAI API key:")
		if err != nil {
			return err
		}

		ui.ShowWarning("API key will be saved to ~/.lookalike/config.yaml (0600 perms)")
	}

	cfg.Provider = config.ProviderOpenAI
	cfg.OpenAI.APIKey = apiKey
	cfg.OpenAI.UseEnv = useEnv

	ui.ShowInfo("Testing OpenAI connection...")
	if err := TestProvider(ctx, cfg); err != nil {
		return fmt.Errorf("openAI test failed: %w", err)
	}

	ui.ShowSuccess("OpenAI configured successfully!")
	ui.ShowInfo("Model: " + orDefault(cfg.OpenAI.Model, "text-embedding-3-small"))

	return nil
}

// SetupCLIP handles CLIP server setup flow
func SetupCLIP(ctx context.Context, cfg *config.Config) error {
	ui.ShowSection("CLIP Server Setup")

	ui.ShowInfo("A CLIP server embeds images and text into the same space,")
	ui.ShowInfo("so text queries can find images.")

	url, err := ui.PromptInput("CLIP server URL:", orDefault(cfg.CLIP.URL, "http://localhost:51000"))
	if err != nil {
		return err
	}

	cfg.Provider = config.ProviderCLIP
	cfg.CLIP.URL = url

	ui.ShowInfo("Testing CLIP server...")
	if err := TestProvider(ctx, cfg); err != nil {
		return fmt.Errorf("clip test failed: %w", err)
	}

	ui.ShowSuccess("CLIP server configured successfully!")
	return nil
}

// IsOllamaInstalled checks if Ollama is installed
func IsOllamaInstalled() bool {
	_, err := exec.LookPath("ollama")
	return err == nil
}

// IsOllamaRunning checks if the Ollama service answers at baseURL
func IsOllamaRunning(baseURL string) bool {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/api/tags")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// InstallOllama installs Ollama based on the operating system
func InstallOllama() error {
	switch runtime.GOOS {
	case "darwin":
		// macOS - use Homebrew
		return exec.Command("brew", "install", "ollama").Run()

	case "linux":
		// Linux - use install script
		script := "curl -fsSL https://ollama.com/install.sh | sh"
		cmd := exec.Command("sh", "-c", script)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()

	default:
		return fmt.Errorf("automatic installation not supported on %s - please install manually from https://ollama.com", runtime.GOOS)
	}
}

// StartOllama starts the Ollama service
func StartOllama() error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("brew", "services", "start", "ollama").Run()

	case "linux":
		// systemd first, then a plain background process
		if err := exec.Command("systemctl", "start", "ollama").Run(); err != nil {
			return exec.Command("ollama", "serve").Start()
		}
		return nil

	default:
		return fmt.Errorf("automatic start not supported on %s", runtime.GOOS)
	}
}

// PullOllamaModel pulls an embedding model
func PullOllamaModel(model string) error {
	cmd := exec.Command("ollama", "pull", model)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// TestProvider embeds a short text with the configured provider and checks
// the vector has the expected dimension
func TestProvider(ctx context.Context, cfg *config.Config) error {
	text, _, err := embeddings.NewModel(cfg.Embedding())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	vec, err := text.Embed(ctx, "test")
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	if len(vec) != text.Dimensions() {
		return fmt.Errorf("%s returned %d dimensions, expected %d (set dimensions in config)",
			text.Name(), len(vec), text.Dimensions())
	}

	return nil
}

// TestS3 checks that the bucket of every S3 collection is reachable
func TestS3(ctx context.Context, cfg *config.Config) error {
	var buckets []string
	for _, coll := range cfg.Collections {
		if bucket, _, ok := dataset.ParseS3URL(coll.Path); ok {
			buckets = append(buckets, bucket)
		}
	}
	if len(buckets) == 0 {
		return nil
	}

	client, err := dataset.NewS3Client(cfg.S3Options())
	if err != nil {
		return err
	}

	for _, bucket := range buckets {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to reach bucket %s: %w", bucket, err)
		}
		if !exists {
			return fmt.Errorf("bucket %s does not exist", bucket)
		}
	}

	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
