package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Open shows a file or URL in the platform's default viewer
func Open(ctx context.Context, target string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	name, args := openCommand(runtime.GOOS, target)
	logger.Debug("opening match", "command", name, "args", args)

	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			logger.Debug("viewer failed", "exit_code", exitError.ExitCode())
		}
		return fmt.Errorf("failed to open %s: %w", target, err)
	}

	return nil
}

// openCommand returns the viewer command for the given OS
func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		// start is a cmd.exe builtin; the empty string is the window title
		return "cmd", []string{"/C", "start", "", target}
	default:
		return "xdg-open", []string{target}
	}
}
