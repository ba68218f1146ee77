package ui

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// IsInteractive reports whether stdin and stdout are both terminals
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// DisableColorUnlessTerminal turns colored output off when stdout is not a
// terminal, e.g. when piping results into another tool
func DisableColorUnlessTerminal() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

// PromptProvider asks which embedding provider to use
func PromptProvider() (string, error) {
	options := []string{
		"ollama - local text embeddings (free, private)",
		"openai - hosted text embeddings (API key required)",
		"clip   - local CLIP server (images and text)",
	}
	values := []string{"ollama", "openai", "clip"}

	selected, err := ShowMenu("Select an embedding provider:", options)
	if err != nil {
		return "", err
	}
	return values[selected], nil
}

// PromptAPIKeyStorage asks whether to read the API key from the environment.
// It returns true for the environment, false to store it in the config file.
func PromptAPIKeyStorage() (bool, error) {
	selected, err := ShowMenu("How do you want to provide the OpenAI API key?", []string{
		"Environment variable (OPENAI_API_KEY)",
		"Save in config file",
	})
	if err != nil {
		return false, err
	}
	return selected == 0, nil
}

// ShowMenu shows a list of options and returns the index of the chosen one
func ShowMenu(message string, options []string) (int, error) {
	var selected int
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return 0, err
	}

	return selected, nil
}

// PromptYesNo asks a yes/no question
func PromptYesNo(message string, defaultValue bool) (bool, error) {
	answer := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}

	if err := survey.AskOne(prompt, &answer); err != nil {
		return false, err
	}

	return answer, nil
}

// PromptInput asks for a line of text
func PromptInput(message, defaultValue string) (string, error) {
	var value string
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}

	if err := survey.AskOne(prompt, &value, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}

	return value, nil
}

// PromptPassword asks for a secret without echoing it
func PromptPassword(message string) (string, error) {
	var value string
	prompt := &survey.Password{
		Message: message,
	}

	if err := survey.AskOne(prompt, &value, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}

	return value, nil
}

// ShowSection prints a section heading
func ShowSection(title string) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Printf("\n== %s ==\n", title)
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	green := color.New(color.FgGreen, color.Bold)
	green.Printf("✓ %s\n", message)
}

// ShowError displays an error message
func ShowError(message string) {
	red := color.New(color.FgRed, color.Bold)
	red.Printf("✗ %s\n", message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	yellow := color.New(color.FgYellow)
	yellow.Printf("! %s\n", message)
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	blue := color.New(color.FgBlue)
	blue.Println(message)
}

// Row is one line of ShowMatches output
type Row struct {
	Rank       int
	Distance   int
	Bits       int
	Collection string
	ItemID     string
	Detail     string // media path or caption
}

// ShowMatches prints query results, nearest first
func ShowMatches(rows []Row) {
	if len(rows) == 0 {
		ShowInfo("No matches")
		return
	}

	gray := color.New(color.FgHiBlack)
	bold := color.New(color.Bold)

	for _, r := range rows {
		fmt.Printf("%3d. ", r.Rank+1)
		distanceColor(r.Distance, r.Bits).Printf("%4d ", r.Distance)
		bold.Printf("%s/%s", r.Collection, r.ItemID)
		if r.Detail != "" {
			gray.Printf("  %s", r.Detail)
		}
		fmt.Println()
	}
}

// distanceColor is green for close matches and red for distant ones,
// relative to the fingerprint width
func distanceColor(distance, bits int) *color.Color {
	if bits <= 0 {
		return color.New(color.Reset)
	}
	switch ratio := float64(distance) / float64(bits); {
	case ratio <= 0.1:
		return color.New(color.FgGreen)
	case ratio <= 0.3:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
