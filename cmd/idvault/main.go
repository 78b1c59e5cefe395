package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/identity-vault/idvault/internal/logging"
	"github.com/identity-vault/idvault/internal/session"
	"github.com/identity-vault/idvault/internal/tui"
	"github.com/identity-vault/idvault/pkg/kyc"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	apiURL := os.Getenv("IDVAULT_API_URL")
	if apiURL == "" {
		apiURL = "https://api.identity-vault.dev"
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "version", "-v":
			fmt.Println("idvault " + version)
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	// Debug log is opt-in; the TUI owns the terminal, so the log goes to a
	// file (IDVAULT_LOG=/path/to/idvault.log) or nowhere.
	logger, err := logging.NewLogger(os.Getenv("IDVAULT_LOG"))
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctrl := session.NewController(kyc.New(apiURL), logger)
	app := tui.NewApp(ctrl, version)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
