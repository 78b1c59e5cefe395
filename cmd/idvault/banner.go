package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func printHelp() {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#818cf8")).
		Bold(true).
		Render("I D V A U L T")

	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render("Biometric identity verification from your terminal.")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commands := []struct{ cmd, desc string }{
		{"idvault", "Start the verification wizard (interactive TUI)"},
		{"idvault --version", "Show version"},
		{"idvault help", "You are here"},
	}

	fmt.Printf("\n  %s\n\n  %s\n\n  Commands:\n", title, tagline)
	for _, c := range commands {
		fmt.Printf("    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}

	env := descStyle.Render("IDVAULT_API_URL  verification service base URL\n    IDVAULT_LOG      debug log file (off when unset)")
	fmt.Printf("\n  Environment:\n    %s\n\n", env)
}
