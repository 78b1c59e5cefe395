package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the IDVAULT wordmark.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders the spaced "I D V A U L T" wordmark with a pulse
// of light sweeping across it, blending each letter between night indigo
// (#282c5a) and periwinkle (#818cf8).
func renderShimmerLogo(frame int) string {
	const text = "IDVAULT"
	n := len(text)
	t := float64(frame)

	var out strings.Builder
	for i := 0; i < n; i++ {
		out.WriteString(letterStyle(shimmerLevel(t, float64(i)/float64(n-1))).Render(string(text[i])))
		if i < n-1 {
			out.WriteString("  ")
		}
	}
	return out.String()
}

// shimmerLevel computes the brightness of a letter at normalized position x
// for animation time t, in [0.06, 1].
func shimmerLevel(t, x float64) float64 {
	// Sweep phase, with a slow wander so the pulse doesn't loop visibly.
	phase := t*0.12 - x*2.6 + math.Sin(t*0.021)*1.7

	b := math.Sin(phase)*0.5 + 0.5
	// Narrow the bright band, then sit it on a breathing baseline.
	b = math.Pow(b, 1.4)
	b = b*0.72 + math.Sin(t*0.031)*0.1 + 0.2

	return math.Min(1.0, math.Max(0.06, b))
}

func letterStyle(b float64) lipgloss.Style {
	// Lerp 0x28,0x2c,0x5a -> 0x81,0x8c,0xf8.
	r := clampByte(40 + b*(129-40))
	g := clampByte(44 + b*(140-44))
	bl := clampByte(90 + b*(248-90))
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	// Base styles — idvault neutral palette
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Accent — the indigo the whole flow is branded with
	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6366f1")).
			Bold(true)

	// Outcome styles
	matchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474")).
			Bold(true)

	mismatchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060")).
			Bold(true)

	errBannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	similarityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474"))

	fieldLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec"))

	// Input
	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6366f1")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	inputTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	// Stepper
	stepDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474")).
			Bold(true)

	stepActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#818cf8")).
			Bold(true)

	stepIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#404858"))

	// Surface colors
	borderColor  = lipgloss.Color("#1e1e2a")
	surfaceColor = lipgloss.Color("#111118")
)

// spinnerFrames is the in-flight indicator for uploads and verification.
var spinnerFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func spinnerFrame(frame int) string {
	return accentStyle.Render(spinnerFrames[(frame/2)%len(spinnerFrames)])
}
