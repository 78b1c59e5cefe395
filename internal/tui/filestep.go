package tui

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/identity-vault/idvault/internal/crop"
)

type stepKind int

const (
	stepDocument stepKind = iota
	stepSelfie
)

// fileLoadedMsg carries the result of reading + decoding an image file.
// sid ties the result to the session that requested it; stale results for a
// restarted session are dropped by the root model.
type fileLoadedMsg struct {
	sid  uuid.UUID
	kind stepKind
	path string
	data []byte
	img  image.Image
	err  error
}

// fileStepModel is the shared "pick an image file" step used for both the
// document and the selfie. The user types a path; load failures (missing
// file, undecodable image) are surfaced inline rather than ignored.
type fileStepModel struct {
	kind    stepKind
	sid     uuid.UUID
	path    string
	loading bool

	fileName string
	img      image.Image
	preview  string
	errMsg   string

	width  int
	height int
}

func newFileStepModel(kind stepKind) fileStepModel {
	return fileStepModel{kind: kind}
}

func (m fileStepModel) Update(msg tea.Msg) (fileStepModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.img != nil {
			m.preview = renderImage(m.img, m.previewCols(), m.previewRows())
		}
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			path := strings.TrimSpace(m.path)
			if path == "" {
				return m, nil
			}
			m.loading = true
			m.errMsg = ""
			return m, loadFileCmd(m.sid, m.kind, path)
		default:
			m.path = editRune(m.path, msg.String())
			return m, nil
		}
	}
	return m, nil
}

// setLoaded records a successfully decoded image and clears the input for
// the next pick (the selfie step allows retakes).
func (m *fileStepModel) setLoaded(path string, img image.Image) {
	m.loading = false
	m.fileName = filepath.Base(path)
	m.img = img
	m.preview = renderImage(img, m.previewCols(), m.previewRows())
	m.errMsg = ""
	m.path = ""
}

func (m *fileStepModel) setError(err error) {
	m.loading = false
	m.errMsg = err.Error()
}

func (m fileStepModel) previewCols() int {
	cols := m.width - 8
	if cols > 48 {
		cols = 48
	}
	if cols < 10 {
		cols = 10
	}
	return cols
}

func (m fileStepModel) previewRows() int {
	rows := m.height - 10
	if rows > 12 {
		rows = 12
	}
	if rows < 4 {
		rows = 4
	}
	return rows
}

func (m fileStepModel) title() (string, string) {
	if m.kind == stepDocument {
		return "Upload Identity Card", "Provide a clear image of your passport or driver's license."
	}
	return "Live Verification", "Provide a clear selfie to prove you own the ID document."
}

func (m fileStepModel) View() string {
	title, desc := m.title()

	var sb strings.Builder
	sb.WriteString(selectedStyle.Render(title) + "\n")
	sb.WriteString(dimStyle.Render(desc) + "\n\n")

	if m.preview != "" {
		sb.WriteString(m.preview + "\n")
		sb.WriteString(metaStyle.Render(m.fileName) + "\n\n")
	}

	prompt := inputPromptStyle.Render("path> ")
	if m.path == "" {
		placeholder := "/path/to/document.jpg"
		if m.kind == stepSelfie {
			placeholder = "/path/to/selfie.jpg"
		}
		sb.WriteString(prompt + inputPlaceholderStyle.Render(placeholder))
	} else {
		sb.WriteString(prompt + inputTextStyle.Render(m.path))
	}
	sb.WriteString("\n")

	if m.loading {
		sb.WriteString("\n" + dimStyle.Render("loading..."))
	}
	if m.errMsg != "" {
		sb.WriteString("\n" + errBannerStyle.Render(truncStr(m.errMsg, max(m.width-6, 20))))
	}

	return card(sb.String(), m.width)
}

// loadFileCmd reads and decodes an image file off the UI loop.
func loadFileCmd(sid uuid.UUID, kind stepKind, path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return fileLoadedMsg{sid: sid, kind: kind, path: path, err: err}
		}
		img, err := crop.Decode(data)
		if err != nil {
			return fileLoadedMsg{sid: sid, kind: kind, path: path, err: err}
		}
		return fileLoadedMsg{sid: sid, kind: kind, path: path, data: data, img: img}
	}
}

// card wraps step content in the shared bordered surface.
func card(content string, width int) string {
	cardWidth := min(64, width-4)
	if cardWidth < 30 {
		cardWidth = 30
	}
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Background(surfaceColor).
		Padding(1, 2).
		Width(cardWidth)
	return border.Render(content)
}
