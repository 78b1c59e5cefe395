package tui

import (
	"fmt"
	"image"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/disintegration/imaging"

	"github.com/identity-vault/idvault/internal/crop"
)

// cropResultMsg carries the rasterized face artifact out of the cropper
// modal. Exactly one of cropResultMsg or a cancellation fires per invocation.
type cropResultMsg struct {
	face []byte
	err  error
}

const (
	zoomStep = 0.1
	// Pan step as a fraction of the current window side.
	panFraction = 0.125
)

// cropperModel is the modal face-extraction sub-task. It owns the transient
// pan/zoom selection and hands back exactly one artifact on confirm, or
// nothing on cancel; the host tears it down either way.
type cropperModel struct {
	img       image.Image
	sel       crop.Selection
	cancelled bool
	confirmed bool
	preview   string

	width  int
	height int
}

func newCropperModel(img image.Image, width, height int) (cropperModel, error) {
	b := img.Bounds()
	sel, err := crop.NewSelection(b.Dx(), b.Dy())
	if err != nil {
		return cropperModel{}, err
	}
	m := cropperModel{img: img, sel: sel, width: width, height: height}
	m.refreshPreview()
	return m, nil
}

func (m *cropperModel) refreshPreview() {
	window := imaging.Crop(m.img, m.sel.Rect())
	m.preview = renderImageRound(window, m.previewCols(), m.previewRows())
}

func (m cropperModel) previewCols() int {
	cols := m.width - 10
	if cols > 40 {
		cols = 40
	}
	if cols < 10 {
		cols = 10
	}
	return cols
}

func (m cropperModel) previewRows() int {
	rows := m.height - 12
	if rows > 16 {
		rows = 16
	}
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (m cropperModel) panStep() float64 {
	return float64(m.sel.Rect().Dx()) * panFraction
}

func (m cropperModel) Update(msg tea.Msg) (cropperModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refreshPreview()
		return m, nil

	case tea.KeyMsg:
		if m.confirmed {
			return m, nil
		}
		switch msg.String() {
		case "esc", "q":
			m.cancelled = true
			return m, nil
		case "enter":
			if !m.sel.Valid() {
				return m, nil
			}
			m.confirmed = true
			img, sel := m.img, m.sel
			return m, func() tea.Msg {
				face, err := crop.Rasterize(img, sel)
				return cropResultMsg{face: face, err: err}
			}
		case "+", "=":
			m.sel.AdjustZoom(zoomStep)
			m.refreshPreview()
		case "-", "_":
			m.sel.AdjustZoom(-zoomStep)
			m.refreshPreview()
		case "left", "h":
			m.sel.Pan(-m.panStep(), 0)
			m.refreshPreview()
		case "right", "l":
			m.sel.Pan(m.panStep(), 0)
			m.refreshPreview()
		case "up", "k":
			m.sel.Pan(0, -m.panStep())
			m.refreshPreview()
		case "down", "j":
			m.sel.Pan(0, m.panStep())
			m.refreshPreview()
		}
		return m, nil
	}
	return m, nil
}

func (m cropperModel) View() string {
	var sb strings.Builder
	sb.WriteString(selectedStyle.Render("Extract Face") + "\n")
	sb.WriteString(dimStyle.Render("Frame the face on the document. The mask is a guide; the saved crop is square.") + "\n\n")

	sb.WriteString(m.preview + "\n\n")

	r := m.sel.Rect()
	zoomPct := fmt.Sprintf("%d%%", int(m.sel.Zoom()*100+0.5))
	sb.WriteString(metaStyle.Render("ZOOM ") + accentStyle.Render(zoomPct) +
		metaStyle.Render(fmt.Sprintf("   %dx%d @ %d,%d", r.Dx(), r.Dy(), r.Min.X, r.Min.Y)))
	sb.WriteString("\n\n")

	if m.confirmed {
		sb.WriteString(dimStyle.Render("extracting..."))
	} else {
		sb.WriteString(helpEntry("←↓↑→", "pan") + "  " + helpEntry("+/-", "zoom") + "  " +
			helpEntry("enter", "confirm") + "  " + helpEntry("esc", "cancel"))
	}

	return card(sb.String(), m.width)
}
