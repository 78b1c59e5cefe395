package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
)

// renderImage draws an image into the terminal as half-block cells, two
// pixels per character row. The result fits within maxCols x maxRows cells
// preserving aspect ratio. Renders are cached by the step models; this is
// too slow to run per frame.
func renderImage(img image.Image, maxCols, maxRows int) string {
	if img == nil || maxCols < 1 || maxRows < 1 {
		return ""
	}
	fitted := imaging.Fit(img, maxCols, maxRows*2, imaging.Box)
	b := fitted.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return ""
	}

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := hexAt(fitted, x, y)
			cell := lipgloss.NewStyle().Foreground(lipgloss.Color(top))
			if y+1 < h {
				cell = cell.Background(lipgloss.Color(hexAt(fitted, x, y+1)))
			}
			sb.WriteString(cell.Render("▀"))
		}
		if y+2 < h {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderImageRound is renderImage with pixels outside the inscribed circle
// dimmed, approximating the circular mask of the crop overlay. The mask is
// presentation only; the rasterized artifact stays rectangular.
func renderImageRound(img image.Image, maxCols, maxRows int) string {
	if img == nil || maxCols < 1 || maxRows < 1 {
		return ""
	}
	fitted := imaging.Fit(img, maxCols, maxRows*2, imaging.Box)
	b := fitted.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return ""
	}

	// Cell aspect: one character cell is ~2x taller than wide, and each
	// cell holds two pixel rows, so pixel space is near-square already.
	cx, cy := float64(w)/2, float64(h)/2
	radius := minf(cx, cy)
	inCircle := func(x, y int) bool {
		dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
		return dx*dx+dy*dy <= radius*radius
	}

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := maskedHexAt(fitted, x, y, inCircle(x, y))
			cell := lipgloss.NewStyle().Foreground(lipgloss.Color(top))
			if y+1 < h {
				cell = cell.Background(lipgloss.Color(maskedHexAt(fitted, x, y+1, inCircle(x, y+1))))
			}
			sb.WriteString(cell.Render("▀"))
		}
		if y+2 < h {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func maskedHexAt(img image.Image, x, y int, inside bool) string {
	b := img.Bounds()
	r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
	r8, g8, b8 := r>>8, g>>8, bl>>8
	if !inside {
		r8, g8, b8 = r8/4, g8/4, b8/4
	}
	return fmt.Sprintf("#%02x%02x%02x", r8, g8, b8)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func hexAt(img image.Image, x, y int) string {
	b := img.Bounds()
	r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, bl>>8)
}
