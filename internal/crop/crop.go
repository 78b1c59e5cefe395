// Package crop implements the face-crop selection geometry and rasterizer.
//
// A Selection is a square window over a source image, positioned by pan and
// sized by zoom. Rasterize cuts exactly that window at native resolution and
// encodes it as JPEG. The circular mask shown while cropping is display-only;
// the artifact is always the full rectangle.
package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// MinZoom and MaxZoom bound the crop window scale relative to the
	// fitted image.
	MinZoom = 1.0
	MaxZoom = 3.0

	jpegQuality = 90
)

// ErrEmptySource means the source image has no pixels to select from.
var ErrEmptySource = errors.New("source image is empty")

// ErrEmptySelection means the selection resolves to a zero-size rectangle.
var ErrEmptySelection = errors.New("selection rectangle is empty")

// Selection is a square crop window over a source image. The zero value is
// not usable; construct with NewSelection.
type Selection struct {
	srcW, srcH int
	zoom       float64
	// Window-center offset from the source center, in source pixels.
	offX, offY float64
}

// NewSelection returns the default selection for a source of the given
// dimensions: the largest centered square at 1x zoom.
func NewSelection(srcW, srcH int) (Selection, error) {
	if srcW <= 0 || srcH <= 0 {
		return Selection{}, ErrEmptySource
	}
	return Selection{srcW: srcW, srcH: srcH, zoom: MinZoom}, nil
}

// Zoom returns the current zoom factor.
func (s Selection) Zoom() float64 { return s.zoom }

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom]. The pan
// offset is re-clamped so the window stays inside the source.
func (s *Selection) SetZoom(z float64) {
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	s.zoom = z
	s.clampOffsets()
}

// AdjustZoom changes the zoom factor by delta, clamped.
func (s *Selection) AdjustZoom(delta float64) {
	s.SetZoom(s.zoom + delta)
}

// Pan moves the window center by (dx, dy) source pixels, clamped so the
// window stays fully inside the source.
func (s *Selection) Pan(dx, dy float64) {
	s.offX += dx
	s.offY += dy
	s.clampOffsets()
}

// side is the window edge length in source pixels for the current zoom.
func (s Selection) side() int {
	side := int(math.Floor(float64(min(s.srcW, s.srcH)) / s.zoom))
	if side < 1 {
		side = 1
	}
	return side
}

func (s *Selection) clampOffsets() {
	side := float64(s.side())
	maxX := (float64(s.srcW) - side) / 2
	maxY := (float64(s.srcH) - side) / 2
	s.offX = clampf(s.offX, -maxX, maxX)
	s.offY = clampf(s.offY, -maxY, maxY)
}

// Rect resolves the selection to a pixel rectangle in source coordinates.
// The rectangle is non-empty and fully inside the source bounds for any
// selection produced through NewSelection and the mutators.
func (s Selection) Rect() image.Rectangle {
	side := s.side()
	cx := float64(s.srcW)/2 + s.offX
	cy := float64(s.srcH)/2 + s.offY
	x0 := int(math.Round(cx - float64(side)/2))
	y0 := int(math.Round(cy - float64(side)/2))
	x0 = clampi(x0, 0, s.srcW-side)
	y0 = clampi(y0, 0, s.srcH-side)
	return image.Rect(x0, y0, x0+side, y0+side)
}

// Valid reports whether the selection resolves to a usable rectangle.
func (s Selection) Valid() bool {
	r := s.Rect()
	return r.Dx() > 0 && r.Dy() > 0
}

// Rasterize cuts the selection rectangle out of img at native resolution and
// encodes it as JPEG. Identical selections over the same source produce
// identical bytes.
func Rasterize(img image.Image, sel Selection) ([]byte, error) {
	r := sel.Rect()
	if r.Empty() {
		return nil, ErrEmptySelection
	}
	face := imaging.Crop(img, r)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, face, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("crop.Rasterize: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses raw image bytes into a decoded image, surfacing decode
// failures explicitly instead of silently producing nothing.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("crop.Decode: %w", err)
	}
	return img, nil
}

func clampf(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampi(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
