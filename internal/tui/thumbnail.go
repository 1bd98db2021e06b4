package tui

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/image-scraper/internal/model"
)

// renderThumbnail draws t with upper half blocks, two pixel rows per
// terminal line, at most cols cells wide. It returns "" when the thumbnail
// cannot be decoded.
func renderThumbnail(t *model.Thumbnail, cols int) string {
	if t == nil || cols <= 0 {
		return ""
	}
	img, err := png.Decode(bytes.NewReader(t.Data))
	if err != nil {
		return ""
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}
	w := min(cols, b.Dx())
	// Even number of pixel rows, two per line.
	h := max(1, b.Dy()*w/b.Dx())
	if h%2 == 1 {
		h++
	}

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := sample(img, x, y, w, h)
			bottom := sample(img, x, y+1, w, h)
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
		if y+2 < h {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// sample returns the hex colour of the source pixel under cell (x, y) of a
// w by h grid.
func sample(img image.Image, x, y, w, h int) string {
	b := img.Bounds()
	sx := b.Min.X + x*b.Dx()/w
	sy := b.Min.Y + min(y, h-1)*b.Dy()/h
	r, g, bl, _ := img.At(sx, sy).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, bl>>8)
}
