package media

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

const halfBlock = "▀"

// Fit returns the largest size with img's aspect ratio that fits in
// maxW columns by maxH rows, where each row holds two pixels.
func Fit(bounds image.Rectangle, maxW, maxH int) (int, int) {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	maxPxH := maxH * 2

	outW, outH := maxW, h*maxW/w
	if outH > maxPxH {
		outW, outH = w*maxPxH/h, maxPxH
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 2 {
		outH = 2
	}
	// keep whole cells
	outH += outH % 2
	return outW, outH
}

// Thumbnail renders img as coloured half-block cells no wider than maxW
// columns and no taller than maxH rows.
func Thumbnail(img image.Image, maxW, maxH int) string {
	if img == nil {
		return ""
	}
	w, h := Fit(img.Bounds(), maxW, maxH)
	if w == 0 {
		return ""
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			sb.WriteString(lipgloss.NewStyle().
				Foreground(hex(dst.At(x, y))).
				Background(hex(dst.At(x, y+1))).
				Render(halfBlock))
		}
	}
	return sb.String()
}

func hex(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}
