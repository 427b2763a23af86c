package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ezchuang/focuspopup/internal/core"
)

// ImageStatus tracks the image block of the dialog.
type ImageStatus int

const (
	ImageNone ImageStatus = iota
	ImagePending
	ImageReady
	ImageFailed
)

const (
	closeIcon   = "✕"
	headingIcon = "⛔"
	dismissText = "Dismiss"
	imageFailed = "[image unavailable]"
)

// DialogView is everything RenderDialog needs for one frame.
type DialogView struct {
	Notification *core.NotificationData
	Quote        string
	Image        ImageStatus
	Thumbnail    string
	Spinner      string
	Countdown    string
	Help         string
	// Fade is 0 while open and rises towards 1 during the exit animation.
	Fade float64
}

var (
	accent = lipgloss.AdaptiveColor{Light: "#C2185B", Dark: "#F06292"}
	dim    = lipgloss.AdaptiveColor{Light: "#9E9E9E", Dark: "#5C5C5C"}
	text   = lipgloss.AdaptiveColor{Light: "#212121", Dark: "#EEEEEE"}

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	bodyStyle   = lipgloss.NewStyle().Foreground(text)
	closeStyle  = lipgloss.NewStyle().Bold(true)
	quoteStyle  = lipgloss.NewStyle().Italic(true).
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(accent).
			PaddingLeft(1)
	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 2)
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// RenderDialog draws the popup at the given outer width. It returns "" when
// there is nothing to show.
func RenderDialog(v DialogView, width int) string {
	n := v.Notification
	if n == nil {
		return ""
	}

	frame := dialogStyle
	if v.Fade > 0 {
		frame = frame.BorderForeground(dim).Faint(true)
	}
	inner := width - frame.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}
	block := lipgloss.NewStyle().Width(inner)

	var parts []string

	parts = append(parts, block.Align(lipgloss.Right).Render(closeStyle.Render(closeIcon)))

	if n.HasImage() {
		var img string
		switch v.Image {
		case ImageReady:
			img = v.Thumbnail
		case ImageFailed:
			img = faintStyle.Render(imageFailed)
		default:
			img = v.Spinner + " loading image"
		}
		if img != "" {
			parts = append(parts, block.Align(lipgloss.Center).Render(img), "")
		}
	}

	parts = append(parts,
		block.Render(titleStyle.Render(headingIcon+" "+n.Title)),
		"",
		block.Render(bodyStyle.Render(n.RenderedBody())),
	)

	if v.Quote != "" {
		parts = append(parts, "", quoteStyle.Width(inner-1).Render(v.Quote))
	}

	parts = append(parts, "", block.Align(lipgloss.Right).Render(buttonStyle.Render(dismissText)))

	if v.Countdown != "" {
		parts = append(parts, v.Countdown)
	}
	if v.Help != "" {
		parts = append(parts, faintStyle.Render(v.Help))
	}

	return frame.Render(strings.Join(parts, "\n"))
}
