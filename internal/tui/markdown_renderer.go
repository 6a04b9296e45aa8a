package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minMarkdownWidth keeps narrow terminals from collapsing the info panel.
const minMarkdownWidth = 24

// markdownRenderer renders card descriptions and rebuilds the glamour renderer when the wrap width changes.
// It is shared by pointer so copies of the model reuse one renderer.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer(style string) *markdownRenderer {
	style = strings.TrimSpace(style)
	if style == "" {
		style = "dark"
	}
	return &markdownRenderer{style: style}
}

// render returns ANSI-styled text, or the trimmed source when glamour fails.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	if r == nil {
		return markdown
	}

	wrap := max(width, minMarkdownWidth)
	if r.renderer == nil || r.width != wrap {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrap
	}

	out, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.Trim(out, "\n")
}
