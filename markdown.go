package main

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

type markdownTheme string

const (
	markdownThemeAuto  markdownTheme = "auto"
	markdownThemeDark  markdownTheme = "dark"
	markdownThemeLight markdownTheme = "light"
)

// markdownView renders assistant replies with Glamour. The renderer is
// rebuilt lazily whenever the theme or wrap width changes.
type markdownView struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	theme    markdownTheme
	wrap     int
}

func newMarkdownView(theme markdownTheme) *markdownView {
	if theme == "" {
		theme = markdownThemeAuto
	}
	return &markdownView{theme: theme, wrap: 80}
}

// Render falls back to the raw content when the renderer cannot be built.
func (v *markdownView) Render(content string) string {
	v.mu.Lock()
	renderer := v.ensureRenderer()
	v.mu.Unlock()
	if renderer == nil {
		return content
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

func (v *markdownView) ensureRenderer() *glamour.TermRenderer {
	if v.renderer != nil {
		return v.renderer
	}
	options := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if v.wrap > 0 {
		options = append(options, glamour.WithWordWrap(v.wrap))
	} else {
		options = append(options, glamour.WithWordWrap(0))
	}
	switch v.theme {
	case markdownThemeLight:
		options = append(options, glamour.WithStandardStyle("light"))
	case markdownThemeDark:
		options = append(options, glamour.WithStandardStyle("dark"))
	}
	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return nil
	}
	v.renderer = renderer
	return renderer
}

func (v *markdownView) SetWrap(width int) {
	if width < 0 {
		width = 0
	}
	v.mu.Lock()
	if v.wrap != width {
		v.wrap = width
		v.renderer = nil
	}
	v.mu.Unlock()
}

func (v *markdownView) SetTheme(theme markdownTheme) {
	if theme == "" {
		theme = markdownThemeAuto
	}
	v.mu.Lock()
	if v.theme != theme {
		v.theme = theme
		v.renderer = nil
	}
	v.mu.Unlock()
}

func (v *markdownView) Theme() markdownTheme {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.theme
}

func markdownThemeFromString(value string) markdownTheme {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dark":
		return markdownThemeDark
	case "light":
		return markdownThemeLight
	default:
		return markdownThemeAuto
	}
}

func (t markdownTheme) String() string {
	switch t {
	case markdownThemeDark:
		return "dark"
	case markdownThemeLight:
		return "light"
	default:
		return "auto"
	}
}

func nextMarkdownTheme(theme markdownTheme) markdownTheme {
	switch theme {
	case markdownThemeAuto:
		return markdownThemeDark
	case markdownThemeDark:
		return markdownThemeLight
	default:
		return markdownThemeAuto
	}
}
