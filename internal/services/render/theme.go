package render

import (
	"fmt"

	"github.com/ternarybob/scribo/internal/models"
)

// RGB is a resolved color triple for fpdf
type RGB struct {
	R, G, B int
}

// Theme is a fully resolved appearance: every field populated
type Theme struct {
	Primary    RGB
	Secondary  RGB
	Accent     RGB
	Text       RGB
	Background RGB
	Font       string
}

var defaultTheme = Theme{
	Primary:    RGB{0x1f, 0x4e, 0x79},
	Secondary:  RGB{0x2e, 0x86, 0xab},
	Accent:     RGB{0xf1, 0x8f, 0x01},
	Text:       RGB{0x33, 0x33, 0x33},
	Background: RGB{0xff, 0xff, 0xff},
	Font:       "Helvetica",
}

// ResolveTheme merges branding over the default theme. Unparseable color
// values resolve to their defaults rather than erroring.
func ResolveTheme(b models.Branding) Theme {
	theme := defaultTheme
	if c, err := parseHexColor(b.PrimaryColor); err == nil {
		theme.Primary = c
	}
	if c, err := parseHexColor(b.SecondaryColor); err == nil {
		theme.Secondary = c
	}
	if c, err := parseHexColor(b.AccentColor); err == nil {
		theme.Accent = c
	}
	if c, err := parseHexColor(b.TextColor); err == nil {
		theme.Text = c
	}
	if c, err := parseHexColor(b.BackgroundColor); err == nil {
		theme.Background = c
	}
	if b.FontFamily != "" {
		theme.Font = resolveFont(b.FontFamily)
	}
	return theme
}

// resolveFont maps a requested family onto one of the fpdf core fonts
func resolveFont(family string) string {
	switch family {
	case "Helvetica", "Arial":
		return "Helvetica"
	case "Times", "Georgia", "serif":
		return "Times"
	case "Courier", "monospace":
		return "Courier"
	default:
		return defaultTheme.Font
	}
}

func parseHexColor(s string) (RGB, error) {
	var c RGB
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid hex color %q", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return c, nil
}
