package terminal

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
)

// Semantic colors, matching the badge classes of the web page
var (
	ColorInfo      = lipgloss.Color("#2196F3")
	ColorSuccess   = lipgloss.Color("#8BC34A")
	ColorWarning   = lipgloss.Color("#FFC107")
	ColorDanger    = lipgloss.Color("#e53935")
	ColorSecondary = lipgloss.Color("#9E9E9E")
	ColorBorder    = lipgloss.Color("#2a3850")
)

// Styles holds every style the presenter renders with
type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Muted    lipgloss.Style
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Border   lipgloss.Style
	Levels   map[port.Level]lipgloss.Style
	Badges   map[string]lipgloss.Style
	Callout  lipgloss.Style
	Selected lipgloss.Style
}

// NewStyles builds styles bound to a renderer so color detection follows the output
func NewStyles(r *lipgloss.Renderer) Styles {
	badge := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().Foreground(c).Bold(true)
	}
	return Styles{
		Title:  r.NewStyle().Bold(true).Underline(true),
		Label:  r.NewStyle().Bold(true),
		Muted:  r.NewStyle().Foreground(ColorSecondary),
		Header: r.NewStyle().Bold(true).Padding(0, 1),
		Cell:   r.NewStyle().Padding(0, 1),
		Border: r.NewStyle().Foreground(ColorBorder),
		Levels: map[port.Level]lipgloss.Style{
			port.LevelInfo:     r.NewStyle().Foreground(ColorInfo),
			port.LevelProgress: r.NewStyle().Foreground(ColorInfo).Italic(true),
			port.LevelSuccess:  r.NewStyle().Foreground(ColorSuccess),
			port.LevelWarning:  r.NewStyle().Foreground(ColorWarning),
			port.LevelDanger:   r.NewStyle().Foreground(ColorDanger).Bold(true),
		},
		Badges: map[string]lipgloss.Style{
			domain.BadgeSuccess:   badge(ColorSuccess),
			domain.BadgeWarning:   badge(ColorWarning),
			domain.BadgeDanger:    badge(ColorDanger),
			domain.BadgeSecondary: badge(ColorSecondary),
		},
		Callout: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1),
		Selected: r.NewStyle().Foreground(ColorSuccess).Bold(true),
	}
}

// level returns the style for a message level
func (s Styles) level(l port.Level) lipgloss.Style {
	if st, ok := s.Levels[l]; ok {
		return st
	}
	return s.Levels[port.LevelInfo]
}

// badge returns the style for a badge level
func (s Styles) badge(b string) lipgloss.Style {
	if st, ok := s.Badges[b]; ok {
		return st
	}
	return s.Badges[domain.BadgeSecondary]
}

var levelIcons = map[port.Level]string{
	port.LevelInfo:     "ℹ",
	port.LevelProgress: "…",
	port.LevelSuccess:  "✓",
	port.LevelWarning:  "!",
	port.LevelDanger:   "✗",
}
