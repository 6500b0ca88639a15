package prompt

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const lockGlyph = "🔒"

type styles struct {
	box      lipgloss.Style
	title    lipgloss.Style
	headline lipgloss.Style
	benefit  lipgloss.Style
	offer    lipgloss.Style
	price    lipgloss.Style
	primary  lipgloss.Style
	muted    lipgloss.Style
	warning  lipgloss.Style
}

func newStyles() styles {
	return styles{
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(1, 2),
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		headline: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		benefit:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		offer:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B")),
		price:    lipgloss.NewStyle().Bold(true),
		primary:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		muted:    lipgloss.NewStyle().Faint(true),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// Render draws the prompt as a bordered terminal panel.
func Render(p UpgradePrompt) string {
	s := newStyles()

	benefits := make([]string, 0, len(p.Benefits))
	for _, b := range p.Benefits {
		benefits = append(benefits, s.benefit.Render("✓ "+b))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render(p.Title),
		s.headline.Render(p.Headline),
		"",
		strings.Join(benefits, "\n"),
		"",
		s.offer.Render(p.OfferLabel)+"  "+s.price.Render(p.Price),
		"",
		s.primary.Render("["+p.UpgradeLabel+"]")+"  "+s.muted.Render("["+p.DismissLabel+"]"),
	)
	return s.box.Render(body)
}

// LockLine renders a one-line restriction notice.
func LockLine(message string) string {
	if message == "" {
		return ""
	}
	return newStyles().warning.Render(lockGlyph + " " + message)
}

// LockLabel prefixes label with the lock glyph.
func LockLabel(label string) string {
	return lockGlyph + " " + label
}
