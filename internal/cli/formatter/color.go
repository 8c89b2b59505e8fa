package formatter

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/salescrm/crm-api/internal/domain"
)

var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// StageStyle returns the color used for a pipeline stage
func StageStyle(stage domain.OpportunityStage) lipgloss.Style {
	switch stage {
	case domain.StageClosedWon:
		return StyleGreen
	case domain.StageClosedLost:
		return StyleRed
	case domain.StageAwaitingPayment:
		return StyleYellow
	case domain.StageNegotiation:
		return StylePurple
	case domain.StageProposal:
		return StyleBlue
	default:
		return StyleDim
	}
}
