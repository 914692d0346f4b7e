package browse

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/xmodel/framework/model"
)

var (
	colorPrimary   = lipgloss.Color("39")
	colorSecondary = lipgloss.Color("86")
	colorWarning   = lipgloss.Color("220")
	colorError     = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	filePathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	snippetStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true).
			Align(lipgloss.Center)
)

var severityStyles = map[model.Severity]lipgloss.Style{
	model.SeverityError:       lipgloss.NewStyle().Bold(true).Foreground(colorError),
	model.SeverityWarning:     lipgloss.NewStyle().Foreground(colorWarning),
	model.SeverityInformation: lipgloss.NewStyle().Foreground(colorSecondary),
}

// SeverityStyle returns the style used to render sev.
func SeverityStyle(sev model.Severity) lipgloss.Style {
	if style, ok := severityStyles[sev]; ok {
		return style
	}
	return dimStyle
}
