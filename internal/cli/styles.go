// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

var (
	// PrimaryColor is the main theme color (spicy red).
	PrimaryColor = lipgloss.Color("#FF6B6B")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4") // Teal
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#FFE66D") // Yellow
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// HeaderStyle is used for table headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	SpiceIcon   = "🌶️"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the spice icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(SpiceIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}

// Swatch renders a category name in its own color.
func Swatch(cat model.Category) string {
	color := cat.Color
	if color == "" {
		color = model.DefaultCategoryColor
	}
	name := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●") + " " + cat.Name
	if !cat.IsActive {
		name += SubtleStyle.Render(" (inactive)")
	}
	return name
}

// RenderTree draws nodes as an indented tree using box-drawing guides.
func RenderTree(nodes []model.CategoryNode) string {
	var b strings.Builder
	renderLevel(&b, nodes, "")
	return strings.TrimRight(b.String(), "\n")
}

func renderLevel(b *strings.Builder, nodes []model.CategoryNode, prefix string) {
	for i, node := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(b, "%s%s%s\n", prefix, SubtleStyle.Render(branch), Swatch(node.Category))
		renderLevel(b, node.Children, prefix+next)
	}
}

// FormatStats renders categorization coverage.
func FormatStats(stats model.Stats) string {
	lines := []string{
		fmt.Sprintf("Total:         %d", stats.Total),
		fmt.Sprintf("Categorized:   %s", SuccessStyle.Render(fmt.Sprint(stats.Categorized))),
		fmt.Sprintf("Uncategorized: %s", WarningStyle.Render(fmt.Sprint(stats.Uncategorized))),
		fmt.Sprintf("Coverage:      %.1f%%", stats.Rate*100),
	}
	return RenderBox(ChartIcon+" Categorization", strings.Join(lines, "\n"))
}
