package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	yellow    = lipgloss.AdaptiveColor{Light: "#D9A600", Dark: "#ECFD65"}
	faint     = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}

	statusBarBg = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#5B3DB3")).
			Bold(true).
			Render

	stateStyles = map[string]lipgloss.Style{
		"ready":        lipgloss.NewStyle().Foreground(mintGreen).Background(darkGreen),
		"failed":       lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(red),
		"initializing": lipgloss.NewStyle().Foreground(yellow).Background(statusBarBg),
	}

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(faint).
				Background(statusBarBg).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	timeStyle     = lipgloss.NewStyle().Foreground(faint).Render
	enqueueStyle  = lipgloss.NewStyle().Foreground(mintGreen).Render
	lowPitchStyle = lipgloss.NewStyle().Foreground(yellow).Italic(true).Render
	helpStyle     = lipgloss.NewStyle().Foreground(faint).Render
)

func stateView(state string) string {
	st, ok := stateStyles[state]
	if !ok {
		st = lipgloss.NewStyle().Foreground(faint).Background(statusBarBg)
	}
	return st.Render(" " + state + " ")
}
