package app

import (
	"github.com/charmbracelet/lipgloss"

	"ghtfetch/internal/orchestrator"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	slotIndexStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	filenameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	countStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	stageStyles = map[orchestrator.Stage]lipgloss.Style{
		orchestrator.StagePending:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		orchestrator.StageDownloading: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		orchestrator.StageExtracting:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		orchestrator.StagePruning:     lipgloss.NewStyle().Foreground(lipgloss.Color("177")),
		orchestrator.StageRepackaging: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		orchestrator.StageDone:        lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
	}
)

// slotView is the renderable state of one worker slot. Idle covers both a
// slot waiting for its first dump and one whose dump just went terminal.
type slotView struct {
	filename string
	stage    orchestrator.Stage
	current  int64
	total    int64
	idle     bool
}
