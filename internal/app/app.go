// Package app renders a live dashboard for a pipeline run: one row per
// worker slot plus overall completion, fed by the run's reporter.
package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"ghtfetch/internal/orchestrator"
)

const filenameWidth = 34

// Model is the bubbletea model for the run dashboard.
type Model struct {
	spinner spinner.Model
	// bar renders slot download bars statelessly via ViewAs, so one model
	// serves every slot.
	bar     progress.Model
	overall progress.Model

	slots         []slotView
	totalDumps    int
	terminalDumps int
	done          int
	skipped       int
	failed        int

	summary  *orchestrator.Summary
	width    int
	quitting bool
}

func NewModel() *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Model{
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		overall: progress.New(progress.WithGradient("#5A56E0", "#EE6FF8"), progress.WithWidth(44)),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RunStartedMsg:
		m.totalDumps = msg.Total
		m.slots = make([]slotView, msg.Slots)
		for i := range m.slots {
			m.slots[i].idle = true
		}

	case SlotProgressMsg:
		if msg.Slot >= 0 && msg.Slot < len(m.slots) {
			m.slots[msg.Slot] = slotView{
				filename: msg.Filename,
				stage:    msg.Stage,
				current:  msg.Current,
				total:    msg.Total,
			}
		}

	case SlotDoneMsg:
		m.terminalDumps = msg.Completed
		switch {
		case msg.Result.Failed():
			m.failed++
		case msg.Result.Skipped:
			m.skipped++
		default:
			m.done++
		}
		if msg.Slot >= 0 && msg.Slot < len(m.slots) {
			m.slots[msg.Slot] = slotView{idle: true}
		}

	case RunFinishedMsg:
		sum := msg.Summary
		m.summary = &sum
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ghtfetch"))
	b.WriteString("\n\n")

	if m.totalDumps == 0 && m.summary == nil {
		b.WriteString(m.spinner.View() + " Waiting for dump discovery...\n")
		return b.String()
	}

	pct := 0.0
	if m.totalDumps > 0 {
		pct = float64(m.terminalDumps) / float64(m.totalDumps)
	}
	b.WriteString(fmt.Sprintf("%s %d/%d dumps terminal\n", m.spinner.View(), m.terminalDumps, m.totalDumps))
	b.WriteString(m.overall.ViewAs(pct))
	b.WriteString("\n\n")

	for i, slot := range m.slots {
		b.WriteString(m.renderSlot(i, slot))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s   %s   %s",
		okStyle.Render(fmt.Sprintf("done %d", m.done)),
		skippedStyle.Render(fmt.Sprintf("skipped %d", m.skipped)),
		failedStyle.Render(fmt.Sprintf("failed %d", m.failed))))
	b.WriteString("\n")

	if m.summary != nil {
		b.WriteString(m.renderSummary())
	} else {
		b.WriteString(helpStyle.Render("press q to abort"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) renderSlot(i int, slot slotView) string {
	prefix := slotIndexStyle.Render(fmt.Sprintf("%2d ", i))
	if slot.idle {
		return prefix + slotIndexStyle.Render("idle")
	}

	name := filenameStyle.Render(fmt.Sprintf("%-*s", filenameWidth, truncate(slot.filename, filenameWidth)))
	stage := stageStyles[slot.stage].Render(fmt.Sprintf("%-11s", slot.stage.String()))
	line := prefix + name + "  " + stage

	if slot.stage == orchestrator.StageDownloading && slot.total > 0 {
		pct := float64(slot.current) / float64(slot.total)
		line += "  " + m.bar.ViewAs(pct)
		line += countStyle.Render(fmt.Sprintf("  %s/%s",
			humanize.Bytes(uint64(slot.current)), humanize.Bytes(uint64(slot.total))))
	}
	return line
}

func (m *Model) renderSummary() string {
	sum := *m.summary
	var b strings.Builder

	if sum.Ok() {
		b.WriteString(okStyle.Render("All dumps accounted for."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(failedStyle.Render(fmt.Sprintf("%d dump(s) failed:", sum.Failed)))
	b.WriteString("\n")
	for _, res := range sum.Results {
		if !res.Failed() {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			res.Descriptor.Filename,
			failedStyle.Render(res.Stage.String()),
			truncate(res.Err.Error(), 90)))
	}
	return b.String()
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
