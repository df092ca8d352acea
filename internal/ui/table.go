package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/warpmatch/internal/matchmaking"
)

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// StatsView renders a server snapshot as a client-count table followed by
// the open waiting keys.
func StatsView(s matchmaking.Stats) string {
	counts := newTable([]string{"Metric", "Value"}, [][]string{
		{"Mode", string(s.Mode)},
		{"Clients", strconv.Itoa(s.Clients)},
		{"Idle", strconv.Itoa(s.Idle)},
		{"Waiting", strconv.Itoa(s.Waiting)},
		{"Paired", strconv.Itoa(s.Paired)},
		{"Open keys", strconv.Itoa(s.OpenKeys)},
	})

	if len(s.Keys) == 0 {
		if s.Mode == matchmaking.ModeRoom && s.OpenKeys > 0 {
			return lipgloss.JoinVertical(lipgloss.Left, counts.Render(),
				MutedStyle.Render("Room tokens are not listed"))
		}
		return counts.Render()
	}

	rows := make([][]string, 0, len(s.Keys))
	for _, k := range s.Keys {
		rows = append(rows, []string{k.Key, strconv.Itoa(k.Waiting)})
	}
	keys := newTable([]string{"Key", "Waiting"}, rows)

	return lipgloss.JoinVertical(lipgloss.Left, counts.Render(), "", keys.Render())
}

func RenderStats(s matchmaking.Stats) {
	fmt.Fprintln(Output, StatsView(s))
}

// ProbeStep is one timed stage of an end-to-end probe.
type ProbeStep struct {
	Name     string
	Duration time.Duration
	Err      error
}

// ProbeReportView renders probe stages with their outcome and timing.
func ProbeReportView(steps []ProbeStep) string {
	rows := make([][]string, 0, len(steps))
	for _, st := range steps {
		status := IconSuccess
		detail := st.Duration.Round(time.Millisecond).String()
		if st.Err != nil {
			status = IconError
			detail = st.Err.Error()
		}
		rows = append(rows, []string{st.Name, status, detail})
	}
	return newTable([]string{"Step", "Status", "Detail"}, rows).Render()
}

func RenderProbeReport(steps []ProbeStep) {
	fmt.Fprintln(Output, ProbeReportView(steps))
}
