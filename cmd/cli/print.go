package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	stoppedStyle = lipgloss.NewStyle().Bold(true)
)

func printStatusTable(w io.Writer, st lib.Status) {
	pid := ""
	if st.Pid > 0 {
		pid = strconv.Itoa(st.Pid)
	}
	started := ""
	if st.StartTime != nil {
		started = st.StartTime.Local().Format(time.DateTime)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("STATE", "RUN", "PID", "STARTED", "EXECUTABLE").
		Row(st.State.String(), st.RunID, pid, started, st.ExecutablePath)

	fmt.Fprintln(w, t.Render())
	if st.StopRequested && st.State != lib.StateIdle {
		fmt.Fprintln(w, "Stop requested.")
	}
}

// printEvent writes one event per line. Events without a message are skipped.
func printEvent(w io.Writer, ev lib.StatusEvent) error {
	if ev.Message == nil {
		return nil
	}
	line := *ev.Message
	if !ev.Running {
		line = stoppedStyle.Render(line)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
