package logging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/earpeace/earpeace/internal/batch"
	"github.com/earpeace/earpeace/internal/source"
)

// ResultTable renders batch results as aligned columns: labels left, numbers
// right, status last.
type ResultTable struct {
	Results []batch.Result
}

var resultHeaders = []string{"Clip", "Loudness", "Peak", "Gain", "Status"}

// String renders the table. Failed clips show a dash for their metrics and
// carry the error in the status column.
func (t *ResultTable) String() string {
	if len(t.Results) == 0 {
		return ""
	}

	rows := make([][]string, 0, len(t.Results))
	for _, r := range t.Results {
		rows = append(rows, resultRow(r))
	}

	widths := make([]int, len(resultHeaders))
	for i, h := range resultHeaders {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		// Clip and Status left-aligned, metric columns right-aligned.
		sb.WriteString(fmt.Sprintf("%-*s", widths[0], cells[0]))
		for i := 1; i < len(cells)-1; i++ {
			sb.WriteString(fmt.Sprintf("  %*s", widths[i], cells[i]))
		}
		sb.WriteString("  " + cells[len(cells)-1])
		sb.WriteString("\n")
	}
	writeRow(resultHeaders)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func resultRow(r batch.Result) []string {
	if r.State == batch.StateFailed || r.State == batch.StateSkipped {
		status := r.State.String()
		if r.State == batch.StateFailed && r.Err != nil {
			status = "failed: " + rootMessage(r.Err)
		}
		return []string{r.Clip.Name, "-", "-", "-", status}
	}

	loudness := fmt.Sprintf("%.1f LUFS", r.Before.Integrated)
	if r.State == batch.StateDone && r.After.Integrated != r.Before.Integrated {
		loudness = fmt.Sprintf("%.1f > %.1f LUFS", r.Before.Integrated, r.After.Integrated)
	}
	peak := fmt.Sprintf("%.1f dBFS", r.Before.Peak)

	gain := "-"
	var status string
	switch r.State {
	case batch.StateDone:
		gain = fmt.Sprintf("%+.1f dB", r.Plan.GainDB)
		status = "normalized"
		if r.Plan.Limited {
			status = "normalized (limited)"
		}
	case batch.StateUnchanged:
		status = "unchanged"
	default:
		status = r.State.String()
	}
	return []string{r.Clip.Name, loudness, peak, gain, status}
}

// rootMessage unwraps to the innermost error so the table stays narrow.
func rootMessage(err error) string {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}

// ClipTable renders a clip listing for the ls command.
type ClipTable struct {
	Clips []source.Clip
}

func (t *ClipTable) String() string {
	if len(t.Clips) == 0 {
		return "no clips found\n"
	}
	nameWidth := len("Name")
	for _, c := range t.Clips {
		if len(c.Name) > nameWidth {
			nameWidth = len(c.Name)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s  %-6s  %s\n", nameWidth, "Name", "Format", "ID")
	for _, c := range t.Clips {
		fmt.Fprintf(&sb, "%-*s  %-6s  %s\n", nameWidth, c.Name, c.Format, c.ID)
	}
	return sb.String()
}
