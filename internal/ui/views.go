package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/earpeace/earpeace/internal/batch"
)

var (
	iconDone      = lipgloss.NewStyle().Foreground(lipgloss.Color("#57F287")).Render("✓")
	iconUnchanged = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("=")
	iconFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ED4245")).Render("✗")
	iconActive    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Render("⚙")
	iconQueued    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("○")
)

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderClipQueue(m))
	b.WriteString("\n")
	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5865F2")).
		Render("EarPeace 🔊 - Soundboard Loudness Normalizer")

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Italic(true).
		Render(fmt.Sprintf("Normalizing %d clip(s)", len(m.Clips)))

	return title + "\n" + subtitle
}

// renderClipQueue renders the list of clips with their status
func renderClipQueue(m Model) string {
	var b strings.Builder
	for _, clip := range m.Clips {
		b.WriteString(renderClipEntry(clip))
		b.WriteString("\n")
	}
	return b.String()
}

// renderClipEntry renders a single clip row
func renderClipEntry(clip ClipProgress) string {
	switch clip.State {
	case batch.StateDone:
		summary := ""
		if r := clip.Result; r != nil {
			summary = fmt.Sprintf("  %.1f → %.1f LUFS | gain %+.1f dB",
				r.Before.Integrated, r.After.Integrated, r.Plan.GainDB)
			if r.Plan.Limited {
				summary += " (limited)"
			}
		}
		return fmt.Sprintf(" %s %s%s", iconDone, clip.Name, summary)

	case batch.StateUnchanged:
		summary := ""
		if r := clip.Result; r != nil {
			summary = fmt.Sprintf("  already at %.1f LUFS", r.Before.Integrated)
		}
		return fmt.Sprintf(" %s %s%s", iconUnchanged, clip.Name, summary)

	case batch.StateFailed:
		detail := ""
		if clip.Result != nil && clip.Result.Err != nil {
			detail = fmt.Sprintf("  %v", clip.Result.Err)
		}
		return fmt.Sprintf(" %s %s%s", iconFailed, clip.Name, detail)

	case batch.StateSkipped:
		return fmt.Sprintf(" %s %s  skipped", iconQueued, clip.Name)

	case batch.StatePending:
		return fmt.Sprintf(" %s %s", iconQueued, clip.Name)

	default:
		elapsed := ""
		if !clip.StartTime.IsZero() {
			elapsed = fmt.Sprintf(" (%.1fs)", time.Since(clip.StartTime).Seconds())
		}
		return fmt.Sprintf(" %s %s  %s%s", iconActive, clip.Name, clip.State, elapsed)
	}
}

// renderOverallProgress renders the batch progress bar and counters
func renderOverallProgress(m Model) string {
	finished := m.Completed + m.Unchanged + m.Skipped + m.Failed
	total := len(m.Clips)
	var fraction float64
	if total > 0 {
		fraction = float64(finished) / float64(total)
	}

	var b strings.Builder
	b.WriteString(renderProgressBar(fraction, 40))
	b.WriteString(fmt.Sprintf("  %d/%d", finished, total))
	if m.Failed > 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ED4245")).
			Render(fmt.Sprintf("  %d failed", m.Failed)))
	}
	return b.String()
}

// renderProgressBar renders a simple block progress bar
func renderProgressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5865F2")).
		Render(bar) + fmt.Sprintf(" %3.0f%%", fraction*100)
}

// renderCompletionSummary renders the final screen after the batch ends
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderClipQueue(m))
	b.WriteString("\n")

	elapsed := time.Since(m.StartTime).Round(100 * time.Millisecond)
	line := fmt.Sprintf("Done: %d normalized, %d unchanged, %d skipped, %d failed in %s",
		m.Completed, m.Unchanged, m.Skipped, m.Failed, elapsed)
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#57F287"))
	if m.Failed > 0 {
		style = style.Foreground(lipgloss.Color("#FFA500"))
	}
	b.WriteString(style.Render(line))
	b.WriteString("\n")

	return b.String()
}
