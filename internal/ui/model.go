// Package ui provides the Bubbletea terminal user interface for earpeace.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/earpeace/earpeace/internal/batch"
	"github.com/earpeace/earpeace/internal/source"
)

// ClipProgress tracks one clip through the pipeline. Clips process
// concurrently, so several rows can be active at once.
type ClipProgress struct {
	Name      string
	State     batch.State
	StartTime time.Time
	Result    *batch.Result
}

// Model is the Bubbletea model for a batch run.
type Model struct {
	Clips   []ClipProgress
	indexOf map[string]int

	Completed int
	Unchanged int
	Skipped   int
	Failed    int

	StartTime time.Time
	Done      bool
	Summary   batch.Summary

	// ProgressChan carries batch events converted to tea messages.
	ProgressChan chan tea.Msg

	Width  int
	Height int
}

// NewModel creates a UI model for the given clips.
func NewModel(clips []source.Clip) Model {
	rows := make([]ClipProgress, len(clips))
	indexOf := make(map[string]int, len(clips))
	for i, c := range clips {
		rows[i] = ClipProgress{Name: c.Name, State: batch.StatePending}
		indexOf[c.Name] = i
	}
	return Model{
		Clips:        rows,
		indexOf:      indexOf,
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100), // Buffered channel
	}
}

// Forward adapts batch events into the progress channel. Pass it as the
// orchestrator's OnEvent callback.
func (m Model) Forward(e batch.Event) {
	if e.Result != nil {
		m.ProgressChan <- ClipDoneMsg{Result: *e.Result}
		return
	}
	m.ProgressChan <- ClipUpdateMsg{Name: e.Clip.Name, State: e.State}
}

// Finish signals the end of the batch to the UI.
func (m Model) Finish(sum batch.Summary) {
	m.ProgressChan <- BatchDoneMsg{Summary: sum}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.ProgressChan)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case ClipUpdateMsg:
		if i, ok := m.indexOf[msg.Name]; ok {
			if m.Clips[i].State == batch.StatePending {
				m.Clips[i].StartTime = time.Now()
			}
			m.Clips[i].State = msg.State
		}
		return m, waitForProgress(m.ProgressChan)

	case ClipDoneMsg:
		if i, ok := m.indexOf[msg.Result.Clip.Name]; ok {
			res := msg.Result
			m.Clips[i].State = res.State
			m.Clips[i].Result = &res
			switch res.State {
			case batch.StateDone:
				m.Completed++
			case batch.StateUnchanged:
				m.Unchanged++
			case batch.StateSkipped:
				m.Skipped++
			default:
				m.Failed++
			}
		}
		return m, waitForProgress(m.ProgressChan)

	case BatchDoneMsg:
		m.Done = true
		m.Summary = msg.Summary
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProcessingView(m)
}

// waitForProgress creates a command that waits for progress messages
func waitForProgress(progressChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-progressChan
	}
}
