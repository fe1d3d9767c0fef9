package ui

import (
	"github.com/earpeace/earpeace/internal/batch"
)

// ClipUpdateMsg reports a pipeline state change for one clip.
type ClipUpdateMsg struct {
	Name  string
	State batch.State
}

// ClipDoneMsg carries the final result for one clip.
type ClipDoneMsg struct {
	Result batch.Result
}

// BatchDoneMsg indicates every clip has finished.
type BatchDoneMsg struct {
	Summary batch.Summary
}
