// Package source abstracts where clips live: a local directory or a guild
// soundboard. The batch pipeline sees the same interface either way.
package source

import (
	"context"

	"github.com/earpeace/earpeace/internal/audio"
)

// Clip identifies one audio clip in a source.
type Clip struct {
	// ID is the source-specific handle: a file path locally, a sound ID
	// remotely.
	ID string
	// Name is the display name shown in logs and tables.
	Name string
	// Format is the clip's container format.
	Format audio.Format
	// Size in bytes, zero when the source cannot know it up front.
	Size int64
}

// Source lists and fetches clips.
type Source interface {
	// List enumerates every clip the source holds.
	List(ctx context.Context) ([]Clip, error)
	// Fetch returns the clip's encoded bytes.
	Fetch(ctx context.Context, clip Clip) ([]byte, error)
	// Store writes processed audio back. Local sources write a sibling
	// file, remote sources replace the clip in place.
	Store(ctx context.Context, clip Clip, data []byte, format audio.Format) error
}
