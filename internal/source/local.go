package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/earpeace/earpeace/internal/audio"
)

// Local reads clips from a directory and writes normalized copies as
// sibling files, or into an output directory when one is set.
type Local struct {
	dir       string
	outputDir string
}

// NewLocal creates a source over dir. If outputDir is non-empty, processed
// clips are written there under their original names; otherwise each output
// lands next to its input with a "-normalized" suffix.
func NewLocal(dir, outputDir string) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input directory: %s is not a directory", dir)
	}
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("output directory: %w", err)
		}
	}
	return &Local{dir: dir, outputDir: outputDir}, nil
}

// List returns every supported audio file directly inside the directory.
// Unsupported extensions and subdirectories are skipped quietly.
func (l *Local) List(ctx context.Context) ([]Clip, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", l.dir, err)
	}
	var clips []Clip
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format, err := audio.FormatFromName(e.Name())
		if err != nil {
			continue
		}
		// Don't reprocess our own outputs.
		if strings.Contains(stem(e.Name()), "-normalized") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		clips = append(clips, Clip{
			ID:     filepath.Join(l.dir, e.Name()),
			Name:   e.Name(),
			Format: format,
			Size:   info.Size(),
		})
	}
	return clips, nil
}

func (l *Local) Fetch(ctx context.Context, clip Clip) ([]byte, error) {
	data, err := os.ReadFile(clip.ID)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clip.Name, err)
	}
	return data, nil
}

// Store writes the processed clip. The extension follows the output format,
// which may differ from the input when encoding fell back to WAV.
func (l *Local) Store(ctx context.Context, clip Clip, data []byte, format audio.Format) error {
	var path string
	if l.outputDir != "" {
		path = filepath.Join(l.outputDir, stem(clip.Name)+"."+format.Extension())
	} else {
		path = filepath.Join(l.dir, stem(clip.Name)+"-normalized."+format.Extension())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// OutputPath reports where Store would write the clip, for dry runs.
func (l *Local) OutputPath(clip Clip, format audio.Format) string {
	if l.outputDir != "" {
		return filepath.Join(l.outputDir, stem(clip.Name)+"."+format.Extension())
	}
	return filepath.Join(l.dir, stem(clip.Name)+"-normalized."+format.Extension())
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

var _ Source = (*Local)(nil)

// ErrNoClips is returned by callers when a listing comes back empty.
var ErrNoClips = errors.New("no audio clips found")
