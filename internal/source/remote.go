package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/earpeace/earpeace/internal/audio"
	"github.com/earpeace/earpeace/internal/discord"
)

// Remote serves clips from a guild soundboard. Discord stores soundboard
// audio as Ogg Opus, so every clip carries that format.
type Remote struct {
	client *discord.Client

	mu     sync.Mutex
	sounds map[string]discord.Sound // by sound ID, filled by List
}

// NewRemote wraps a Discord client as a clip source.
func NewRemote(client *discord.Client) *Remote {
	return &Remote{client: client, sounds: make(map[string]discord.Sound)}
}

func (r *Remote) List(ctx context.Context) ([]Clip, error) {
	sounds, err := r.client.ListSounds(ctx)
	if err != nil {
		return nil, err
	}
	clips := make([]Clip, 0, len(sounds))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sounds {
		if !s.Available {
			continue
		}
		r.sounds[s.SoundID] = s
		clips = append(clips, Clip{
			ID:     s.SoundID,
			Name:   s.Name,
			Format: audio.FormatOggOpus,
		})
	}
	return clips, nil
}

func (r *Remote) Fetch(ctx context.Context, clip Clip) ([]byte, error) {
	return r.client.FetchSound(ctx, clip.ID)
}

// Store replaces the soundboard sound, preserving its name, volume and
// emoji. Discord has no update endpoint for sound data so the replacement
// is a create followed by a delete of the original.
func (r *Remote) Store(ctx context.Context, clip Clip, data []byte, format audio.Format) error {
	r.mu.Lock()
	s, ok := r.sounds[clip.ID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("sound %s was not listed before store", clip.ID)
	}
	return r.client.ReplaceSound(ctx, s, data, format.ContentType())
}

var _ Source = (*Remote)(nil)
