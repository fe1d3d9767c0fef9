// Package discord is a minimal Discord API v10 client covering the guild
// soundboard endpoints.
package discord

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultAPIBase = "https://discord.com/api/v10"
	defaultCDNBase = "https://cdn.discordapp.com"
)

// ErrAuth marks a rejected token or missing permission. It is never worth
// retrying.
var ErrAuth = errors.New("discord rejected the credentials")

// RateLimitError reports a 429 with the server's requested wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Sound is one guild soundboard entry.
type Sound struct {
	Name      string  `json:"name"`
	SoundID   string  `json:"sound_id"`
	Volume    float64 `json:"volume"`
	EmojiID   *string `json:"emoji_id"`
	EmojiName *string `json:"emoji_name"`
	Available bool    `json:"available"`
}

// Client calls the Discord soundboard API for one guild.
type Client struct {
	token   string
	guildID string
	apiBase string
	cdnBase string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the API and CDN endpoints, mainly for tests.
func WithBaseURLs(api, cdn string) Option {
	return func(c *Client) {
		c.apiBase = api
		c.cdnBase = cdn
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a soundboard client authenticated with a bot token.
func New(token, guildID string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		guildID: guildID,
		apiBase: defaultAPIBase,
		cdnBase: defaultCDNBase,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GuildID returns the guild this client operates on.
func (c *Client) GuildID() string { return c.guildID }

// ListSounds fetches every soundboard sound in the guild.
func (c *Client) ListSounds(ctx context.Context) ([]Sound, error) {
	url := fmt.Sprintf("%s/guilds/%s/soundboard-sounds", c.apiBase, c.guildID)
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("list sounds: %w", err)
	}
	var resp struct {
		Items []Sound `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode sound list: %w", err)
	}
	return resp.Items, nil
}

// FetchSound downloads a sound's audio from the CDN. Discord serves
// soundboard audio as Ogg Opus.
func (c *Client) FetchSound(ctx context.Context, soundID string) ([]byte, error) {
	url := fmt.Sprintf("%s/soundboard-sounds/%s", c.cdnBase, soundID)
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch sound %s: %w", soundID, err)
	}
	return body, nil
}

// CreateSound uploads audio as a new soundboard sound, carrying over the
// volume and emoji of the sound it replaces.
func (c *Client) CreateSound(ctx context.Context, s Sound, audio []byte, contentType string) error {
	payload := struct {
		Name      string  `json:"name"`
		Sound     string  `json:"sound"`
		Volume    float64 `json:"volume"`
		EmojiID   *string `json:"emoji_id,omitempty"`
		EmojiName *string `json:"emoji_name,omitempty"`
	}{
		Name:      s.Name,
		Sound:     fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(audio)),
		Volume:    s.Volume,
		EmojiID:   s.EmojiID,
		EmojiName: s.EmojiName,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sound payload: %w", err)
	}
	url := fmt.Sprintf("%s/guilds/%s/soundboard-sounds", c.apiBase, c.guildID)
	if _, err := c.do(ctx, http.MethodPost, url, body); err != nil {
		return fmt.Errorf("create sound %q: %w", s.Name, err)
	}
	return nil
}

// DeleteSound removes a soundboard sound from the guild.
func (c *Client) DeleteSound(ctx context.Context, soundID string) error {
	url := fmt.Sprintf("%s/guilds/%s/soundboard-sounds/%s", c.apiBase, c.guildID, soundID)
	if _, err := c.do(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("delete sound %s: %w", soundID, err)
	}
	return nil
}

// ReplaceSound uploads the new audio first and deletes the old sound only
// once the upload succeeded, so a failed upload never loses the original.
func (c *Client) ReplaceSound(ctx context.Context, s Sound, audio []byte, contentType string) error {
	if err := c.CreateSound(ctx, s, audio, contentType); err != nil {
		return err
	}
	return c.DeleteSound(ctx, s.SoundID)
}

// Ping verifies the token and guild before any batch work starts.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListSounds(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: retryAfter(resp)}
	default:
		return nil, fmt.Errorf("discord returned %d: %s", resp.StatusCode, string(data))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Second
}
