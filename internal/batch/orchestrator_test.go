package batch

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/earpeace/earpeace/internal/audio"
	"github.com/earpeace/earpeace/internal/discord"
	"github.com/earpeace/earpeace/internal/source"
)

// fakeSource serves in-memory WAV clips and records stores.
type fakeSource struct {
	mu        sync.Mutex
	clips     []source.Clip
	data      map[string][]byte
	fetchErrs map[string][]error // consumed front to back before data is served
	stored    map[string][]byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		data:      map[string][]byte{},
		fetchErrs: map[string][]error{},
		stored:    map[string][]byte{},
	}
}

func (f *fakeSource) add(t *testing.T, name string, amp float64) source.Clip {
	t.Helper()
	rate := 48000
	samples := make([]float32, rate)
	for i := range samples {
		samples[i] = float32(amp * math.Sin(2*math.Pi*997*float64(i)/float64(rate)))
	}
	data, err := audio.EncodeWAV(&audio.Buffer{Samples: samples, SampleRate: rate, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	return f.addRaw(name, data)
}

func (f *fakeSource) addRaw(name string, data []byte) source.Clip {
	f.mu.Lock()
	defer f.mu.Unlock()
	clip := source.Clip{ID: name, Name: name, Format: audio.FormatWAV}
	f.clips = append(f.clips, clip)
	f.data[name] = data
	return clip
}

func (f *fakeSource) List(ctx context.Context) ([]source.Clip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.Clip(nil), f.clips...), nil
}

func (f *fakeSource) Fetch(ctx context.Context, clip source.Clip) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.fetchErrs[clip.ID]; len(errs) > 0 {
		err := errs[0]
		f.fetchErrs[clip.ID] = errs[1:]
		return nil, err
	}
	return f.data[clip.ID], nil
}

func (f *fakeSource) Store(ctx context.Context, clip source.Clip, data []byte, format audio.Format) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[clip.ID] = data
	return nil
}

func defaultOpts() Options {
	return Options{TargetLUFS: -18, CeilingDBFS: -1, Concurrency: 2, Retries: 0}
}

func run(t *testing.T, src *fakeSource, opts Options) Summary {
	t.Helper()
	o, err := New(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	clips, err := src.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return o.Run(context.Background(), clips)
}

func TestBatchBestEffortContinuesPastCorruptClip(t *testing.T) {
	src := newFakeSource()
	for _, name := range []string{"a.wav", "b.wav", "c.wav", "d.wav"} {
		src.add(t, name, 0.1)
	}
	src.addRaw("broken.wav", []byte("not a wav file at all"))

	sum := run(t, src, defaultOpts())
	if sum.Done != 4 || sum.Failed != 1 {
		t.Fatalf("done=%d failed=%d, want 4/1", sum.Done, sum.Failed)
	}
	for _, r := range sum.Results {
		if r.Clip.Name == "broken.wav" {
			if !errors.Is(r.Err, audio.ErrCorruptInput) {
				t.Errorf("broken clip err = %v", r.Err)
			}
		} else if r.State != StateDone {
			t.Errorf("%s state = %v", r.Clip.Name, r.State)
		}
	}
	if _, ok := src.stored["broken.wav"]; ok {
		t.Error("corrupt clip was stored")
	}
}

func TestBatchDeterministicAcrossConcurrency(t *testing.T) {
	build := func() *fakeSource {
		src := newFakeSource()
		src.add(t, "quiet.wav", 0.05)
		src.add(t, "mid.wav", 0.1)
		src.add(t, "loud.wav", 0.5)
		return src
	}
	opts1 := defaultOpts()
	opts1.Concurrency = 1
	opts8 := defaultOpts()
	opts8.Concurrency = 8

	one := run(t, build(), opts1)
	eight := run(t, build(), opts8)
	if len(one.Results) != len(eight.Results) {
		t.Fatal("result counts differ")
	}
	for i := range one.Results {
		a, b := one.Results[i], eight.Results[i]
		if a.Clip.Name != b.Clip.Name {
			t.Fatalf("order differs at %d: %s vs %s", i, a.Clip.Name, b.Clip.Name)
		}
		if math.Abs(a.Plan.GainDB-b.Plan.GainDB) > 1e-9 || a.State != b.State {
			t.Errorf("%s: plan %v/%v vs %v/%v", a.Clip.Name, a.Plan.GainDB, a.State, b.Plan.GainDB, b.State)
		}
	}
}

func TestBatchUnchangedShortCircuit(t *testing.T) {
	src := newFakeSource()
	// Amplitude chosen so the clip already measures at the target.
	amp := math.Pow(10, (-18+3.01)/20)
	src.add(t, "on-target.wav", amp)

	sum := run(t, src, defaultOpts())
	if sum.Unchanged != 1 {
		t.Fatalf("unchanged = %d, results %+v", sum.Unchanged, sum.Results)
	}
	if len(src.stored) != 0 {
		t.Error("unchanged clip was written back")
	}
}

func TestBatchDryRunStoresNothing(t *testing.T) {
	src := newFakeSource()
	src.add(t, "quiet.wav", 0.05)
	opts := defaultOpts()
	opts.DryRun = true

	sum := run(t, src, opts)
	if sum.Done != 1 {
		t.Fatalf("done = %d", sum.Done)
	}
	if got := sum.Results[0].Plan.GainDB; got == 0 {
		t.Error("dry run produced no plan")
	}
	if len(src.stored) != 0 {
		t.Error("dry run wrote output")
	}
}

func TestBatchRetriesTransientFetch(t *testing.T) {
	src := newFakeSource()
	clip := src.add(t, "flaky.wav", 0.1)
	src.fetchErrs[clip.ID] = []error{
		&discord.RateLimitError{RetryAfter: time.Millisecond},
		&discord.RateLimitError{RetryAfter: time.Millisecond},
	}
	opts := defaultOpts()
	opts.Retries = 2

	sum := run(t, src, opts)
	if sum.Done != 1 {
		t.Fatalf("done = %d, err %v", sum.Done, sum.Results[0].Err)
	}
	if sum.Results[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", sum.Results[0].Attempts)
	}
}

func TestBatchDoesNotRetryAuthFailure(t *testing.T) {
	src := newFakeSource()
	clip := src.add(t, "locked.wav", 0.1)
	src.fetchErrs[clip.ID] = []error{discord.ErrAuth, nil}
	opts := defaultOpts()
	opts.Retries = 3

	sum := run(t, src, opts)
	if sum.Failed != 1 || !errors.Is(sum.Results[0].Err, discord.ErrAuth) {
		t.Fatalf("results = %+v", sum.Results)
	}
	if sum.Results[0].Attempts != 1 {
		t.Errorf("attempts = %d, want 1", sum.Results[0].Attempts)
	}
}

func TestBatchStrictStopsAfterFailure(t *testing.T) {
	src := newFakeSource()
	src.addRaw("broken.wav", []byte("garbage"))
	for _, name := range []string{"b.wav", "c.wav", "d.wav", "e.wav"} {
		src.add(t, name, 0.1)
	}
	opts := defaultOpts()
	opts.Concurrency = 1
	opts.Strict = true

	sum := run(t, src, opts)
	if sum.Done > 0 {
		// With one worker nothing after the failure may complete.
		t.Fatalf("done = %d in strict mode, results %+v", sum.Done, sum.Results)
	}
	if sum.Failed != 1 || sum.Skipped != 4 {
		t.Errorf("failed = %d skipped = %d, want 1/4", sum.Failed, sum.Skipped)
	}
}

func TestBatchEmitsTerminalEvents(t *testing.T) {
	src := newFakeSource()
	src.add(t, "a.wav", 0.1)
	src.add(t, "b.wav", 0.1)

	var mu sync.Mutex
	terminal := map[string]State{}
	opts := defaultOpts()
	opts.OnEvent = func(e Event) {
		if e.Result == nil {
			return
		}
		mu.Lock()
		terminal[e.Clip.Name] = e.State
		mu.Unlock()
	}

	run(t, src, opts)
	mu.Lock()
	defer mu.Unlock()
	if len(terminal) != 2 || terminal["a.wav"] != StateDone || terminal["b.wav"] != StateDone {
		t.Fatalf("terminal events = %v", terminal)
	}
}
