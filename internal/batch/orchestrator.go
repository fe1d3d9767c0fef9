package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/earpeace/earpeace/internal/audio"
	"github.com/earpeace/earpeace/internal/dsp"
	"github.com/earpeace/earpeace/internal/source"
)

// Options configures a batch run.
type Options struct {
	// TargetLUFS and CeilingDBFS feed the gain planner.
	TargetLUFS  float64
	CeilingDBFS float64
	// Concurrency bounds the worker pool. Zero means one worker.
	Concurrency int
	// Retries is the number of extra attempts for transient fetch and
	// store failures.
	Retries int
	// MinRequestDelay spaces out source requests, easing API rate limits.
	MinRequestDelay time.Duration
	// TruePeak enables oversampled peak measurement.
	TruePeak bool
	// Strict stops scheduling new clips after the first failure; clips in
	// flight finish their current stage and the rest are reported skipped.
	// The default is best-effort, where one clip failing never stops the
	// others.
	Strict bool
	// DryRun plans every clip but writes nothing back.
	DryRun bool
	// OnEvent receives job state changes, when set. Calls arrive from
	// multiple goroutines.
	OnEvent func(Event)
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// Orchestrator fans clips out to workers running the fetch, measure, plan,
// apply, store pipeline.
type Orchestrator struct {
	src     source.Source
	codec   audio.Codec
	planner dsp.Planner
	meter   dsp.Meter
	applier dsp.Applier
	opts    Options
	logger  *zap.Logger

	paceMu   sync.Mutex
	lastCall time.Time
}

// New validates the options and builds an orchestrator over src.
func New(src source.Source, opts Options) (*Orchestrator, error) {
	planner, err := dsp.NewPlanner(opts.TargetLUFS, opts.CeilingDBFS)
	if err != nil {
		return nil, err
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		src:     src,
		codec:   audio.NewCodec(),
		planner: planner,
		meter:   dsp.Meter{UseTruePeak: opts.TruePeak},
		applier: dsp.Applier{CeilingDBFS: opts.CeilingDBFS},
		opts:    opts,
		logger:  opts.Logger,
	}, nil
}

// Run processes the given clips and returns a summary with one result per
// clip, in the input order. Cancelling ctx stops new work; clips that never
// started are reported failed with the context error.
func (o *Orchestrator) Run(ctx context.Context, clips []source.Clip) Summary {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type indexed struct {
		idx  int
		clip source.Clip
	}
	jobs := make(chan indexed)
	type indexedResult struct {
		idx int
		res Result
	}
	results := make(chan indexedResult)

	var wg sync.WaitGroup
	for w := 0; w < o.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				var res Result
				if err := ctx.Err(); err != nil {
					res = Result{Clip: j.clip, State: StateSkipped, Err: err}
				} else {
					res = o.process(ctx, j.clip)
					if res.State == StateFailed && o.opts.Strict {
						cancel()
					}
				}
				o.emitTerminal(&res)
				results <- indexedResult{j.idx, res}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, c := range clips {
			select {
			case jobs <- indexed{i, c}:
			case <-ctx.Done():
				// Report the rest as skipped without processing.
				for _, rest := range clips[i:] {
					res := Result{Clip: rest, State: StateSkipped, Err: ctx.Err()}
					o.emitTerminal(&res)
					results <- indexedResult{i, res}
					i++
				}
				return
			}
		}
	}()

	// Single collector keeps Summary mutation on one goroutine.
	ordered := make([]Result, len(clips))
	for range clips {
		r := <-results
		ordered[r.idx] = r.res
	}
	wg.Wait()
	close(results)

	var sum Summary
	sum.Results = ordered
	for i := range ordered {
		switch ordered[i].State {
		case StateDone:
			sum.Done++
		case StateUnchanged:
			sum.Unchanged++
		case StateSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}
	return sum
}

// process runs one clip through the whole pipeline.
func (o *Orchestrator) process(ctx context.Context, clip source.Clip) Result {
	start := time.Now()
	res := Result{Clip: clip}
	fail := func(err error) Result {
		res.State = StateFailed
		res.Err = err
		res.Elapsed = time.Since(start)
		o.logger.Warn("clip failed",
			zap.String("clip", clip.Name),
			zap.Error(err))
		return res
	}

	o.emit(clip, StateFetching)
	var data []byte
	attempts, err := withRetry(ctx, o.opts.Retries, func() error {
		o.pace()
		var ferr error
		data, ferr = o.src.Fetch(ctx, clip)
		return ferr
	})
	res.Attempts = attempts
	if err != nil {
		return fail(err)
	}

	o.emit(clip, StateDecoding)
	buf, err := o.codec.Decode(data, clip.Format)
	if err != nil {
		return fail(err)
	}

	o.emit(clip, StateMeasuring)
	res.Before, err = o.meter.Measure(buf)
	if err != nil {
		return fail(err)
	}

	o.emit(clip, StatePlanning)
	res.Plan = o.planner.PlanFor(res.Before)
	o.logger.Debug("planned gain",
		zap.String("clip", clip.Name),
		zap.Float64("loudness_lufs", res.Before.Integrated),
		zap.Float64("peak_dbfs", res.Before.Peak),
		zap.Float64("gain_db", res.Plan.GainDB),
		zap.Bool("limited", res.Plan.Limited))

	if res.Plan.Unchanged {
		res.State = StateUnchanged
		res.After = res.Before
		res.Elapsed = time.Since(start)
		return res
	}
	if o.opts.DryRun {
		res.State = StateDone
		res.After = res.Before
		res.Elapsed = time.Since(start)
		return res
	}

	o.emit(clip, StateApplying)
	out := o.applier.Apply(buf, res.Plan, res.Before.TruePeak)
	if res.After, err = o.meter.Measure(out); err != nil {
		return fail(err)
	}

	o.emit(clip, StateEncoding)
	outFormat := o.codec.EncodeFormat(clip.Format)
	encoded, err := o.codec.Encode(out, outFormat)
	if err != nil {
		return fail(err)
	}

	o.emit(clip, StateUploading)
	attempts, err = withRetry(ctx, o.opts.Retries, func() error {
		o.pace()
		return o.src.Store(ctx, clip, encoded, outFormat)
	})
	res.Attempts += attempts - 1
	if err != nil {
		return fail(err)
	}

	res.State = StateDone
	res.Elapsed = time.Since(start)
	o.logger.Info("clip normalized",
		zap.String("clip", clip.Name),
		zap.Float64("gain_db", res.Plan.GainDB),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// pace enforces the minimum delay between source requests across workers.
func (o *Orchestrator) pace() {
	if o.opts.MinRequestDelay <= 0 {
		return
	}
	o.paceMu.Lock()
	defer o.paceMu.Unlock()
	if wait := o.opts.MinRequestDelay - time.Since(o.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	o.lastCall = time.Now()
}

func (o *Orchestrator) emit(clip source.Clip, s State) {
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(Event{Clip: clip, State: s})
	}
}

func (o *Orchestrator) emitTerminal(r *Result) {
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(Event{Clip: r.Clip, State: r.State, Result: r})
	}
}

// SortResults orders results by name for stable table output.
func SortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Clip.Name < results[j].Clip.Name
	})
}
