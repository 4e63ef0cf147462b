// Package app wires the growth-curve stages into an explicit pipeline:
// raw curves -> smoothing/refinement -> log-phase detection -> parameter
// extraction -> replicate aggregation. Each stage is a pure function of its
// inputs; recomputation happens by re-invoking a stage, never by implicit
// dependency tracking.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gogrowth/domain/curve"
	"gogrowth/internal"
	"gogrowth/internal/band"
	"gogrowth/internal/config"
	"gogrowth/internal/errors"
	"gogrowth/internal/logphase"
	"gogrowth/internal/params"
	"gogrowth/internal/smoothing"
	"gogrowth/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// samplePalette colors samples in load order, wrapping around for large
// plates.
var samplePalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Pipeline owns the working set of one plate run: sample curves with their
// smoothing histories, the keyed log-phase store, and the configured stage
// parameters. All mutation goes through the pipeline's mutex with atomic
// replace semantics; a superseded computation never commits partial state.
type Pipeline struct {
	cfg    *config.Config
	logger *internal.Logger
	rng    ports.RNGPort

	phases *curve.LogPhaseStore
	sem    *semaphore.Weighted

	mu         sync.RWMutex
	generation uint64
	samples    map[string]*curve.SampleCurve
	wellSmooth map[string]map[string][]curve.Point
	source     curve.SourceInfo
}

// NewPipeline creates an empty pipeline with the given stage configuration.
func NewPipeline(cfg *config.Config, logger *internal.Logger, rng ports.RNGPort) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		rng:        rng,
		phases:     curve.NewLogPhaseStore(),
		sem:        semaphore.NewWeighted(int64(cfg.Band.Concurrency)),
		samples:    make(map[string]*curve.SampleCurve),
		wellSmooth: make(map[string]map[string][]curve.Point),
	}
}

// RefineOptions exposes the configured smoothing parameters.
func (p *Pipeline) RefineOptions() smoothing.RefineOptions {
	return smoothing.RefineOptions{
		Smoothing: smoothing.Options{
			Span:             p.cfg.Smoothing.Span,
			Degree:           p.cfg.Smoothing.Degree,
			RobustIterations: p.cfg.Smoothing.RobustIterations,
		},
		MaxPasses:      p.cfg.Smoothing.MaxPasses,
		ConvergenceTol: p.cfg.Smoothing.ConvergenceTol,
	}
}

func (p *Pipeline) detectOptions() logphase.Options {
	return logphase.Options{
		WindowSize: p.cfg.Detection.WindowSize,
		R2Min:      p.cfg.Detection.R2Min,
		ODMin:      p.cfg.Detection.ODMin,
		FracKMax:   p.cfg.Detection.FracKMax,
		MuRelMin:   p.cfg.Detection.MuRelMin,
		MuRelMax:   p.cfg.Detection.MuRelMax,
	}
}

func (p *Pipeline) bandOptions(mode band.Mode) band.Options {
	if mode == "" {
		mode = band.Mode(p.cfg.Band.Mode)
	}
	return band.Options{
		Refine:            p.RefineOptions(),
		Mode:              mode,
		ExactLimit:        p.cfg.Band.ExactLimit,
		MonteCarloSamples: p.cfg.Band.MonteCarloSamples,
		Concurrency:       int64(p.cfg.Band.Concurrency),
		RNG:               p.rng,
		Seed:              p.cfg.Band.Seed,
	}
}

// LoadDataset replaces the working set with the grouped wells of a
// blank-corrected dataset. Histories restart at the raw aggregated curve and
// all log-phase selections are cleared. It returns the number of samples
// with at least one usable well.
func (p *Pipeline) LoadDataset(ds *curve.Dataset) int {
	grouped := ds.GroupWells()
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	samples := make(map[string]*curve.SampleCurve, len(names))
	for i, name := range names {
		wells := grouped[name]
		raw := curve.CurveState{Label: "raw", Points: aggregateWells(wells)}
		samples[name] = &curve.SampleCurve{
			Sample:  name,
			Color:   samplePalette[i%len(samplePalette)],
			Wells:   wells,
			History: curve.NewHistory(raw),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.samples = samples
	p.wellSmooth = make(map[string]map[string][]curve.Point)
	p.source = curve.SourceInfo{
		File:    ds.File,
		RunID:   uuid.NewString(),
		PlateID: ds.PlateID,
	}
	p.phases = curve.NewLogPhaseStore()
	return len(samples)
}

// aggregateWells concatenates all well points sorted by time; this is the
// raw curve the first smoothing pass consumes and the band's main input.
func aggregateWells(wells []curve.WellCurve) []curve.Point {
	var all []curve.Point
	for _, w := range wells {
		all = append(all, w.Points...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].X < all[j].X })
	return all
}

// SampleNames lists the loaded samples in sorted order.
func (p *Pipeline) SampleNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.samples))
	for name := range p.samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SmoothOutcome describes one sample's smoothing run.
type SmoothOutcome struct {
	Sample    string `json:"sample"`
	Passes    int    `json:"passes"`
	Converged bool   `json:"converged"`
	Err       string `json:"error,omitempty"`
}

// SmoothAll runs the refinement loop over every sample's current curve and
// every well, bounded by the configured concurrency. Results commit
// atomically; if another load or smooth supersedes this run before it
// finishes, nothing is applied. One sample's failure never aborts its
// siblings.
func (p *Pipeline) SmoothAll(ctx context.Context) ([]SmoothOutcome, error) {
	// Capture an immutable view of the working set so the fanned-out
	// goroutines never read a history another run is committing to.
	p.mu.Lock()
	p.generation++
	gen := p.generation
	work := make(map[string]sampleInput, len(p.samples))
	for name, sc := range p.samples {
		work[name] = sampleInput{
			current: sc.History.Current().Points,
			wells:   sc.Wells,
			passSeq: sc.History.Len(),
		}
	}
	p.mu.Unlock()

	opts := p.RefineOptions()

	names := make([]string, 0, len(work))
	for name := range work {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]sampleSmooth, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(i int, name string, in sampleInput) {
			defer wg.Done()
			defer p.sem.Release(1)
			results[i] = p.smoothSample(name, in, opts)
		}(i, name, work[name])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		// A newer load or smoothing run superseded this one.
		p.logger.Warn("smoothing run superseded, discarding results")
		return nil, errors.New(errors.CodeValidationError, "smoothing run superseded")
	}
	outcomes := make([]SmoothOutcome, 0, len(results))
	for i, res := range results {
		outcomes = append(outcomes, res.outcome)
		if res.state == nil {
			continue
		}
		p.samples[names[i]].History.Push(*res.state)
		p.wellSmooth[names[i]] = res.wells
	}
	return outcomes, nil
}

// sampleInput is the immutable view of one sample a smoothing run works on.
type sampleInput struct {
	current []curve.Point
	wells   []curve.WellCurve
	passSeq int
}

// sampleSmooth carries one sample's uncommitted smoothing output.
type sampleSmooth struct {
	outcome SmoothOutcome
	state   *curve.CurveState
	wells   map[string][]curve.Point
}

func (p *Pipeline) smoothSample(name string, in sampleInput, opts smoothing.RefineOptions) sampleSmooth {
	out := sampleSmooth{outcome: SmoothOutcome{Sample: name}}

	res, err := smoothing.Refine(in.current, opts)
	if err != nil {
		p.logger.Warn("sample %s: smoothing failed: %v", name, err)
		out.outcome.Err = err.Error()
		return out
	}
	out.outcome.Passes = res.Passes
	out.outcome.Converged = res.Converged
	if !res.Converged {
		p.logger.Warn("sample %s: refinement did not converge within %d passes", name, opts.MaxPasses)
	}

	converged := 0.0
	if res.Converged {
		converged = 1
	}
	out.state = &curve.CurveState{
		Label:  fmt.Sprintf("loess span=%v degree=%d pass %d", opts.Smoothing.Span, opts.Smoothing.Degree, in.passSeq),
		Points: res.Points,
		Diagnostics: map[string]float64{
			"passes":        float64(res.Passes),
			"converged":     converged,
			"window":        float64(res.Diagnostics.Window),
			"residualScale": res.Diagnostics.ResidualScale,
		},
	}

	out.wells = make(map[string][]curve.Point, len(in.wells))
	for _, w := range in.wells {
		wres, err := smoothing.Refine(w.Points, opts)
		if err != nil {
			p.logger.Warn("sample %s well %s: smoothing failed: %v", name, w.Well, err)
			continue
		}
		out.wells[w.Well] = wres.Points
	}
	return out
}

// Undo steps one sample's history back one smoothing pass.
func (p *Pipeline) Undo(sample string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sc, ok := p.samples[sample]
	if !ok {
		return errors.NotFound("sample " + sample)
	}
	if !sc.History.Undo() {
		return errors.ValidationError("already at the raw curve")
	}
	return nil
}

// DetectPhase runs log-phase detection on a sample's latest smoothed curve
// and records the result. A manual selection stays in place unless force is
// set. Not finding a phase is a normal outcome, reported in the Detection.
func (p *Pipeline) DetectPhase(sample string, force bool) (logphase.Detection, error) {
	p.mu.RLock()
	sc, ok := p.samples[sample]
	var pts []curve.Point
	if ok {
		pts = sc.History.Current().Points
	}
	p.mu.RUnlock()
	if !ok {
		return logphase.Detection{}, errors.NotFound("sample " + sample)
	}

	det, err := logphase.Detect(pts, p.detectOptions())
	if err != nil {
		return logphase.Detection{}, err
	}
	if det.Detected() {
		p.phases.SetAuto(sample, *det.StartTime, *det.EndTime, force)
	}
	return det, nil
}

// DetectAll runs detection over every sample. Samples without a detectable
// phase simply keep no selection.
func (p *Pipeline) DetectAll(force bool) map[string]logphase.Detection {
	out := make(map[string]logphase.Detection)
	for _, name := range p.SampleNames() {
		det, err := p.DetectPhase(name, force)
		if err != nil {
			p.logger.Warn("sample %s: detection failed: %v", name, err)
			continue
		}
		out[name] = det
	}
	return out
}

// SetManualPhase records a user-specified log-phase range for a sample.
func (p *Pipeline) SetManualPhase(sample string, start, end float64) error {
	if start >= end {
		return errors.InvalidInput("logPhase", "start must be < end")
	}
	p.mu.RLock()
	_, ok := p.samples[sample]
	p.mu.RUnlock()
	if !ok {
		return errors.NotFound("sample " + sample)
	}
	p.phases.SetManual(sample, start, end)
	return nil
}

// ClearPhase removes a sample's log-phase selection.
func (p *Pipeline) ClearPhase(sample string) {
	p.phases.Clear(sample)
}

// Phases returns a copy of all current log-phase selections.
func (p *Pipeline) Phases() map[string]curve.LogPhaseSelection {
	return p.phases.Snapshot()
}

// ComputeParameters extracts growth parameters per well and per sample and
// aggregates replicate spreads. Samples or wells without usable curves are
// skipped, which callers observe as a count mismatch against the loaded
// sample count, not as an error.
func (p *Pipeline) ComputeParameters(ctx context.Context, thresholds []float64) (*curve.ParameterExport, error) {
	p.mu.RLock()
	samples := make(map[string]sampleInput, len(p.samples))
	for name, sc := range p.samples {
		samples[name] = sampleInput{
			current: sc.History.Current().Points,
			wells:   sc.Wells,
		}
	}
	wellSmooth := make(map[string]map[string][]curve.Point, len(p.wellSmooth))
	for name, wells := range p.wellSmooth {
		wellSmooth[name] = wells
	}
	source := p.source
	p.mu.RUnlock()

	phases := p.phases.Snapshot()
	opts := p.RefineOptions()

	export := &curve.ParameterExport{
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Thresholds:  thresholds,
	}

	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in := samples[name]
		cur := in.current
		if len(cur) == 0 {
			p.logger.Warn("sample %s: no usable points, skipping parameters", name)
			continue
		}

		var phase *params.LogPhase
		if sel, ok := phases[name]; ok {
			phase = &params.LogPhase{Start: sel.Start, End: sel.End}
		}

		wellResults := make([]curve.WellParameterResult, 0, len(in.wells))
		for _, w := range in.wells {
			wellPts := wellSmooth[name][w.Well]
			if wellPts == nil {
				// Smoothing has not run for this well yet; refine on demand
				// so well parameters always reflect a smoothed curve.
				res, err := smoothing.Refine(w.Points, opts)
				if err != nil {
					p.logger.Warn("sample %s well %s: skipping parameters: %v", name, w.Well, err)
					continue
				}
				wellPts = res.Points
			}
			wellResults = append(wellResults, curve.WellParameterResult{
				Sample:     name,
				Well:       w.Well,
				Replicate:  w.Replicate,
				Parameters: params.Extract(wellPts, phase, thresholds),
			})
		}

		result := curve.ParameterResult{
			Sample:       name,
			Replicates:   len(wellResults),
			Parameters:   params.Extract(cur, phase, thresholds),
			LambdaMethod: params.LambdaMethod,
			Stats:        params.Aggregate(wellResults),
		}
		export.Results = append(export.Results, result)
		export.WellResults = append(export.WellResults, wellResults...)
	}
	return export, nil
}

// EstimateBand builds the display-only confidence band for one sample's
// replicate wells. Nil with no error means fewer than two wells.
func (p *Pipeline) EstimateBand(ctx context.Context, sample string, mode band.Mode) (*band.Band, error) {
	p.mu.RLock()
	sc, ok := p.samples[sample]
	var wells []curve.WellCurve
	if ok {
		wells = sc.Wells
	}
	p.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("sample " + sample)
	}
	return band.Estimate(ctx, wells, p.bandOptions(mode))
}

// Snapshot returns the current working set for export: sample curves in
// sorted order, log-phase selections, and the payload source block.
func (p *Pipeline) Snapshot() ([]curve.SampleCurve, map[string]curve.LogPhaseSelection, curve.SourceInfo) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.samples))
	for name := range p.samples {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]curve.SampleCurve, 0, len(names))
	for _, name := range names {
		sc := *p.samples[name]
		// Materialize the history inside the lock; the caller walks it
		// while a later smoothing run may push new states.
		sc.History = sc.History.Clone()
		out = append(out, sc)
	}
	return out, p.phases.Snapshot(), p.source
}

// SmoothingInfo describes the configured smoother for payload headers.
func (p *Pipeline) SmoothingInfo() curve.SmoothingInfo {
	return curve.SmoothingInfo{Span: p.cfg.Smoothing.Span, Degree: p.cfg.Smoothing.Degree}
}
