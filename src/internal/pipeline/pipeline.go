// Package pipeline runs windows through extraction in order, stitches
// citations cut at window edges back together, validates every finalized
// citation concurrently, then deduplicates and locates the result set.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"refcheck/src/internal/crossref"
	"refcheck/src/internal/dedup"
	"refcheck/src/internal/extract"
	"refcheck/src/internal/locate"
	"refcheck/src/internal/metrics"
	"refcheck/src/internal/pubmed"
	"refcheck/src/internal/ratelimit"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/validate"
	"refcheck/src/internal/window"
)

// Extraction dispositions, used as metric labels.
const (
	dispComplete   = "complete"
	dispMerged     = "merged"
	dispOrphan     = "orphan"
	dispPending    = "pending"
	dispSuperseded = "superseded"
	dispUnmerged   = "unmerged"
	dispTruncated  = "truncated"
)

// Validator assigns a verdict to one citation.
type Validator interface {
	Validate(ctx context.Context, c schema.RawExtraction) (validate.Outcome, error)
}

// Settings configures a run.
type Settings struct {
	WindowSize int
	Overlap    int
	Extraction ratelimit.Options
	Validation ratelimit.Options
	// Extract configures the default extraction client, prompt template included.
	Extract extract.Config
	// Contact is sent to the authorities as the polite-pool email.
	Contact      string
	PubMedAPIKey string
}

// DefaultSettings returns the stock window and rate settings.
func DefaultSettings() Settings {
	return Settings{
		WindowSize: window.DefaultWindowSize,
		Overlap:    window.DefaultOverlap,
		Extraction: ratelimit.Options{Name: "extraction", MaxConcurrent: 1, RequestsPerMinute: 20},
		Validation: ratelimit.Options{Name: "validation", MaxConcurrent: 10, RequestsPerMinute: 120},
	}
}

// Progress is reported after every window.
type Progress struct {
	Window      int
	Total       int
	Extractions int
}

// Callbacks observe a run; any may be nil. OnExtraction may be called from
// several goroutines but never concurrently with itself.
type Callbacks struct {
	OnProgress    func(Progress)
	OnWindowStart func(w schema.Window, total int)
	OnExtraction  func(e schema.Extraction)
	OnWindowError func(w schema.Window, err error)
}

// Input is everything a run needs. Extractor and Validator default to the
// HTTP clients built from Settings.
type Input struct {
	State     *State
	Settings  Settings
	FullText  string
	Callbacks Callbacks
	Extractor extract.Extractor
	Validator Validator
	Logger    *zap.Logger
}

// Result summarizes a run.
type Result struct {
	TotalExtractions int
	Cancelled        bool
	Windows          int
	Removed          []string
}

type runner struct {
	ctx       context.Context
	in        Input
	st        *State
	logger    *zap.Logger
	extractor extract.Extractor
	validator Validator
	extLim    *ratelimit.Limiter
	valLim    *ratelimit.Limiter

	wg   sync.WaitGroup
	cbMu sync.Mutex
}

// Run processes every window of in.FullText. Cancellation is reported in
// Result.Cancelled, not as an error.
func Run(ctx context.Context, in Input) (Result, error) {
	if in.State == nil {
		return Result{}, errors.New("pipeline: state is required")
	}
	r := &runner{ctx: ctx, in: in, st: in.State, logger: in.Logger}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.extractor = in.Extractor
	if r.extractor == nil {
		r.extractor = extract.New(in.Settings.Extract, nil)
	}
	r.validator = in.Validator
	if r.validator == nil {
		r.validator = validate.New(validate.Options{
			CrossRef: crossref.New(nil),
			PubMed:   pubmed.New(nil, in.Settings.PubMedAPIKey),
			Contact:  in.Settings.Contact,
			Logger:   r.logger,
		})
	}
	r.extLim = ratelimit.New(withName(in.Settings.Extraction, "extraction"))
	r.valLim = ratelimit.New(withName(in.Settings.Validation, "validation"))
	defer r.extLim.Close()
	defer r.valLim.Close()
	return r.run(), nil
}

func withName(o ratelimit.Options, name string) ratelimit.Options {
	if o.Name == "" {
		o.Name = name
	}
	return o
}

func (r *runner) run() Result {
	windows := window.Create(r.in.FullText, r.in.Settings.WindowSize, r.in.Settings.Overlap)
	res := Result{Windows: len(windows)}
	r.logger.Info("run started",
		zap.String("run_id", r.st.RunID),
		zap.Int("windows", len(windows)),
		zap.Int("chars", len([]rune(r.in.FullText))))

	var pending []*schema.Extraction
	for i, w := range windows {
		if r.ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if cb := r.in.Callbacks.OnWindowStart; cb != nil {
			cb(w, len(windows))
		}
		batch, err := ratelimit.Schedule(r.ctx, r.extLim, func(ctx context.Context) ([]schema.RawExtraction, error) {
			return r.extractor.Extract(ctx, w)
		})
		if r.ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if err != nil {
			pending = r.windowFailed(w, pending, err)
			r.progress(w, len(windows))
			continue
		}
		metrics.WindowsProcessed.WithLabelValues("ok").Inc()
		r.logger.Debug("window extracted", zap.Int("window", w.Index+1), zap.Int("citations", len(batch)))
		pending = r.reconcile(w, i == len(windows)-1, batch, pending)
		r.progress(w, len(windows))
	}
	if !res.Cancelled {
		for _, p := range pending {
			r.finalize(p, dispUnmerged)
		}
	}

	r.wg.Wait()
	res.Removed = r.finish()
	if r.ctx.Err() != nil {
		res.Cancelled = true
	}
	for _, e := range r.st.Extractions {
		if !e.IsError() {
			res.TotalExtractions++
		}
	}
	r.logger.Info("run finished",
		zap.String("run_id", r.st.RunID),
		zap.Int("extractions", res.TotalExtractions),
		zap.Int("duplicates_removed", len(res.Removed)),
		zap.Bool("cancelled", res.Cancelled))
	return res
}

// reconcile applies the merge rules to one window's batch and returns the
// fragments to hold for the next window. Pending fragments from the previous
// window that nothing claimed are finalized as they stand.
func (r *runner) reconcile(w schema.Window, last bool, batch []schema.RawExtraction, pending []*schema.Extraction) []*schema.Extraction {
	var next []*schema.Extraction
	for _, raw := range batch {
		switch {
		case !raw.IsComplete() && raw.Position == schema.PositionStart:
			if j := findPending(pending, raw, canMerge); j >= 0 {
				p := pending[j]
				pending = append(pending[:j], pending[j+1:]...)
				Merge(&p.RawExtraction, raw)
				p.WindowIndex = w.Index + 1
				r.finalize(p, dispMerged)
				continue
			}
			r.finalize(r.newExtraction(raw, w), dispOrphan)

		case !raw.IsComplete() && raw.Position == schema.PositionEnd && !last:
			metrics.Extractions.WithLabelValues(dispPending).Inc()
			next = append(next, r.newExtraction(raw, w))

		case raw.IsComplete():
			if j := findPending(pending, raw, supersedes); j >= 0 {
				dropped := pending[j]
				pending = append(pending[:j], pending[j+1:]...)
				metrics.Extractions.WithLabelValues(dispSuperseded).Inc()
				r.logger.Debug("pending citation superseded",
					zap.String("id", dropped.ID), zap.Int("window", w.Index+1))
			}
			r.finalize(r.newExtraction(raw, w), dispComplete)

		default:
			r.finalize(r.newExtraction(raw, w), dispTruncated)
		}
	}
	for _, p := range pending {
		r.finalize(p, dispUnmerged)
	}
	return next
}

// progress reports w as processed, whether it succeeded or failed.
func (r *runner) progress(w schema.Window, total int) {
	cb := r.in.Callbacks.OnProgress
	if cb == nil {
		return
	}
	r.st.mu.Lock()
	n := len(r.st.Extractions)
	r.st.mu.Unlock()
	cb(Progress{Window: w.Index + 1, Total: total, Extractions: n})
}

func findPending(pending []*schema.Extraction, raw schema.RawExtraction, match func(end, other schema.RawExtraction) bool) int {
	for j, p := range pending {
		if match(p.RawExtraction, raw) {
			return j
		}
	}
	return -1
}

// windowFailed flushes every pending fragment unmerged and records an error
// entry for w.
func (r *runner) windowFailed(w schema.Window, pending []*schema.Extraction, err error) []*schema.Extraction {
	metrics.WindowsProcessed.WithLabelValues("error").Inc()
	r.logger.Warn("window extraction failed", zap.Int("window", w.Index+1), zap.Error(err))
	for _, p := range pending {
		r.finalize(p, dispUnmerged)
	}
	e := r.newExtraction(schema.RawExtraction{}, w)
	e.Error = err.Error()
	r.st.appendExtraction(e)
	r.st.appendResult(e)
	r.emit(e)
	if cb := r.in.Callbacks.OnWindowError; cb != nil {
		cb(w, err)
	}
	return nil
}

func (r *runner) newExtraction(raw schema.RawExtraction, w schema.Window) *schema.Extraction {
	id, idx := r.st.identity()
	return &schema.Extraction{
		RawExtraction: raw,
		ID:            id,
		Index:         idx,
		WindowIndex:   w.Index + 1,
		ColorIndex:    idx % PaletteSize,
	}
}

// finalize records e and dispatches its validation.
func (r *runner) finalize(e *schema.Extraction, disposition string) {
	metrics.Extractions.WithLabelValues(disposition).Inc()
	r.st.appendExtraction(e)
	raw := e.RawExtraction
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		out, err := ratelimit.Schedule(r.ctx, r.valLim, func(ctx context.Context) (validate.Outcome, error) {
			return r.validator.Validate(ctx, raw)
		})
		if r.ctx.Err() != nil {
			return
		}
		if err != nil {
			out = validate.Outcome{Status: schema.StatusInvalid, Message: err.Error()}
		}
		r.st.mu.Lock()
		out.Apply(e)
		r.st.Results = append(r.st.Results, e)
		r.st.mu.Unlock()
		r.emit(e)
	}()
}

func (r *runner) emit(e *schema.Extraction) {
	cb := r.in.Callbacks.OnExtraction
	if cb == nil {
		return
	}
	r.st.mu.Lock()
	cp := *e
	r.st.mu.Unlock()
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	cb(cp)
}

// finish deduplicates, locates and reindexes once every validation settled.
func (r *runner) finish() []string {
	r.st.mu.Lock()
	var removed []string
	r.st.Extractions, r.st.Results, removed = dedup.Run(r.st.Extractions, r.st.Results)
	loc := locate.New(r.in.FullText)
	for _, e := range r.st.Extractions {
		loc.Locate(e)
	}
	r.st.mu.Unlock()

	if len(removed) > 0 {
		metrics.DuplicatesRemoved.Add(float64(len(removed)))
		r.logger.Info("duplicates removed", zap.Strings("ids", removed))
	}
	r.st.Rebuild()
	return removed
}
