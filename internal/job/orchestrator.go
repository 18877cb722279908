package job

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docenhance/internal/align"
	"docenhance/internal/classify"
	"docenhance/internal/correct"
	"docenhance/internal/document"
	"docenhance/internal/logger"
	"docenhance/internal/notify"
	"docenhance/internal/ocr"
)

// Deps bundles the orchestrator's collaborators. Notifier and Classifier
// are optional.
type Deps struct {
	Source     document.Source
	Engine     ocr.Engine
	Corrector  correct.Corrector
	Classifier *classify.Classifier
	Store      Store
	Notifier   notify.Notifier
}

// Orchestrator drives enhancement jobs through the state machine. It
// guarantees at most one running job per document reference and is the only
// writer to the store.
type Orchestrator struct {
	cfg        Config
	deps       Deps
	classifier *classify.Classifier
	log        zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*running
}

// running is one in-flight job. Its record is guarded by mu; done closes
// when the job reaches a terminal state.
type running struct {
	mu        sync.Mutex
	rec       *Record
	done      chan struct{}
	cancel    context.CancelFunc
	fromCache bool
}

func (r *running) snapshot() *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Clone()
}

// NewOrchestrator creates an orchestrator with the given policy and
// collaborators.
func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("document source is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("OCR engine is required")
	}
	if deps.Corrector == nil {
		return nil, fmt.Errorf("corrector is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = classify.New(classify.DefaultConfig())
	}
	return &Orchestrator{
		cfg:        cfg.normalize(),
		deps:       deps,
		classifier: classifier,
		log:        logger.WithComponent("orchestrator"),
		inflight:   make(map[string]*running),
	}, nil
}

// Start runs the job for ref and waits for it to finish. A concurrent start
// for the same reference joins the running job; a completed job with
// unchanged content is returned from the store without recomputation.
func (o *Orchestrator) Start(ctx context.Context, ref document.Reference) (*Record, error) {
	r, cached, err := o.dispatch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		// The job keeps running; the caller just stops waiting.
		return r.snapshot(), ctx.Err()
	}
}

// Enqueue starts (or joins) the job without waiting. Completion is observed
// later through the store.
func (o *Orchestrator) Enqueue(ctx context.Context, ref document.Reference) (*Record, error) {
	r, cached, err := o.dispatch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	return r.snapshot(), nil
}

// dispatch returns the in-flight job for ref, a cached completed record, or
// a freshly started job.
func (o *Orchestrator) dispatch(ctx context.Context, ref document.Reference) (*running, *Record, error) {
	key := ref.Key()
	if key == "" {
		return nil, nil, fmt.Errorf("document location is required")
	}

	o.mu.Lock()
	if r, ok := o.inflight[key]; ok {
		o.mu.Unlock()
		o.log.Debug().Str("document", ref.String()).Msg("Joining running job")
		return r, nil, nil
	}

	// A completed record with matching content identity is authoritative;
	// the adapters are not touched.
	if ref.ContentID != "" {
		if cached, err := o.deps.Store.Get(ctx, key); err == nil &&
			cached.State == StateCompleted && cached.Ref.ContentID == ref.ContentID {
			o.mu.Unlock()
			cacheHits.Inc()
			o.log.Debug().Str("document", ref.String()).Msg("Serving cached result")
			return nil, cached, nil
		}
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:        uuid.NewString(),
		Ref:       ref,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	jctx, cancel := context.WithCancel(context.Background())
	r := &running{rec: rec, done: make(chan struct{}), cancel: cancel}
	o.inflight[key] = r
	o.mu.Unlock()

	o.log.Info().
		Str("job_id", rec.ID).
		Str("document", ref.String()).
		Msg("Starting enhancement job")

	go o.run(jctx, r)
	return r, nil, nil
}

// run drives one job from Pending to a terminal state.
func (o *Orchestrator) run(ctx context.Context, r *running) {
	key := r.snapshot().Ref.Key()
	start := time.Now()
	defer func() {
		o.mu.Lock()
		delete(o.inflight, key)
		o.mu.Unlock()
		r.cancel()
		close(r.done)
		o.finish(r, time.Since(start))
	}()

	ref := r.snapshot().Ref
	doc, err := o.deps.Source.Load(ctx, ref)
	if err != nil {
		o.fail(r, fmt.Errorf("document load failed: %w", err))
		return
	}

	// Content identity is only certain after loading. An unchanged document
	// with a completed record needs no reprocessing.
	if cached, cerr := o.deps.Store.Get(ctx, key); cerr == nil &&
		cached.State == StateCompleted && cached.Ref.ContentID == doc.Ref.ContentID {
		cacheHits.Inc()
		r.mu.Lock()
		if !r.rec.State.Terminal() {
			r.rec = cached.Clone()
			r.fromCache = true
		}
		r.mu.Unlock()
		return
	}

	if len(doc.Data) > o.cfg.MaxDocumentBytes {
		o.fail(r, fmt.Errorf("%w: document is %d bytes, limit is %d",
			ocr.ErrTooLarge, len(doc.Data), o.cfg.MaxDocumentBytes))
		return
	}

	if !o.setState(r, func(rec *Record) {
		rec.Ref = doc.Ref
		rec.State = StateExtracting
	}) {
		return
	}

	var extracted *ocr.Result
	err = o.withRetry(ctx, r, len(doc.Data), ocr.Transient, func(cctx context.Context) error {
		out, xerr := o.deps.Engine.Extract(cctx, doc)
		if xerr != nil {
			return xerr
		}
		extracted = out
		return nil
	})
	if errors.Is(err, ocr.ErrEmptyDocument) {
		o.completeEmpty(r)
		return
	}
	if err != nil {
		o.fail(r, err)
		return
	}

	raw := extracted.Text
	if len(raw) > o.cfg.MaxTextBytes {
		o.fail(r, fmt.Errorf("%w: extracted text is %d bytes, limit is %d",
			correct.ErrTooLarge, len(raw), o.cfg.MaxTextBytes))
		return
	}

	if !o.setState(r, func(rec *Record) {
		rec.RawText = raw
		rec.State = StateCorrecting
	}) {
		return
	}

	var corrected string
	err = o.withRetry(ctx, r, len(raw), correct.Transient, func(cctx context.Context) error {
		out, cerr := o.deps.Corrector.Correct(cctx, raw)
		if cerr != nil {
			return cerr
		}
		corrected = out
		return nil
	})
	if err != nil {
		o.fail(r, err)
		return
	}

	if !o.setState(r, func(rec *Record) {
		rec.CorrectedText = corrected
		rec.State = StateAnalyzing
	}) {
		return
	}

	// Analysis is pure and CPU-bound; it is never retried. Any error here is
	// a programming fault surfaced as an internal failure.
	changes, summary, err := o.analyze(raw, corrected)
	if err != nil {
		o.fail(r, fmt.Errorf("internal: %w", err))
		return
	}

	o.setState(r, func(rec *Record) {
		rec.Changes = changes
		rec.Summary = &summary
		rec.State = StateCompleted
		rec.LastError = ""
	})
}

// analyze aligns, classifies and summarizes. Alignment is total over any two
// strings, so failure is a fault, not an input condition.
func (o *Orchestrator) analyze(raw, corrected string) (changes []classify.ChangeRecord, sum classify.Summary, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("analysis panicked: %v", p)
		}
	}()
	spans, aerr := align.AlignWithLimit(raw, corrected, o.cfg.MaxTextBytes)
	if aerr != nil {
		return nil, classify.Summary{}, aerr
	}
	changes = o.classifier.Classify(spans)
	return changes, classify.Summarize(changes), nil
}

// withRetry invokes call with a size-derived deadline, retrying transient
// failures with jittered exponential backoff inside a wall-clock budget.
func (o *Orchestrator) withRetry(ctx context.Context, r *running, sizeBytes int,
	transient func(error) bool, call func(context.Context) error) error {

	budget := time.Now().Add(o.cfg.RetryBudget)
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if !o.setState(r, func(rec *Record) { rec.Attempts = attempt }) {
			return context.Canceled
		}
		cctx, cancel := context.WithTimeout(ctx, o.cfg.timeoutFor(sizeBytes))
		err := call(cctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return lastErr
		}
		if !transient(err) {
			return err
		}
		if attempt == o.cfg.MaxAttempts {
			break
		}
		delay := o.backoff(attempt)
		if time.Now().Add(delay).After(budget) {
			o.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Retry budget exhausted")
			break
		}
		o.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Transient failure, retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}
	return lastErr
}

// backoff doubles per attempt with up to 50% jitter.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.cfg.RetryBackoff << (attempt - 1)
	if d <= 0 {
		return o.cfg.RetryBackoff
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

// setState mutates the record and persists it, unless the job has already
// reached a terminal state (a cancelled job's late results are discarded).
func (o *Orchestrator) setState(r *running, mutate func(*Record)) bool {
	r.mu.Lock()
	if r.rec.State.Terminal() {
		r.mu.Unlock()
		return false
	}
	mutate(r.rec)
	r.rec.UpdatedAt = time.Now().UTC()
	rec := r.rec.Clone()
	r.mu.Unlock()
	o.persist(rec)
	return true
}

func (o *Orchestrator) fail(r *running, err error) {
	o.log.Error().Err(err).Msg("Enhancement job failed")
	o.setState(r, func(rec *Record) {
		rec.State = StateFailed
		rec.LastError = err.Error()
	})
}

// completeEmpty finishes a job whose document contains no readable text.
func (o *Orchestrator) completeEmpty(r *running) {
	sum := classify.Summary{
		Counts: map[classify.Category]int{},
		Text:   "No text detected in document",
	}
	o.setState(r, func(rec *Record) {
		rec.State = StateCompleted
		rec.Summary = &sum
		rec.LastError = ""
	})
}

// persist writes the record with its own deadline; store failures are logged
// but do not change the job's course.
func (o *Orchestrator) persist(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.deps.Store.Put(ctx, rec); err != nil {
		o.log.Error().
			Err(err).
			Str("job_id", rec.ID).
			Str("document", rec.Ref.String()).
			Msg("Failed to persist job record")
	}
}

// finish records metrics and emits the terminal notification.
func (o *Orchestrator) finish(r *running, elapsed time.Duration) {
	rec := r.snapshot()
	if r.fromCache {
		return
	}

	jobsTotal.WithLabelValues(string(rec.State)).Inc()
	jobDuration.Observe(elapsed.Seconds())

	o.log.Info().
		Str("job_id", rec.ID).
		Str("document", rec.Ref.String()).
		Str("state", string(rec.State)).
		Int("attempts", rec.Attempts).
		Dur("elapsed", elapsed).
		Msg("Enhancement job finished")

	if o.deps.Notifier == nil {
		return
	}
	if rec.State != StateCompleted && rec.State != StateFailed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	event := notify.Event{Ref: rec.Ref, State: string(rec.State), Summary: rec.Summary}
	if err := o.deps.Notifier.Notify(ctx, event); err != nil {
		o.log.Warn().Err(err).Msg("Failed to deliver notification")
	}
}

// Cancel marks the job for ref cancelled. In-flight adapter calls are
// abandoned; results arriving late are discarded.
func (o *Orchestrator) Cancel(ctx context.Context, ref document.Reference) (*Record, error) {
	key := ref.Key()

	o.mu.Lock()
	r, ok := o.inflight[key]
	o.mu.Unlock()

	if ok {
		r.mu.Lock()
		if !r.rec.State.Terminal() {
			r.rec.State = StateCancelled
			r.rec.LastError = "cancelled by request"
			r.rec.UpdatedAt = time.Now().UTC()
		}
		rec := r.rec.Clone()
		r.mu.Unlock()
		r.cancel()
		o.persist(rec)
		return rec, nil
	}

	rec, err := o.deps.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !rec.State.Terminal() {
		rec.State = StateCancelled
		rec.LastError = "cancelled by request"
		rec.UpdatedAt = time.Now().UTC()
		if err := o.deps.Store.Put(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Get returns the current record for ref: the live in-flight state when the
// job is running, the stored record otherwise.
func (o *Orchestrator) Get(ctx context.Context, ref document.Reference) (*Record, error) {
	o.mu.Lock()
	r, ok := o.inflight[ref.Key()]
	o.mu.Unlock()
	if ok {
		return r.snapshot(), nil
	}
	return o.deps.Store.Get(ctx, ref.Key())
}

// List returns the stored records, with in-flight jobs overlaid so callers
// see live state.
func (o *Orchestrator) List(ctx context.Context) ([]*Record, error) {
	recs, err := o.deps.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	live := make(map[string]*Record, len(o.inflight))
	for key, r := range o.inflight {
		live[key] = r.snapshot()
	}
	o.mu.Unlock()

	for i, rec := range recs {
		if cur, ok := live[rec.Ref.Key()]; ok {
			recs[i] = cur
			delete(live, rec.Ref.Key())
		}
	}
	for _, cur := range live {
		recs = append(recs, cur)
	}
	return recs, nil
}
