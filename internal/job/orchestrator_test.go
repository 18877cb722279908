package job_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docenhance/internal/document"
	"docenhance/internal/job"
	"docenhance/internal/notify"
	"docenhance/internal/ocr"
	"docenhance/internal/store"
)

// fakeSource serves fixed bytes for any reference and stamps the content
// identifier the way the filesystem source does.
type fakeSource struct {
	data map[string][]byte
}

func (s *fakeSource) Load(_ context.Context, ref document.Reference) (*document.Document, error) {
	data, ok := s.data[ref.Location]
	if !ok {
		return nil, document.ErrNotFound
	}
	loaded := ref
	loaded.ContentID = document.ContentID(data)
	return &document.Document{Ref: loaded, Data: data, MIMEType: "text/plain"}, nil
}

type fakeEngine struct {
	calls   atomic.Int32
	text    string
	err     error
	errN    int32 // fail the first errN calls, then succeed
	started chan struct{}
	release chan struct{}
}

func (e *fakeEngine) Extract(ctx context.Context, _ *document.Document) (*ocr.Result, error) {
	n := e.calls.Add(1)
	if e.started != nil {
		e.started <- struct{}{}
	}
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ocr.ErrTimeout
		}
	}
	if e.err != nil && (e.errN == 0 || n <= e.errN) {
		return nil, e.err
	}
	return &ocr.Result{Text: e.text, PageCount: 1}, nil
}

func (e *fakeEngine) Close() error { return nil }

type fakeCorrector struct {
	calls atomic.Int32
	text  string
	err   error
}

func (c *fakeCorrector) Correct(_ context.Context, _ string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Notify(_ context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) all() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

func testConfig() job.Config {
	return job.Config{
		MaxDocumentBytes: 1 << 20,
		MaxTextBytes:     1 << 20,
		MaxAttempts:      3,
		RetryBackoff:     time.Millisecond,
		RetryBudget:      time.Second,
		TimeoutBase:      5 * time.Second,
		TimeoutPerMB:     time.Second,
		TimeoutCeiling:   10 * time.Second,
	}
}

func newTestOrchestrator(t *testing.T, engine *fakeEngine, corrector *fakeCorrector, notifier notify.Notifier) (*job.Orchestrator, job.Store) {
	t.Helper()
	st := store.NewMemory()
	orch, err := job.NewOrchestrator(testConfig(), job.Deps{
		Source:    &fakeSource{data: map[string][]byte{"doc.txt": []byte("scanned bytes")}},
		Engine:    engine,
		Corrector: corrector,
		Store:     st,
		Notifier:  notifier,
	})
	require.NoError(t, err)
	return orch, st
}

func TestOrchestrator_CompletesPipeline(t *testing.T) {
	engine := &fakeEngine{text: "Teh qick fox."}
	corrector := &fakeCorrector{text: "The quick fox."}
	notifier := &fakeNotifier{}
	orch, st := newTestOrchestrator(t, engine, corrector, notifier)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "doc.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateCompleted, rec.State)
	assert.Equal(t, "Teh qick fox.", rec.RawText)
	assert.Equal(t, "The quick fox.", rec.CorrectedText)
	assert.Equal(t, 1, rec.Attempts)
	assert.Empty(t, rec.LastError)
	require.Len(t, rec.Changes, 2)
	require.NotNil(t, rec.Summary)
	assert.Equal(t, "Fixed 2 spelling error(s).", rec.Summary.Text)

	stored, err := st.Get(context.Background(), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, stored.State)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, string(job.StateCompleted), events[0].State)
}

func TestOrchestrator_TransientFailureRetriesThenFails(t *testing.T) {
	engine := &fakeEngine{err: ocr.ErrTimeout}
	corrector := &fakeCorrector{text: "never"}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "doc.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateFailed, rec.State)
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, int32(3), engine.calls.Load())
	assert.Zero(t, corrector.calls.Load())
	assert.NotEmpty(t, rec.LastError)
}

func TestOrchestrator_RetryBudgetCapsAttempts(t *testing.T) {
	engine := &fakeEngine{err: ocr.ErrUnavailable}
	corrector := &fakeCorrector{text: "never"}

	// Generous attempt ceiling, but a budget smaller than the first backoff
	// delay: the job must give up after one call instead of spinning.
	cfg := testConfig()
	cfg.MaxAttempts = 100
	cfg.RetryBackoff = 50 * time.Millisecond
	cfg.RetryBudget = 10 * time.Millisecond

	orch, err := job.NewOrchestrator(cfg, job.Deps{
		Source:    &fakeSource{data: map[string][]byte{"doc.txt": []byte("scanned bytes")}},
		Engine:    engine,
		Corrector: corrector,
		Store:     store.NewMemory(),
	})
	require.NoError(t, err)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "doc.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateFailed, rec.State)
	assert.Equal(t, 1, rec.Attempts)
	assert.Less(t, rec.Attempts, cfg.MaxAttempts)
	assert.Equal(t, int32(1), engine.calls.Load())
	assert.Zero(t, corrector.calls.Load())
	assert.NotEmpty(t, rec.LastError)
}

func TestOrchestrator_TransientFailureThenRecovery(t *testing.T) {
	engine := &fakeEngine{text: "fine text", err: ocr.ErrUnavailable, errN: 2}
	corrector := &fakeCorrector{text: "fine text"}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "doc.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateCompleted, rec.State)
	assert.Equal(t, int32(3), engine.calls.Load())
}

func TestOrchestrator_PermanentFailureNotRetried(t *testing.T) {
	engine := &fakeEngine{err: ocr.ErrMalformed}
	corrector := &fakeCorrector{text: "never"}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "doc.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateFailed, rec.State)
	assert.Equal(t, int32(1), engine.calls.Load())
	assert.Zero(t, corrector.calls.Load())
}

func TestOrchestrator_OversizedDocumentFailsWithoutAdapters(t *testing.T) {
	engine := &fakeEngine{text: "never"}
	corrector := &fakeCorrector{text: "never"}
	st := store.NewMemory()
	cfg := testConfig()
	cfg.MaxDocumentBytes = 4
	orch, err := job.NewOrchestrator(cfg, job.Deps{
		Source:    &fakeSource{data: map[string][]byte{"big.txt": []byte("more than four bytes")}},
		Engine:    engine,
		Corrector: corrector,
		Store:     st,
	})
	require.NoError(t, err)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "big.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateFailed, rec.State)
	assert.Zero(t, engine.calls.Load())
	assert.Zero(t, corrector.calls.Load())
	assert.Contains(t, rec.LastError, "size limit")
}

func TestOrchestrator_EmptyDocumentCompletes(t *testing.T) {
	engine := &fakeEngine{err: ocr.ErrEmptyDocument}
	corrector := &fakeCorrector{text: "never"}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "doc.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateCompleted, rec.State)
	assert.Empty(t, rec.RawText)
	assert.Empty(t, rec.CorrectedText)
	require.NotNil(t, rec.Summary)
	assert.Equal(t, "No text detected in document", rec.Summary.Text)
	assert.Zero(t, corrector.calls.Load())
}

func TestOrchestrator_UnchangedContentServedFromStore(t *testing.T) {
	engine := &fakeEngine{text: "stable text"}
	corrector := &fakeCorrector{text: "stable text"}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	ref := document.Reference{Location: "doc.txt"}
	first, err := orch.Start(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, job.StateCompleted, first.State)

	second, err := orch.Start(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, job.StateCompleted, second.State)
	assert.Equal(t, first.ID, second.ID, "unchanged content must not be reprocessed")
	assert.Equal(t, int32(1), engine.calls.Load())
	assert.Equal(t, int32(1), corrector.calls.Load())
}

func TestOrchestrator_ChangedContentReprocessed(t *testing.T) {
	src := &fakeSource{data: map[string][]byte{"doc.txt": []byte("version one")}}
	engine := &fakeEngine{text: "text"}
	corrector := &fakeCorrector{text: "text"}
	st := store.NewMemory()
	orch, err := job.NewOrchestrator(testConfig(), job.Deps{
		Source: src, Engine: engine, Corrector: corrector, Store: st,
	})
	require.NoError(t, err)

	ref := document.Reference{Location: "doc.txt"}
	first, err := orch.Start(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, job.StateCompleted, first.State)

	src.data["doc.txt"] = []byte("version two")
	second, err := orch.Start(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, job.StateCompleted, second.State)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestOrchestrator_ConcurrentStartsJoinOneJob(t *testing.T) {
	engine := &fakeEngine{
		text:    "shared text",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	corrector := &fakeCorrector{text: "shared text"}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	ref := document.Reference{Location: "doc.txt"}
	results := make(chan *job.Record, 2)
	for i := 0; i < 2; i++ {
		go func() {
			rec, err := orch.Start(context.Background(), ref)
			assert.NoError(t, err)
			results <- rec
		}()
	}

	<-engine.started
	close(engine.release)

	a, b := <-results, <-results
	assert.Equal(t, job.StateCompleted, a.State)
	assert.Equal(t, job.StateCompleted, b.State)
	assert.Equal(t, a.ID, b.ID, "concurrent starts must share one job")
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestOrchestrator_CancelDiscardsLateResults(t *testing.T) {
	engine := &fakeEngine{
		text:    "late text",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	corrector := &fakeCorrector{text: "late text"}
	orch, st := newTestOrchestrator(t, engine, corrector, nil)

	ref := document.Reference{Location: "doc.txt"}
	_, err := orch.Enqueue(context.Background(), ref)
	require.NoError(t, err)
	<-engine.started

	rec, err := orch.Cancel(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, job.StateCancelled, rec.State)

	close(engine.release)
	require.Eventually(t, func() bool {
		stored, err := st.Get(context.Background(), "doc.txt")
		return err == nil && stored.State == job.StateCancelled
	}, time.Second, 10*time.Millisecond)

	stored, err := st.Get(context.Background(), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, job.StateCancelled, stored.State)
	assert.Empty(t, stored.CorrectedText, "late results must be discarded")
	assert.Zero(t, corrector.calls.Load())
}

func TestOrchestrator_EnqueueObservedThroughStore(t *testing.T) {
	engine := &fakeEngine{
		text:    "async text",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	corrector := &fakeCorrector{text: "async text"}
	orch, st := newTestOrchestrator(t, engine, corrector, nil)

	ref := document.Reference{Location: "doc.txt"}
	rec, err := orch.Enqueue(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, rec.State.Terminal())

	<-engine.started
	close(engine.release)

	require.Eventually(t, func() bool {
		stored, err := st.Get(context.Background(), "doc.txt")
		return err == nil && stored.State == job.StateCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestOrchestrator_GetPrefersLiveState(t *testing.T) {
	engine := &fakeEngine{
		text:    "text",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	corrector := &fakeCorrector{text: "text"}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	ref := document.Reference{Location: "doc.txt"}
	_, err := orch.Enqueue(context.Background(), ref)
	require.NoError(t, err)
	<-engine.started

	rec, err := orch.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, rec.State.Terminal())

	close(engine.release)
	require.Eventually(t, func() bool {
		rec, err := orch.Get(context.Background(), ref)
		return err == nil && rec.State == job.StateCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestOrchestrator_CorrectionFailurePreservesRawText(t *testing.T) {
	engine := &fakeEngine{text: "raw ocr text"}
	corrector := &fakeCorrector{err: context.DeadlineExceeded}
	orch, _ := newTestOrchestrator(t, engine, corrector, nil)

	rec, err := orch.Start(context.Background(), document.Reference{Location: "doc.txt"})
	require.NoError(t, err)

	assert.Equal(t, job.StateFailed, rec.State)
	assert.Equal(t, "raw ocr text", rec.RawText, "extracted text survives a correction failure")
	assert.Equal(t, int32(1), engine.calls.Load())
	assert.Equal(t, int32(3), corrector.calls.Load())
}
