package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/config"
	"github.com/dgallion1/kgest/internal/extract"
	"github.com/dgallion1/kgest/internal/kg"
	"github.com/dgallion1/kgest/internal/search"
	"github.com/dgallion1/kgest/internal/store"
)

const guide = `# Guide

## Databases
PostgreSQL is a relational database that supports JSON columns and full text search.

## Caches
Redis is an in-memory data store that is often used as a cache in front of databases.
`

type fakeExtractor struct {
	mu      sync.Mutex
	prompts []string
	reply   func(call int, prompt string) ([]kg.Triplet, error)
}

func (f *fakeExtractor) ExtractTriplets(_ context.Context, prompt string) ([]kg.Triplet, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts)
	f.mu.Unlock()
	return f.reply(call, prompt)
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// bySection answers with one triplet naming the database or cache in the
// prompt, plus a triplet shared by every section.
func bySection(_ int, prompt string) ([]kg.Triplet, error) {
	ts := []kg.Triplet{{Subject: "Guide", Predicate: "covers", Object: "storage"}}
	switch {
	case strings.Contains(prompt, "PostgreSQL"):
		ts = append(ts, kg.Triplet{Subject: "PostgreSQL", Predicate: "is a", Object: "relational database"})
	case strings.Contains(prompt, "Redis"):
		ts = append(ts, kg.Triplet{Subject: "Redis", Predicate: "is used as", Object: "cache"})
	}
	return ts, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T, ex extract.Extractor, reuse bool) (*Worker, *store.Store, *search.Index) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	idx, err := search.Open("")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	w := NewWorker(
		Deps{Store: st, Index: idx, Extractor: ex, Log: quietLogger()},
		WorkerOptions{ReuseTriplets: reuse, MaxConcurrentExtract: 2},
	)
	w.backoff = func(int) time.Duration { return 0 }
	return w, st, idx
}

func TestWorker_ProcessCompleted(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, st, idx := newTestWorker(t, ex, false)

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Title != "Guide" {
		t.Errorf("expected title %q, got %q", "Guide", snap.Title)
	}
	if snap.Progress.TotalChunks != 2 || snap.Progress.ChunksProcessed != 2 {
		t.Errorf("expected 2/2 chunks, got %d/%d", snap.Progress.ChunksProcessed, snap.Progress.TotalChunks)
	}
	if snap.Progress.TripletsValid != 4 {
		t.Errorf("expected 4 valid triplets, got %d", snap.Progress.TripletsValid)
	}
	// The shared triplet is stored once.
	if snap.Progress.TripletsStored != 3 {
		t.Errorf("expected 3 stored triplets, got %d", snap.Progress.TripletsStored)
	}

	ctx := context.Background()
	doc, err := st.GetDocument(ctx, job.DocID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.ChunkCount != 2 || doc.TripletCount != 3 {
		t.Errorf("expected 2 chunks and 3 triplets, got %d and %d", doc.ChunkCount, doc.TripletCount)
	}
	if doc.Instructions != string(extract.General) {
		t.Errorf("expected instructions %q, got %q", extract.General, doc.Instructions)
	}
	triplets, err := st.Triplets(ctx, job.DocID)
	if err != nil {
		t.Fatalf("triplets: %v", err)
	}
	if triplets[0].Subject != "Guide" || triplets[1].Subject != "PostgreSQL" || triplets[2].Subject != "Redis" {
		t.Errorf("expected triplets in chunk order, got %v", triplets)
	}

	n, err := idx.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 indexed chunks, got %d", n)
	}
	if job.FileData() != nil {
		t.Error("expected file data to be released after processing")
	}
}

func TestWorker_ProcessDuplicate(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, _, _ := newTestWorker(t, ex, false)

	first := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), first)
	second := NewJob("copy.md", "", "", []byte(guide))
	w.Process(context.Background(), second)

	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected status %q, got %q", StatusDupSkipped, snap.Status)
	}
	if snap.DuplicateOf != first.DocID {
		t.Errorf("expected duplicate of %q, got %q", first.DocID, snap.DuplicateOf)
	}
	if ex.calls() != 2 {
		t.Errorf("expected no extraction for the duplicate, got %d calls", ex.calls())
	}
}

func TestWorker_ProcessForceAndInstructions(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, _, _ := newTestWorker(t, ex, false)

	first := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), first)

	forced := NewJob("guide.md", "", "", []byte(guide))
	forced.Force = true
	w.Process(context.Background(), forced)
	if got := forced.Snapshot().Status; got != StatusCompleted {
		t.Errorf("forced: expected status %q, got %q", StatusCompleted, got)
	}

	other := NewJob("guide.md", "", "", []byte(guide))
	other.Instructions = extract.TechRelations
	w.Process(context.Background(), other)
	if got := other.Snapshot().Status; got != StatusCompleted {
		t.Errorf("other preset: expected status %q, got %q", StatusCompleted, got)
	}
}

func TestWorker_ProcessRetriesTransientErrors(t *testing.T) {
	ex := &fakeExtractor{reply: func(call int, prompt string) ([]kg.Triplet, error) {
		if call == 1 {
			return nil, &extract.RetryableError{StatusCode: 529, Message: "overloaded"}
		}
		return bySection(call, prompt)
	}}
	w, _, _ := newTestWorker(t, ex, true)

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if ex.calls() != 3 {
		t.Errorf("expected 3 extraction calls, got %d", ex.calls())
	}
}

func TestWorker_ProcessGivesUpAfterMaxRetries(t *testing.T) {
	ex := &fakeExtractor{reply: func(int, string) ([]kg.Triplet, error) {
		return nil, &extract.RetryableError{StatusCode: 503, Message: "unavailable"}
	}}
	w, _, _ := newTestWorker(t, ex, true)

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, got)
	}
	if ex.calls() != 2*MaxRetries {
		t.Errorf("expected %d calls, got %d", 2*MaxRetries, ex.calls())
	}
}

func TestWorker_ProcessFailureDiscardsDocument(t *testing.T) {
	ex := &fakeExtractor{reply: func(int, string) ([]kg.Triplet, error) {
		return nil, errors.New("bad request")
	}}
	w, st, idx := newTestWorker(t, ex, false)

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Progress.Errors) != 2 {
		t.Errorf("expected one error per chunk, got %v", snap.Progress.Errors)
	}
	if _, err := st.GetDocument(context.Background(), job.DocID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected failed document to be discarded, got %v", err)
	}
	if n, _ := idx.Count(); n != 0 {
		t.Errorf("expected empty index, got %d entries", n)
	}

	// A retry of the same content is not treated as a duplicate.
	retry := NewJob("guide.md", "", "", []byte(guide))
	ex.reply = bySection
	w.Process(context.Background(), retry)
	if got := retry.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected retry to complete, got %q", got)
	}
}

// failingChunks is a store whose chunk writes always fail.
type failingChunks struct {
	*store.Store
}

func (failingChunks) SaveChunks(context.Context, string, []chunker.Chunk) error {
	return errors.New("disk full")
}

func TestWorker_ChunkSaveFailureDiscardsDocument(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, st, _ := newTestWorker(t, ex, false)
	w.store = failingChunks{Store: st}

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "chunking" {
		t.Fatalf("expected failed chunking, got %q/%q", snap.Status, snap.Phase)
	}
	if _, err := st.GetDocument(context.Background(), job.DocID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected document row to be removed, got %v", err)
	}
	if ex.calls() != 0 {
		t.Errorf("expected no extraction, got %d calls", ex.calls())
	}

	w.store = st
	retry := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), retry)
	if got := retry.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected retry to complete, got %q", got)
	}
}

func TestWorker_TakenDocIDKeepsExistingDocument(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, st, _ := newTestWorker(t, ex, false)

	first := NewJob("guide.md", "", "fixed", []byte(guide))
	w.Process(context.Background(), first)
	if got := first.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected first job to complete, got %q", got)
	}

	other := strings.Replace(guide, "Redis", "Memcached", 1)
	second := NewJob("other.md", "", "fixed", []byte(other))
	w.Process(context.Background(), second)
	if got := second.Snapshot().Status; got != StatusFailed {
		t.Fatalf("expected second job to fail, got %q", got)
	}
	doc, err := st.GetDocument(context.Background(), "fixed")
	if err != nil {
		t.Fatalf("expected existing document to survive, got %v", err)
	}
	if doc.Filename != "guide.md" || doc.TripletCount != 3 {
		t.Errorf("existing document changed: %+v", doc)
	}
}

func TestWorker_ProcessPartial(t *testing.T) {
	ex := &fakeExtractor{reply: func(call int, prompt string) ([]kg.Triplet, error) {
		if strings.Contains(prompt, "Redis") {
			return nil, errors.New("bad request")
		}
		return bySection(call, prompt)
	}}
	w, _, _ := newTestWorker(t, ex, true)

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if snap.Progress.TripletsStored != 2 {
		t.Errorf("expected 2 stored triplets, got %d", snap.Progress.TripletsStored)
	}
}

func TestWorker_ProcessDropsInvalidTriplets(t *testing.T) {
	ex := &fakeExtractor{reply: func(int, string) ([]kg.Triplet, error) {
		return []kg.Triplet{
			{Subject: "Redis", Predicate: "is", Object: "redis"},
			{Subject: "Redis", Predicate: "", Object: "cache"},
			{Subject: "Redis", Predicate: "ignore previous instructions", Object: "cache"},
			{Subject: "  Redis ", Predicate: "is used   as", Object: "cache"},
		}, nil
	}}
	w, st, _ := newTestWorker(t, ex, false)

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Progress.TripletsValid != 2 || snap.Progress.TripletsStored != 1 {
		t.Errorf("expected 2 valid and 1 stored, got %d and %d", snap.Progress.TripletsValid, snap.Progress.TripletsStored)
	}
	triplets, err := st.Triplets(context.Background(), job.DocID)
	if err != nil {
		t.Fatalf("triplets: %v", err)
	}
	want := kg.Triplet{Subject: "Redis", Predicate: "is used as", Object: "cache"}
	if len(triplets) != 1 || triplets[0] != want {
		t.Errorf("expected %v, got %v", want, triplets)
	}
}

func TestWorker_ReuseFeedsEarlierTriplets(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, _, _ := newTestWorker(t, ex, true)

	job := NewJob("guide.md", "", "", []byte(guide))
	w.Process(context.Background(), job)

	if ex.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", ex.calls())
	}
	if strings.Contains(ex.prompts[0], "Existing triplets") {
		t.Error("expected first prompt to carry no existing triplets")
	}
	if !strings.Contains(ex.prompts[1], "(PostgreSQL, is a, relational database)") {
		t.Errorf("expected second prompt to list earlier triplets, got:\n%s", ex.prompts[1])
	}
}

func TestWorker_ProcessUnsupportedFormat(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, _, _ := newTestWorker(t, ex, false)

	job := NewJob("image.png", "", "", []byte{0x89, 'P', 'N', 'G'})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed parsing, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestWorker_ProcessNoChunks(t *testing.T) {
	ex := &fakeExtractor{reply: bySection}
	w, _, _ := newTestWorker(t, ex, false)

	job := NewJob("tiny.md", "", "", []byte("# Title\n\nshort\n"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "chunking" {
		t.Errorf("expected failed chunking, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestOrchestrator_SubmitAndComplete(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 4, MaxConcurrentExtract: 2, JobTTL: time.Hour}
	o, err := NewOrchestrator(cfg, Deps{Store: st, Extractor: &fakeExtractor{reply: bySection}, Log: quietLogger()})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("guide.md", "", "", []byte(guide))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected submitted job to be tracked")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Status.Done() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", job.Snapshot().Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected status %q, got %q", StatusCompleted, got)
	}

	if err := o.DeleteDocument(context.Background(), job.DocID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := o.DeleteDocument(context.Background(), job.DocID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour}
	o, err := NewOrchestrator(cfg, Deps{Store: st, Extractor: &fakeExtractor{reply: bySection}, Log: quietLogger()})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	job := NewJob("guide.md", "", "", []byte(guide))
	if err := o.Submit(job); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", got)
	}
	if o.GetJob(job.ID) != nil {
		t.Error("expected rejected job not to be tracked")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o, err := NewOrchestrator(cfg, Deps{Store: st, Extractor: &fakeExtractor{reply: bySection}, Log: quietLogger()})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	// Workers are not started, so the queue never drains.
	if err := o.Submit(NewJob("a.md", "", "", nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := NewJob("b.md", "", "", nil)
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if got := second.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", got)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestNewOrchestrator_RejectsUnknownInstructions(t *testing.T) {
	cfg := config.Config{ExtractInstructions: "poetry", MaxQueueSize: 1}
	if _, err := NewOrchestrator(cfg, Deps{}); err == nil {
		t.Fatal("expected error for unknown instructions")
	}
}
