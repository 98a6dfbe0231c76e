package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/kgest/internal/config"
	"github.com/dgallion1/kgest/internal/extract"
	"github.com/dgallion1/kgest/internal/parser"
	"github.com/dgallion1/kgest/internal/pathstore"
	"github.com/dgallion1/kgest/internal/search"
	"github.com/dgallion1/kgest/internal/store"
)

// Deps are the collaborators a worker writes to. Index and Mirror may be nil.
type Deps struct {
	Store     *store.Store
	Index     *search.Index
	Extractor extract.Extractor
	Mirror    *pathstore.Client
	Log       *slog.Logger
}

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	deps  Deps
	log   *slog.Logger
	cfg   config.Config
	wopts WorkerOptions

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards stopped and the close of queue.
	mu      sync.Mutex
	stopped bool
}

// ErrStopped is returned by Submit once the pipeline has been stopped.
var ErrStopped = errors.New("pipeline is stopped")

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, deps Deps) (*Orchestrator, error) {
	in, err := cfg.Instructions()
	if err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Extractor == nil {
		return nil, errors.New("pipeline: store and extractor are required")
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		deps:  deps,
		log:   deps.Log,
		cfg:   cfg,
		wopts: WorkerOptions{
			Parser:               parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
			Instructions:         in,
			ReuseTriplets:        cfg.ReuseTriplets,
			MaxConcurrentExtract: cfg.MaxConcurrentExtract,
		},
	}, nil
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(o.cfg.WorkerCount, 1) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.deps, o.wopts)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Later calls are no-ops.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.mu.Unlock()
	o.wg.Wait()
}

// Submit queues a new job for processing. It fails with ErrStopped after
// Stop.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Store returns the document store.
func (o *Orchestrator) Store() *store.Store {
	return o.deps.Store
}

// Index returns the chunk search index, or nil when search is off.
func (o *Orchestrator) Index() *search.Index {
	return o.deps.Index
}

// Mirror returns the pathstore client, or nil when mirroring is off.
func (o *Orchestrator) Mirror() *pathstore.Client {
	return o.deps.Mirror
}

// DeleteDocument removes a document from the store, the search index and
// the pathstore mirror. Index and mirror failures are logged; only the store
// result is returned.
func (o *Orchestrator) DeleteDocument(ctx context.Context, docID string) error {
	if err := o.deps.Store.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	log := o.log.With("doc_id", docID)
	if o.deps.Index != nil {
		if err := o.deps.Index.DeleteDocument(docID); err != nil {
			log.Warn("search delete failed", "error", err)
		}
	}
	if o.deps.Mirror != nil {
		if err := o.deps.Mirror.DeleteGraph(ctx, docID); err != nil {
			log.Warn("pathstore delete failed", "error", err)
		}
	}
	return nil
}
