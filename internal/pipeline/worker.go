package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/document"
	"github.com/dgallion1/kgest/internal/extract"
	"github.com/dgallion1/kgest/internal/kg"
	"github.com/dgallion1/kgest/internal/parser"
	"github.com/dgallion1/kgest/internal/pathstore"
	"github.com/dgallion1/kgest/internal/search"
	"github.com/dgallion1/kgest/internal/store"
)

// Worker processes a single document job.
// documentStore is the part of *store.Store a worker writes through.
type documentStore interface {
	FindByHash(ctx context.Context, hash, instructions string) (*store.Document, error)
	SaveDocument(ctx context.Context, d *store.Document) error
	SaveChunks(ctx context.Context, docID string, chunks []chunker.Chunk) error
	AddTriplets(ctx context.Context, docID string, chunkIndex int, triplets []kg.Triplet) error
	DeleteDocument(ctx context.Context, id string) error
}

type Worker struct {
	store     documentStore
	index     *search.Index
	extractor extract.Extractor
	mirror    *pathstore.Client
	log       *slog.Logger

	parserOpts   parser.Options
	instructions extract.Instructions
	reuse        bool

	maxConcurrentExtract int
	backoff              func(attempt int) time.Duration
}

// WorkerOptions carries the per-worker tuning taken from configuration.
type WorkerOptions struct {
	Parser               parser.Options
	Instructions         extract.Instructions
	ReuseTriplets        bool
	MaxConcurrentExtract int
}

func NewWorker(deps Deps, opts WorkerOptions) *Worker {
	maxExtract := opts.MaxConcurrentExtract
	if maxExtract < 1 {
		maxExtract = 1
	}
	in := opts.Instructions
	if in == "" {
		in = extract.General
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		store:                deps.Store,
		index:                deps.Index,
		extractor:            deps.Extractor,
		mirror:               deps.Mirror,
		log:                  log,
		parserOpts:           opts.Parser,
		instructions:         in,
		reuse:                opts.ReuseTriplets,
		maxConcurrentExtract: maxExtract,
		backoff:              Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	defer job.releaseFileData()

	in := job.Instructions
	if in == "" {
		in = w.instructions
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := parser.Parse(bytes.NewReader(job.FileData()), job.Filename, w.parserOpts)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if job.Title != "" {
		doc.Title = job.Title
	}
	hash := ContentHashHex([]byte(doc.Markdown))
	job.setParsed(doc.Title, hash)

	// Phase 1.5: Dedup check
	if !job.Force {
		existing, err := w.store.FindByHash(ctx, hash, string(in))
		switch {
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", existing.ID)
			job.setDuplicateOf(existing.ID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.Split(doc.Markdown)
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	if err := w.saveDocument(ctx, log, job.DocID, doc, hash, in, chunks); err != nil {
		log.Error("save document failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "chunking")
		return
	}
	if w.index != nil {
		if err := w.index.IndexChunks(job.DocID, chunks); err != nil {
			log.Warn("search indexing failed", "error", err)
			job.AddError(fmt.Sprintf("index: %s", err))
		}
	}

	// Phase 3: Extract triplets.
	job.SetStatus(StatusExtracting, "extracting")
	var results [][]kg.Triplet
	var hadErrors bool
	if w.reuse {
		results, hadErrors = w.extractSequential(ctx, log, job, in, doc.Title, chunks)
	} else {
		results, hadErrors = w.extractParallel(ctx, log, job, in, doc.Title, chunks)
	}
	if ctx.Err() != nil {
		job.AddError(ctx.Err().Error())
		w.discard(ctx, log, job.DocID)
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	valid := 0
	for _, ts := range results {
		valid += len(ts)
	}
	log.Info("extraction complete", "valid_triplets", valid, "errors", hadErrors)

	if valid == 0 && hadErrors {
		w.discard(ctx, log, job.DocID)
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	// Phase 4: Store triplets in chunk order, dropping repeats.
	job.SetStatus(StatusStoring, "storing")
	seen := kg.NewTripletSet()
	for i, ts := range results {
		fresh := make([]kg.Triplet, 0, len(ts))
		for _, t := range ts {
			if seen.Add(t) {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) > 0 {
			if err := w.store.AddTriplets(ctx, job.DocID, chunks[i].Index, fresh); err != nil {
				log.Error("store triplets failed", "chunk", chunks[i].Index, "error", err)
				job.AddError(fmt.Sprintf("store chunk %d: %s", chunks[i].Index, err))
				hadErrors = true
				job.AddTriplets(len(ts), 0)
				continue
			}
		}
		job.AddTriplets(len(ts), len(fresh))
	}

	if w.mirror != nil && seen.Len() > 0 {
		n, err := w.mirror.MirrorTriplets(ctx, job.DocID, seen.Items())
		if err != nil {
			log.Warn("pathstore mirror failed", "mirrored", n, "error", err)
			job.AddError(fmt.Sprintf("mirror: %s", err))
			hadErrors = true
		} else {
			log.Info("mirrored triplets to pathstore", "triplets", n)
		}
	}

	snap := job.Snapshot()
	switch {
	case hadErrors && snap.Progress.TripletsStored == 0:
		w.discard(ctx, log, job.DocID)
		job.SetStatus(StatusFailed, "storing")
	case hadErrors:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished",
		"status", snap.Status,
		"triplets_valid", snap.Progress.TripletsValid,
		"triplets_stored", snap.Progress.TripletsStored,
	)
}

// saveDocument writes the document row and its chunks. A row whose chunks
// could not be written is removed again; a row that was never inserted, such
// as one whose ID is already taken, is left alone.
func (w *Worker) saveDocument(ctx context.Context, log *slog.Logger, docID string, doc *document.Document, hash string, in extract.Instructions, chunks []chunker.Chunk) error {
	rec := &store.Document{
		ID:           docID,
		Title:        doc.Title,
		Filename:     doc.Filename,
		ContentHash:  hash,
		Instructions: string(in),
		CreatedAt:    time.Now(),
	}
	if err := w.store.SaveDocument(ctx, rec); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := w.store.SaveChunks(ctx, docID, chunks); err != nil {
		w.discard(ctx, log, docID)
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// discard removes a document whose ingest failed so that a retry of the same
// content is not skipped as a duplicate.
func (w *Worker) discard(ctx context.Context, log *slog.Logger, docID string) {
	ctx = context.WithoutCancel(ctx)
	if err := w.store.DeleteDocument(ctx, docID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn("discard document failed", "error", err)
	}
	if w.index != nil {
		if err := w.index.DeleteDocument(docID); err != nil {
			log.Warn("discard index entries failed", "error", err)
		}
	}
}

// extractSequential walks the chunks in order and feeds every triplet found
// so far into the next prompt, so the model can reuse entity names.
func (w *Worker) extractSequential(ctx context.Context, log *slog.Logger, job *Job, in extract.Instructions, title string, chunks []chunker.Chunk) ([][]kg.Triplet, bool) {
	results := make([][]kg.Triplet, len(chunks))
	known := kg.NewTripletSet()
	hadErrors := false
	for i, c := range chunks {
		if ctx.Err() != nil {
			return results, true
		}
		prompt := extract.BuildChunkPrompt(in, title, c, known.Items())
		ts, err := w.extractWithRetry(ctx, log, c.Index, prompt)
		job.IncrChunksProcessed()
		if err != nil {
			log.Error("extraction failed", "chunk", c.Index, "error", err)
			job.AddError(fmt.Sprintf("chunk %d: %s", c.Index, err))
			hadErrors = true
			continue
		}
		results[i] = validTriplets(ts)
		known.AddAll(results[i])
	}
	return results, hadErrors
}

// extractParallel extracts every chunk independently with bounded
// concurrency.
func (w *Worker) extractParallel(ctx context.Context, log *slog.Logger, job *Job, in extract.Instructions, title string, chunks []chunker.Chunk) ([][]kg.Triplet, bool) {
	results := make([][]kg.Triplet, len(chunks))
	failed := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrentExtract)
	for i, c := range chunks {
		g.Go(func() error {
			prompt := extract.BuildChunkPrompt(in, title, c, nil)
			ts, err := w.extractWithRetry(gctx, log, c.Index, prompt)
			job.IncrChunksProcessed()
			if err != nil {
				log.Error("extraction failed", "chunk", c.Index, "error", err)
				job.AddError(fmt.Sprintf("chunk %d: %s", c.Index, err))
				failed[i] = true
				return nil
			}
			results[i] = validTriplets(ts)
			return nil
		})
	}
	_ = g.Wait()

	hadErrors := false
	for _, f := range failed {
		hadErrors = hadErrors || f
	}
	return results, hadErrors
}

func validTriplets(ts []kg.Triplet) []kg.Triplet {
	out := ts[:0]
	for i := range ts {
		if extract.ValidateTriplet(&ts[i]) {
			out = append(out, ts[i])
		}
	}
	return out
}
