package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/dgallion1/kgest/internal/config"
	"github.com/dgallion1/kgest/internal/document"
	"github.com/dgallion1/kgest/internal/extract"
	"github.com/dgallion1/kgest/internal/kg"
	"github.com/dgallion1/kgest/internal/parser"
	"github.com/dgallion1/kgest/internal/pipeline"
	"github.com/dgallion1/kgest/internal/store"
)

type app struct {
	cfg    config.Config
	log    *slog.Logger
	stdout io.Writer

	// newExtractor is swapped in tests.
	newExtractor func(cfg config.Config) (extract.Extractor, error)
}

var errUsage = errors.New("wrong number of arguments")

func (a *app) parseFile(path string) (*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parser.Parse(f, filepath.Base(path), parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext})
}

// chunkCmd prints the chunks of a document as JSON Lines, or as a readable
// outline with --explain.
func (a *app) chunkCmd(args []string) error {
	fs := flag.NewFlagSet("chunk", flag.ContinueOnError)
	explain := fs.Bool("explain", false, "print a readable outline instead of JSON Lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	if _, err := a.cfg.Strategy(); err != nil {
		return err
	}

	doc, err := a.parseFile(fs.Arg(0))
	if err != nil {
		return err
	}
	chunks := chunker.Split(doc.Markdown)
	a.log.Debug("chunked document", "file", doc.Filename, "chunks", len(chunks))

	if *explain {
		return explainChunks(a.stdout, doc, chunks)
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return err
		}
	}
	return nil
}

func explainChunks(w io.Writer, doc *document.Document, chunks []chunker.Chunk) error {
	fmt.Fprintf(w, "%s: %d chunks\n", doc.Title, len(chunks))
	for _, c := range chunks {
		ctx := c.Context()
		if ctx == "" {
			ctx = "-"
		}
		fmt.Fprintf(w, "[%d] %-14s %5d chars %5d tokens  %s\n",
			c.Index, c.Type, len([]rune(c.Content)), chunker.EstimateTokens(c.Content), ctx)
		fmt.Fprintf(w, "     %s\n", preview(c.Content, 72))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// extractCmd runs one document through the ingest pipeline against an
// in-memory store and writes the triplets as JSON Lines plus an HTML graph.
func (a *app) extractCmd(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	instructions := fs.String("instructions", a.cfg.ExtractInstructions, "instruction preset")
	parallel := fs.Bool("parallel", !a.cfg.ReuseTriplets, "extract chunks independently instead of reusing earlier triplets")
	out := fs.String("out", "", "output path without extension (default: input file stem)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	in, err := extract.ParseInstructions(*instructions)
	if err != nil {
		return err
	}
	path := fs.Arg(0)
	base := *out
	if base == "" {
		base = strings.TrimSuffix(path, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	newExtractor := a.newExtractor
	if newExtractor == nil {
		newExtractor = claudeExtractor
	}
	ex, err := newExtractor(a.cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	if err != nil {
		return err
	}
	defer st.Close()

	w := pipeline.NewWorker(
		pipeline.Deps{Store: st, Extractor: ex, Log: a.log},
		pipeline.WorkerOptions{
			Parser:               parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext},
			Instructions:         in,
			ReuseTriplets:        !*parallel,
			MaxConcurrentExtract: a.cfg.MaxConcurrentExtract,
		},
	)
	job := pipeline.NewJob(filepath.Base(path), "", "", data)
	job.Force = true
	w.Process(ctx, job)

	snap := job.Snapshot()
	if snap.Status == pipeline.StatusFailed {
		return fmt.Errorf("extraction failed in %s: %s", snap.Phase, strings.Join(snap.Progress.Errors, "; "))
	}
	triplets, err := st.Triplets(ctx, job.DocID)
	if err != nil {
		return err
	}

	if err := writeFile(base+".jsonl", func(w io.Writer) error { return kg.WriteJSONL(w, triplets) }); err != nil {
		return err
	}
	if err := writeFile(base+".html", func(w io.Writer) error {
		return kg.RenderHTML(w, kg.NewGraph(triplets), snap.Title)
	}); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %d chunks, %d triplets (%s) -> %s.jsonl, %s.html\n",
		snap.Title, snap.Progress.TotalChunks, len(triplets), snap.Status, base, base)
	return nil
}

func claudeExtractor(cfg config.Config) (extract.Extractor, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required")
	}
	return extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
}

// renderCmd turns a triplet file into an interactive graph page.
func (a *app) renderCmd(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	title := fs.String("title", "", "page title (default: input file stem)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	triplets, err := readTriplets(fs.Arg(0))
	if err != nil {
		return err
	}
	if *title == "" {
		*title = document.Stem(filepath.Base(fs.Arg(0)))
	}
	g := kg.NewGraph(triplets)
	if err := writeFile(fs.Arg(1), func(w io.Writer) error { return kg.RenderHTML(w, g, *title) }); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d nodes, %d edges -> %s\n", g.NodeCount(), g.EdgeCount(), fs.Arg(1))
	return nil
}

// compareCmd renders two triplet files as one colour-coded graph.
func (a *app) compareCmd(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return errUsage
	}
	first, err := readTriplets(fs.Arg(0))
	if err != nil {
		return err
	}
	second, err := readTriplets(fs.Arg(1))
	if err != nil {
		return err
	}
	cmp := kg.Compare(kg.NewGraph(first), kg.NewGraph(second))
	err = writeFile(fs.Arg(2), func(w io.Writer) error {
		return kg.RenderComparisonHTML(w, cmp, document.Stem(filepath.Base(fs.Arg(0))), document.Stem(filepath.Base(fs.Arg(1))))
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "in both: %d, only first: %d, only second: %d -> %s\n",
		cmp.Count(kg.InBoth), cmp.Count(kg.OnlyFirst), cmp.Count(kg.OnlySecond), fs.Arg(2))
	return nil
}

func readTriplets(path string) ([]kg.Triplet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	triplets, err := kg.ReadJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return triplets, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
