package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/kgest/internal/config"
	"github.com/dgallion1/kgest/internal/extract"
	"github.com/dgallion1/kgest/internal/kg"
)

const guide = `# Guide

## Databases
PostgreSQL is a relational database that supports JSON columns and full text search.

## Caches
Redis is an in-memory data store that is often used as a cache in front of databases.
`

type stubExtractor struct{}

func (stubExtractor) ExtractTriplets(_ context.Context, prompt string) ([]kg.Triplet, error) {
	if strings.Contains(prompt, "Redis") {
		return []kg.Triplet{{Subject: "Redis", Predicate: "is used as", Object: "cache"}}, nil
	}
	return []kg.Triplet{{Subject: "PostgreSQL", Predicate: "is a", Object: "relational database"}}, nil
}

func newTestApp() (*app, *bytes.Buffer) {
	var out bytes.Buffer
	return &app{
		cfg:    config.Config{MaxConcurrentExtract: 2, ReuseTriplets: true},
		log:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		stdout: &out,
		newExtractor: func(config.Config) (extract.Extractor, error) {
			return stubExtractor{}, nil
		},
	}, &out
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestChunkCmd_JSONLines(t *testing.T) {
	a, out := newTestApp()
	if err := a.chunkCmd([]string{writeTemp(t, "guide.md", guide)}); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
	var first struct {
		ChunkType     string  `json:"chunk_type"`
		HeaderContext *string `json:"header_context"`
		ChunkIndex    int     `json:"chunk_index"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.ChunkType != "header_section" || first.HeaderContext == nil || *first.HeaderContext != "Guide" {
		t.Errorf("unexpected first chunk %+v", first)
	}
}

func TestChunkCmd_Explain(t *testing.T) {
	a, out := newTestApp()
	if err := a.chunkCmd([]string{"--explain", writeTemp(t, "guide.md", guide)}); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "Guide: 2 chunks\n") {
		t.Errorf("unexpected header line in %q", got)
	}
	if !strings.Contains(got, "[1] header_section") {
		t.Errorf("expected second chunk line in %q", got)
	}
}

func TestChunkCmd_Errors(t *testing.T) {
	a, _ := newTestApp()
	if err := a.chunkCmd(nil); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
	if err := a.chunkCmd([]string{filepath.Join(t.TempDir(), "missing.md")}); err == nil {
		t.Error("expected error for missing file")
	}
	a.cfg.ChunkStrategy = "semantic"
	if err := a.chunkCmd([]string{writeTemp(t, "guide.md", guide)}); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestExtractCmd(t *testing.T) {
	a, out := newTestApp()
	src := writeTemp(t, "guide.md", guide)
	base := filepath.Join(t.TempDir(), "graph")

	if err := a.extractCmd([]string{"--out", base, src}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(out.String(), "2 triplets") {
		t.Errorf("unexpected summary %q", out.String())
	}

	triplets, err := readTriplets(base + ".jsonl")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(triplets) != 2 || triplets[0].Subject != "PostgreSQL" || triplets[1].Subject != "Redis" {
		t.Errorf("unexpected triplets %v", triplets)
	}
	page, err := os.ReadFile(base + ".html")
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if !strings.Contains(string(page), "<title>Guide</title>") {
		t.Error("expected page titled after the document")
	}
}

func TestExtractCmd_UnknownInstructions(t *testing.T) {
	a, _ := newTestApp()
	err := a.extractCmd([]string{"--instructions", "poetry", writeTemp(t, "guide.md", guide)})
	if err == nil {
		t.Fatal("expected error for unknown instructions")
	}
}

func TestClaudeExtractor_RequiresKey(t *testing.T) {
	if _, err := claudeExtractor(config.Config{}); err == nil {
		t.Error("expected error without an API key")
	}
}

func TestRenderAndCompareCmds(t *testing.T) {
	a, out := newTestApp()
	dir := t.TempDir()
	first := writeTemp(t, "first.jsonl",
		`{"subject":"A","predicate":"uses","object":"B"}`+"\n"+`{"subject":"B","predicate":"runs on","object":"C"}`+"\n")
	second := writeTemp(t, "second.jsonl",
		`{"subject":"A","predicate":"uses","object":"B"}`+"\n"+`{"subject":"A","predicate":"replaces","object":"D"}`+"\n")

	page := filepath.Join(dir, "first.html")
	if err := a.renderCmd([]string{first, page}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out.String(), "3 nodes, 2 edges") {
		t.Errorf("unexpected render summary %q", out.String())
	}
	html, err := os.ReadFile(page)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "<title>first</title>") {
		t.Error("expected default title from the file stem")
	}

	out.Reset()
	if err := a.compareCmd([]string{first, second, filepath.Join(dir, "cmp.html")}); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !strings.Contains(out.String(), "in both: 2, only first: 1, only second: 1") {
		t.Errorf("unexpected compare summary %q", out.String())
	}

	if err := a.compareCmd([]string{first, second}); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}
