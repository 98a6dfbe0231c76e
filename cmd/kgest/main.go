package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgallion1/kgest/internal/config"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	cfg := config.Load()
	// Stdout carries command output, so logs go to stderr.
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	app := &app{cfg: cfg, log: log, stdout: os.Stdout}

	var err error
	switch os.Args[1] {
	case "chunk":
		err = app.chunkCmd(os.Args[2:])
	case "extract":
		err = app.extractCmd(os.Args[2:])
	case "render":
		err = app.renderCmd(os.Args[2:])
	case "compare":
		err = app.compareCmd(os.Args[2:])
	case "version", "--version":
		fmt.Println("kgest", version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "kgest %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "kgest - headers-first chunking and knowledge graph extraction")
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  kgest chunk [--explain] <file>")
	fmt.Fprintln(w, "  kgest extract [--instructions GENERAL|TECH_RELATIONS|COMPANY_RELATIONS] [--parallel] [--out <base>] <file>")
	fmt.Fprintln(w, "  kgest render [--title <title>] <in.jsonl> <out.html>")
	fmt.Fprintln(w, "  kgest compare <a.jsonl> <b.jsonl> <out.html>")
	fmt.Fprintln(w, "  kgest version")
}
