// Command cork runs a mesh script and prints the meshes it defines as
// JSON.
//
//	cork -script part.lisp
//	cork -full < part.lisp
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/chazu/cork/pkg/boolean"
	"github.com/chazu/cork/pkg/engine"
	"github.com/chazu/cork/pkg/mesh"
)

type config struct {
	full     bool
	workers  int
	attempts int
	timeout  time.Duration
	verbose  bool
}

// meshReport is the JSON form of one named mesh.
type meshReport struct {
	Name      string    `json:"name"`
	Vertices  int       `json:"vertices"`
	Triangles int       `json:"triangles"`
	Solid     bool      `json:"solid"`
	Volume    float64   `json:"volume"`
	Area      float64   `json:"area"`
	Positions []float32 `json:"positions,omitempty"`
	Indices   []uint32  `json:"indices,omitempty"`
}

type report struct {
	Meshes []meshReport       `json:"meshes"`
	Errors []engine.EvalError `json:"errors,omitempty"`
}

func main() {
	var scriptPath string
	var cfg config
	flag.StringVar(&scriptPath, "script", "-", "Script file to run, or - for stdin.")
	flag.BoolVar(&cfg.full, "full", false, "Include vertex and index arrays in the output.")
	flag.IntVar(&cfg.workers, "workers", 0, "Worker goroutines per operation (0 = GOMAXPROCS).")
	flag.IntVar(&cfg.attempts, "attempts", boolean.DefaultMaxAttempts, "Passes before a degenerate configuration is reported.")
	flag.DurationVar(&cfg.timeout, "timeout", engine.EvalTimeout, "Evaluation time limit.")
	flag.BoolVar(&cfg.verbose, "v", false, "Log pipeline stages to stderr.")
	flag.Parse()

	src, err := readScript(scriptPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	ok, err := run(os.Stdout, src, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func readScript(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script %q: %w", path, err)
	}
	return string(b), nil
}

// run evaluates src and writes the report to w. It reports false when the
// script itself failed; the report then carries the evaluation errors.
func run(w io.Writer, src string, cfg config) (bool, error) {
	logger := slog.New(slog.DiscardHandler)
	if cfg.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	k := boolean.New(
		boolean.WithLogger(logger),
		boolean.WithWorkers(cfg.workers),
		boolean.WithMaxAttempts(cfg.attempts),
	)
	eng := engine.NewEngine(k)
	eng.SetTimeout(cfg.timeout)

	reg, evalErrs, err := eng.Evaluate(src)
	if err != nil {
		return false, err
	}

	out := report{Meshes: []meshReport{}, Errors: evalErrs}
	if reg != nil {
		for _, name := range reg.Names() {
			r, err := describe(name, reg, cfg.full)
			if err != nil {
				return false, err
			}
			out.Meshes = append(out.Meshes, r)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}
	return len(evalErrs) == 0, nil
}

func describe(name string, reg *engine.Registry, full bool) (meshReport, error) {
	km := reg.Get(name)
	m, err := mesh.FromKernel(km, mesh.SourceA)
	if err != nil {
		return meshReport{}, fmt.Errorf("mesh %q: %w", name, err)
	}
	r := meshReport{
		Name:      name,
		Vertices:  km.VertexCount(),
		Triangles: km.TriangleCount(),
		Solid:     mesh.IsSolid(m),
		Volume:    m.Volume(),
		Area:      m.Area(),
	}
	if full {
		r.Positions = km.Vertices
		r.Indices = km.Indices
	}
	return r, nil
}
