// Package engine provides the scripting engine for cork.
// It wraps zygomys in a sandboxed environment whose builtins build meshes
// and run Boolean operations, collecting the results in a registry of
// named meshes.
package engine

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/cork/pkg/boolean"
	"github.com/chazu/cork/pkg/kernel"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/samber/lo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code, or a failed
// Boolean operation.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Registry holds the named meshes defined by a script. Meshes are copied
// on the way in.
type Registry struct {
	meshes map[string]*kernel.Mesh
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{meshes: make(map[string]*kernel.Mesh)}
}

// Set stores a copy of m under name, replacing any previous mesh.
func (r *Registry) Set(name string, m *kernel.Mesh) {
	r.meshes[name] = m.Clone()
}

// Get returns the mesh stored under name, or nil.
func (r *Registry) Get(name string) *kernel.Mesh {
	return r.meshes[name]
}

// Copy duplicates the mesh src under dst.
func (r *Registry) Copy(src, dst string) error {
	m, ok := r.meshes[src]
	if !ok {
		return fmt.Errorf("no mesh named %q", src)
	}
	r.meshes[dst] = m.Clone()
	return nil
}

// Delete removes name. Deleting a missing name is a no-op.
func (r *Registry) Delete(name string) {
	delete(r.meshes, name)
}

// Clear removes every mesh.
func (r *Registry) Clear() {
	clear(r.meshes)
}

// Len returns the number of named meshes.
func (r *Registry) Len() int {
	return len(r.meshes)
}

// Names returns the mesh names in sorted order.
func (r *Registry) Names() []string {
	names := lo.Keys(r.meshes)
	slices.Sort(names)
	return names
}

// Engine wraps the zygomys interpreter for cork scripts.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment and registry for determinism.
type Engine struct {
	kernel     kernel.Kernel
	timeout    time.Duration
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates an Engine running Boolean operations on k. If k is
// nil the exact kernel with default options is used.
func NewEngine(k kernel.Kernel) *Engine {
	if k == nil {
		k = boolean.New()
	}
	return &Engine{kernel: k, timeout: EvalTimeout}
}

// SetTimeout changes the evaluation limit. Non-positive values restore
// EvalTimeout.
func (e *Engine) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = EvalTimeout
	}
	e.mu.Lock()
	e.timeout = d
	e.mu.Unlock()
}

// Evaluate runs a script and returns the meshes it defined.
//
// Return semantics:
//   - On success: returns registry + nil errors + nil error
//   - On parse/eval failure: returns nil registry + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Registry, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	limit := e.timeout
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		reg, evalErrs, err := e.evaluate(source)
		ch <- evalResult{registry: reg, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, limit)
}

func (e *Engine) evaluate(source string) (*Registry, []EvalError, error) {
	reg := NewRegistry()
	if strings.TrimSpace(source) == "" {
		return reg, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, reg, e.kernel)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return reg, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
