// Package script runs Lua programs against an engine for batch binary
// patching.
//
// Scripts see a restricted standard library (base, table, string and
// math without the loaders) and a global "content" table bound to the
// engine. Positions are zero-based byte offsets.
//
//	local at = content.find("\x7fELF")
//	if at then content.overwrite(at + 4, "\x02") end
//
// Execution is bounded by a timeout and by the caller's context.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/hexstorm/internal/engine"
	"github.com/dshills/hexstorm/internal/logging"
)

// DefaultTimeout bounds a single Run.
const DefaultTimeout = 5 * time.Second

// Errors for script execution.
var (
	ErrClosed  = errors.New("script runner is closed")
	ErrTimeout = errors.New("script execution timeout")
)

// Error is a failure raised while a script ran.
type Error struct {
	Chunk string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("script %s: %v", e.Chunk, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner owns a sandboxed Lua state bound to one engine.
//
// gopher-lua states are not goroutine-safe; Runner serializes calls.
type Runner struct {
	mu sync.Mutex

	L       *lua.LState
	eng     *engine.Engine
	logger  *logging.Logger
	out     io.Writer
	timeout time.Duration
	closed  bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the execution timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOutput redirects print.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// New creates a runner over eng.
func New(eng *engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		eng:     eng,
		logger:  logging.Nop(),
		out:     os.Stdout,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("script")

	r.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(r.L)
	r.L.SetGlobal("print", r.L.NewFunction(r.luaPrint))
	r.L.SetGlobal("content", newContentModule(r.L, eng))
	return r
}

// openSafeLibraries opens the libraries scripts may use and removes the
// ones that read code from outside the script.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Run executes code. name labels the chunk in errors.
func (r *Runner) Run(ctx context.Context, name, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	start := time.Now()
	fn, err := r.L.Load(strings.NewReader(code), name)
	if err != nil {
		return &Error{Chunk: name, Err: err}
	}

	err = r.call(fn)
	r.L.SetTop(0)
	// Leave the engine between undo steps whatever the script did.
	r.eng.EndAction()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return &Error{Chunk: name, Err: ErrTimeout}
			}
			return &Error{Chunk: name, Err: ctxErr}
		}
		return &Error{Chunk: name, Err: err}
	}
	r.logger.Debug("ran %s in %v", name, time.Since(start))
	return nil
}

// RunFile executes the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return r.Run(ctx, path, string(code))
}

func (r *Runner) call(fn *lua.LFunction) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua panic: %v", p)
		}
	}()
	r.L.Push(fn)
	return r.L.PCall(0, lua.MultRet, nil)
}

// Close releases the Lua state. The engine is left open.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.L.Close()
}

func (r *Runner) luaPrint(L *lua.LState) int {
	top := L.GetTop()
	for i := 1; i <= top; i++ {
		if i > 1 {
			io.WriteString(r.out, "\t")
		}
		io.WriteString(r.out, L.ToStringMeta(L.Get(i)).String())
	}
	io.WriteString(r.out, "\n")
	return 0
}
