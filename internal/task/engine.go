// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package task runs at most one long operation at a time and records its
// progress for the control surface.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// ErrBusy is returned when an operation needs the engine while another one
// is running.
var ErrBusy = errors.New("another task is running")

const (
	maxLogs    = 100
	statusLogs = 50
)

// Func is an operation run by the engine.
type Func func(ctx context.Context, r *Run) error

// Engine guards the single in-flight operation. Its zero value is not
// usable; construct with New.
type Engine struct {
	mu       sync.Mutex
	running  bool
	task     string
	logs     []string
	progress int
	total    int
	errMsg   string

	ctx context.Context
	wg  sync.WaitGroup
	out io.Writer
	log *zap.Logger
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput copies every log line to w as it is recorded. The CLI uses this
// for live progress.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// WithLogger sets the process logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock replaces time.Now for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an idle engine. Operations inherit ctx; cancelling it asks
// the running operation to stop.
func New(ctx context.Context, opts ...Option) *Engine {
	e := &Engine{ctx: ctx, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With(zap.String("component", "task"))
	return e
}

// Start runs fn on its own goroutine unless another operation is running.
// It reports whether fn was started.
func (e *Engine) Start(name string, fn Func) bool {
	return e.start(name, fn, nil)
}

func (e *Engine) start(name string, fn Func, done chan<- error) bool {
	e.mu.Lock()
	if e.running {
		current := e.task
		e.mu.Unlock()
		e.log.Info("start rejected", zap.String("task", name), zap.String("running", current))
		return false
	}
	e.running = true
	e.task = name
	e.logs = nil
	e.progress, e.total = 0, 0
	e.errMsg = ""
	e.wg.Add(1)
	e.mu.Unlock()

	e.log.Info("task started", zap.String("task", name))
	go e.run(name, fn, done)
	return true
}

// RunSync starts fn and blocks until it returns. It returns ErrBusy when
// another operation is running, otherwise the error recorded for the run,
// including a recovered panic.
func (e *Engine) RunSync(name string, fn Func) error {
	done := make(chan error, 1)
	if !e.start(name, fn, done) {
		return ErrBusy
	}
	return <-done
}

func (e *Engine) run(name string, fn Func, done chan<- error) {
	defer e.wg.Done()
	r := &Run{engine: e}

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn(e.ctx, r)
	}()

	if err != nil {
		r.Logf("ERROR: %v", err)
		e.log.Error("task failed", zap.String("task", name), zap.Error(err))
	} else {
		e.log.Info("task finished", zap.String("task", name))
	}

	e.mu.Lock()
	if err != nil {
		e.errMsg = err.Error()
	}
	e.running = false
	e.task = ""
	e.mu.Unlock()

	if done != nil {
		done <- err
	}
}

// Exclusive runs fn synchronously while no operation is running, holding
// the single-flight flag for its duration. It reports false without
// calling fn when the engine is busy.
func (e *Engine) Exclusive(fn func() error) (bool, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return false, nil
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	return true, fn()
}

// Status returns a copy of the current state with the most recent log
// lines. It never waits on the running operation.
func (e *Engine) Status() types.TaskStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	logs := e.logs
	if len(logs) > statusLogs {
		logs = logs[len(logs)-statusLogs:]
	}
	return types.TaskStatus{
		Running:  e.running,
		Task:     e.task,
		Logs:     append([]string{}, logs...),
		Progress: e.progress,
		Total:    e.total,
		Error:    e.errMsg,
	}
}

// Running reports whether an operation is in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Wait blocks until operations started so far have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ClearLogs drops recorded log lines.
func (e *Engine) ClearLogs() {
	e.mu.Lock()
	e.logs = nil
	e.mu.Unlock()
}

func (e *Engine) appendLog(line string) {
	stamped := fmt.Sprintf("[%s] %s", e.now().Format("15:04:05"), line)

	e.mu.Lock()
	e.logs = append(e.logs, stamped)
	if len(e.logs) > maxLogs {
		e.logs = append([]string{}, e.logs[len(e.logs)-maxLogs:]...)
	}
	out := e.out
	e.mu.Unlock()

	if out != nil {
		fmt.Fprintln(out, stamped)
	}
}

// Run is the handle an operation uses to report progress.
type Run struct {
	engine *Engine
}

// Logf records one log line.
func (r *Run) Logf(format string, args ...any) {
	r.engine.appendLog(fmt.Sprintf(format, args...))
}

// SetProgress records the number of units completed.
func (r *Run) SetProgress(p int) {
	r.engine.mu.Lock()
	r.engine.progress = p
	r.engine.mu.Unlock()
}

// SetTotal records the number of units expected and resets progress.
func (r *Run) SetTotal(t int) {
	r.engine.mu.Lock()
	r.engine.total = t
	r.engine.progress = 0
	r.engine.mu.Unlock()
}

// SetTask renames the running operation, e.g. to report a phase.
func (r *Run) SetTask(name string) {
	r.engine.mu.Lock()
	r.engine.task = name
	r.engine.mu.Unlock()
}

// Discard returns a Run bound to a private engine, for calling operations
// whose progress nobody watches.
func Discard() *Run {
	return &Run{engine: New(context.Background())}
}
