package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chazu/sel/vm"
)

// Request states. A request is claimed exactly once, either by the worker
// (running) or by a caller that gave up while it was queued (abandoned).
const (
	requestQueued int32 = iota
	requestRunning
	requestAbandoned
)

// vmRequest represents a unit of work to be executed on the VM goroutine.
type vmRequest struct {
	ctx   context.Context
	fn    func(*vm.VM) interface{}
	done  chan vmResult
	state atomic.Int32
}

// vmResult holds the return value from a VM operation.
type vmResult struct {
	value interface{}
	err   error
}

// VMWorker serializes all access to one VM through a single goroutine.
// The evaluator is single-threaded; every handler must go through the
// worker to avoid data races.
type VMWorker struct {
	vm       *vm.VM
	requests chan *vmRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewVMWorker creates a VMWorker and starts the processing goroutine.
func NewVMWorker(v *vm.VM) *VMWorker {
	w := &VMWorker{
		vm:       v,
		requests: make(chan *vmRequest, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes VM requests sequentially on a dedicated goroutine.
func (w *VMWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			// Requests whose caller gave up while queued never run.
			if !req.state.CompareAndSwap(requestQueued, requestRunning) {
				continue
			}
			if err := req.ctx.Err(); err != nil {
				req.done <- vmResult{err: err}
				continue
			}
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the VM, recovering from panics.
func (w *VMWorker) execute(fn func(*vm.VM) interface{}) (result vmResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("evaluation panicked: %v", r)
		}
	}()
	result.value = fn(w.vm)
	return result
}

// Do submits fn for execution on the VM goroutine and blocks until it
// completes. If ctx ends before fn starts, fn never runs and ctx's error is
// returned. Once fn has started Do waits for it to return, so fn must
// observe ctx itself, typically through EvalStringContext.
func (w *VMWorker) Do(ctx context.Context, fn func(*vm.VM) interface{}) (interface{}, error) {
	req := &vmRequest{
		ctx:  ctx,
		fn:   fn,
		done: make(chan vmResult, 1),
	}

	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrWorkerStopped
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		if req.state.CompareAndSwap(requestQueued, requestAbandoned) {
			return nil, ctx.Err()
		}
		select {
		case result := <-req.done:
			return result.value, result.err
		case <-w.quit:
			return nil, ErrWorkerStopped
		}
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *VMWorker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
