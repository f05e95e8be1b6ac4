package engine

import (
	"runtime/debug"
	"sync"

	logx "leadgen/pkg/logx"
)

// dispatcher delivers hook callbacks on a dedicated goroutine so the
// control loop never blocks on, or dies with, host code.
type dispatcher struct {
	hooks Hooks
	log   logx.Logger

	mu     sync.Mutex
	closed bool
	queue  chan func()
	done   chan struct{}
}

const dispatchQueueSize = 128

func newDispatcher(hooks Hooks, log logx.Logger) *dispatcher {
	d := &dispatcher{
		hooks: hooks,
		log:   log,
		queue: make(chan func(), dispatchQueueSize),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for fn := range d.queue {
		d.invoke(fn)
	}
}

func (d *dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in hook callback",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}

// enqueue drops the callback when the queue is full or the dispatcher
// is closed. Hooks are advisory; the loop never waits on them.
func (d *dispatcher) enqueue(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- fn:
	default:
		d.log.Warn("hook queue full; callback dropped")
	}
}

func (d *dispatcher) onProgress(ev ProgressEvent) {
	if d.hooks.OnProgress == nil {
		return
	}
	d.enqueue(func() { d.hooks.OnProgress(ev) })
}

func (d *dispatcher) onError(ev ErrorEvent) {
	if d.hooks.OnError == nil {
		return
	}
	d.enqueue(func() { d.hooks.OnError(ev) })
}

func (d *dispatcher) onCompletion(s Snapshot) {
	if d.hooks.OnCompletion == nil {
		return
	}
	d.enqueue(func() { d.hooks.OnCompletion(s) })
}

// close drains pending callbacks and waits for the worker to exit.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}
