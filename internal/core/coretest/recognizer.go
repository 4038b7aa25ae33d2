package coretest

import (
	"sync"

	"github.com/dkeye/Howdy/internal/core"
)

// Recognizer emits scripted segments on demand.
type Recognizer struct {
	mu sync.Mutex

	StartErr error
	Starts   int
	Stops    int
	running  bool

	onResult func(core.Segment)
	onEnd    func()
	onError  func(error)
}

func (r *Recognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		return r.StartErr
	}
	if r.running {
		return nil
	}
	r.running = true
	r.Starts++
	return nil
}

func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.Stops++
}

func (r *Recognizer) OnResult(fn func(core.Segment)) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

func (r *Recognizer) OnEnd(fn func()) {
	r.mu.Lock()
	r.onEnd = fn
	r.mu.Unlock()
}

func (r *Recognizer) OnError(fn func(error)) {
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
}

func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Recognizer) StartCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Starts
}

// Emit delivers one segment.
func (r *Recognizer) Emit(text string, final bool) {
	r.mu.Lock()
	fn := r.onResult
	r.mu.Unlock()
	if fn != nil {
		fn(core.Segment{Text: text, Final: final})
	}
}

// End simulates the backend stopping on its own.
func (r *Recognizer) End() {
	r.mu.Lock()
	r.running = false
	fn := r.onEnd
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Recognizer) Fail(err error) {
	r.mu.Lock()
	fn := r.onError
	r.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
