package renderer

import (
	"context"
	"sync"
	"time"
)

// idleTracker decides when a page's network activity has settled: at most
// maxInflight requests open, continuously, for window. It only starts
// judging once armed, so requests issued before the document commits are
// counted but cannot end the wait early.
type idleTracker struct {
	mu          sync.Mutex
	inflight    map[string]struct{}
	maxInflight int
	window      time.Duration
	armed       bool
	fired       bool
	timer       *time.Timer
	gen         uint64
	idle        chan struct{}
}

func newIdleTracker(maxInflight int, window time.Duration) *idleTracker {
	if maxInflight < 0 {
		maxInflight = 0
	}
	return &idleTracker{
		inflight:    make(map[string]struct{}),
		maxInflight: maxInflight,
		window:      window,
		idle:        make(chan struct{}),
	}
}

func (t *idleTracker) started(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.evaluate()
}

func (t *idleTracker) finished(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	t.evaluate()
}

func (t *idleTracker) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = true
	t.evaluate()
}

// evaluate starts or cancels the quiet window. Caller must hold t.mu.
func (t *idleTracker) evaluate() {
	if !t.armed || t.fired {
		return
	}
	if len(t.inflight) > t.maxInflight {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
			t.gen++
		}
		return
	}
	if t.timer != nil {
		return
	}
	gen := t.gen
	t.timer = time.AfterFunc(t.window, func() { t.expire(gen) })
}

func (t *idleTracker) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || gen != t.gen {
		return
	}
	t.fired = true
	close(t.idle)
}

// wait blocks until the network is idle or ctx ends.
func (t *idleTracker) wait(ctx context.Context) error {
	select {
	case <-t.idle:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		if t.timer != nil {
			t.timer.Stop()
		}
		t.mu.Unlock()
		return ctx.Err()
	}
}
