package supervisor

import (
	"context"
	"sync"

	"github.com/veylan/routerd/internal/log"
	"github.com/veylan/routerd/internal/watch"
)

// supervisor is a per-key actor owning one service instance's lifecycle. It
// receives configs over a single-slot inbound channel, stopping any
// previous instance before starting the next (invariant I2).
type supervisor[C Keyed, S any] struct {
	key     string
	starter Starter[C, S]
	inbox   chan C
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.RWMutex
	current watch.Handle[S]
	hasCur  bool
}

func newSupervisor[C Keyed, S any](parent context.Context, key string, starter Starter[C, S]) *supervisor[C, S] {
	ctx, cancel := context.WithCancel(parent)
	sv := &supervisor[C, S]{
		key:     key,
		starter: starter,
		inbox:   make(chan C, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sv.loop()
	return sv
}

// trySend attempts the non-blocking enqueue of a new config. Returns false
// if the single slot is already full (caller should report Busy).
func (sv *supervisor[C, S]) trySend(cfg C) bool {
	select {
	case sv.inbox <- cfg:
		return true
	default:
		return false
	}
}

func (sv *supervisor[C, S]) snapshot() (watch.Handle[S], bool) {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return sv.current, sv.hasCur
}

// loop implements C2's algorithm: receive config, stop-before-start,
// publish the new handle, repeat.
func (sv *supervisor[C, S]) loop() {
	defer close(sv.done)

	for {
		select {
		case cfg, ok := <-sv.inbox:
			if !ok {
				sv.stopCurrent()
				return
			}
			sv.stopCurrent()

			handle, err := sv.starter.Start(sv.ctx, cfg)
			if err != nil {
				log.Errorf("supervisor %s: starter failed: %v", sv.key, err)
				handle = watch.New[S]()
				handle.SetState(watch.Stopped)
			}

			sv.mu.Lock()
			sv.current = handle
			sv.hasCur = true
			sv.mu.Unlock()

		case <-sv.ctx.Done():
			sv.stopCurrent()
			return
		}
	}
}

func (sv *supervisor[C, S]) stopCurrent() {
	sv.mu.RLock()
	handle, ok := sv.current, sv.hasCur
	sv.mu.RUnlock()
	if !ok {
		return
	}
	state, _ := handle.Snapshot()
	if state == watch.Stopped {
		return
	}
	handle.SetState(watch.Stopping)
	handle.RequestStop()
	handle.AwaitStopped()
}

// stopAndWait removes this supervisor from service: it cancels the loop,
// waits for it to drain, and returns the terminal handle (if any).
func (sv *supervisor[C, S]) stopAndWait() (watch.Handle[S], bool) {
	sv.cancel()
	<-sv.done
	return sv.snapshot()
}
