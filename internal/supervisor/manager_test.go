package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/watch"
)

type testConfig struct {
	key   string
	block chan struct{}
}

func (c testConfig) Key() string { return c.key }

func blockingStarter() (Starter[testConfig, int], *sync.WaitGroup) {
	var wg sync.WaitGroup
	starter := StarterFunc[testConfig, int](func(ctx context.Context, cfg testConfig) (watch.Handle[int], error) {
		wg.Add(1)
		h := watch.New[int]()
		h.SetState(watch.Running)
		go func() {
			defer wg.Done()
			if cfg.block != nil {
				// Ignores stop requests until block is closed.
				select {
				case <-cfg.block:
				case <-ctx.Done():
				}
			} else {
				<-h.StopRequested()
			}
			h.SetState(watch.Stopped)
		}()
		return h, nil
	})
	return starter, &wg
}

func TestManager_UpdateUnknownKeySpawns(t *testing.T) {
	starter, wg := blockingStarter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager[testConfig, int](ctx, starter, nil)
	if err := m.Update(testConfig{key: "eth0"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	deadline := time.After(time.Second)
	for {
		if h, ok := m.Status("eth0"); ok {
			if state, _ := h.Snapshot(); state == watch.Running {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for instance to reach Running")
		case <-time.After(time.Millisecond):
		}
	}

	h, _ := m.Stop("eth0")
	h.AwaitStopped()
	cancel()
	wg.Wait()
}

func TestManager_UpdateBusyWhenSlotFull(t *testing.T) {
	starter, wg := blockingStarter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	m := NewManager[testConfig, int](ctx, starter, []testConfig{{key: "eth0", block: block}})

	deadline := time.After(time.Second)
	for {
		if h, ok := m.Status("eth0"); ok {
			if state, _ := h.Snapshot(); state == watch.Running {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first instance to run")
		case <-time.After(time.Millisecond):
		}
	}

	// The supervisor's inbox is now empty (first config was drained to start
	// the instance). The loop takes this update at once and then blocks
	// stopping the first instance, which ignores the stop request.
	if err := m.Update(testConfig{key: "eth0", block: block}); err != nil {
		t.Fatalf("first queued update: unexpected error %v", err)
	}
	deadline = time.After(time.Second)
	for {
		if h, ok := m.Status("eth0"); ok {
			if state, _ := h.Snapshot(); state == watch.Stopping {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first instance to reach Stopping")
		case <-time.After(time.Millisecond):
		}
	}

	// With the loop blocked, the next update fills the slot and the one
	// after it finds the slot full.
	if err := m.Update(testConfig{key: "eth0", block: block}); err != nil {
		t.Fatalf("second queued update: unexpected error %v", err)
	}
	if err := m.Update(testConfig{key: "eth0", block: block}); err != errors.ErrBusy {
		t.Fatalf("Update() on full slot error = %v, want ErrBusy", err)
	}

	close(block)
	cancel()
	wg.Wait()
}

func TestManager_StopBeforeStart(t *testing.T) {
	var mu sync.Mutex
	var events []string

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	starter := StarterFunc[testConfig, int](func(ctx context.Context, cfg testConfig) (watch.Handle[int], error) {
		mu.Lock()
		events = append(events, "start:"+cfg.key)
		mu.Unlock()

		h := watch.New[int]()
		h.SetState(watch.Running)
		go func() {
			<-h.StopRequested()
			mu.Lock()
			events = append(events, "stop:"+cfg.key)
			mu.Unlock()
			h.SetState(watch.Stopped)
		}()
		return h, nil
	})

	m := NewManager[testConfig, int](ctx, starter, []testConfig{{key: "eth0"}})

	// waitRunning waits for a Running handle other than prev.
	waitRunning := func(prev watch.Handle[int]) {
		deadline := time.After(time.Second)
		for {
			if h, ok := m.Status("eth0"); ok && h != prev {
				if state, _ := h.Snapshot(); state == watch.Running {
					return
				}
			}
			select {
			case <-deadline:
				t.Fatal("timed out waiting for Running")
			case <-time.After(time.Millisecond):
			}
		}
	}
	waitRunning(watch.Handle[int]{})
	first, _ := m.Status("eth0")

	if err := m.Update(testConfig{key: "eth0"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	waitRunning(first)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 || events[0] != "start:eth0" || events[1] != "stop:eth0" || events[2] != "start:eth0" {
		t.Fatalf("unexpected event order: %v", events)
	}
}
