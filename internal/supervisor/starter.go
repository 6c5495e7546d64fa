// Package supervisor implements the generic, config-keyed service
// supervision engine: a per-key actor (Supervisor) that enforces
// at-most-one-running-instance-per-key, and a keyed collection of such
// actors (Manager) that routes configuration updates to them.
package supervisor

import (
	"context"

	"github.com/veylan/routerd/internal/watch"
)

// Keyed is implemented by any service configuration. Equality of Key()
// means "same logical service instance".
type Keyed interface {
	Key() string
}

// Starter is the injected strategy a supervisor calls to bring a service
// instance up for a given config. Implementations must return promptly
// once the instance has reached (or failed to reach) Running, leaving the
// handle to track subsequent state on its own goroutine.
type Starter[C Keyed, S any] interface {
	Start(ctx context.Context, cfg C) (watch.Handle[S], error)
}

// StarterFunc adapts a plain function to the Starter interface.
type StarterFunc[C Keyed, S any] func(ctx context.Context, cfg C) (watch.Handle[S], error)

func (f StarterFunc[C, S]) Start(ctx context.Context, cfg C) (watch.Handle[S], error) {
	return f(ctx, cfg)
}
