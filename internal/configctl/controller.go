// Package configctl bridges a persistent config repository and a
// supervisor.Manager: it guarantees persistence happens before the manager
// is told about a change, and that a persistence failure touches nothing.
package configctl

import (
	"github.com/veylan/routerd/internal/supervisor"
	"github.com/veylan/routerd/internal/watch"
)

// Repository is the persistence contract a Controller is built on. It is
// intentionally storage-agnostic: a TOML-file-backed implementation and a
// database-backed implementation both satisfy it.
type Repository[C supervisor.Keyed] interface {
	ListAll() ([]C, error)
	Get(key string) (C, bool, error)
	Upsert(cfg C) error
	Delete(key string) error
}

// Manager is the subset of supervisor.Manager a Controller needs.
type Manager[C supervisor.Keyed, S any] interface {
	Update(cfg C) error
	Stop(key string) (watch.Handle[S], bool)
	AllStatus() map[string]watch.Handle[S]
	Status(key string) (watch.Handle[S], bool)
}

// Controller is the generic CRUD bridge described by C4: a thin layer that
// keeps the persistence store and the running supervision state in sync.
type Controller[C supervisor.Keyed, S any] struct {
	repo    Repository[C]
	manager Manager[C, S]
}

func New[C supervisor.Keyed, S any](repo Repository[C], manager Manager[C, S]) *Controller[C, S] {
	return &Controller[C, S]{repo: repo, manager: manager}
}

// HandleServiceConfig persists cfg, then forwards it to the manager. If
// persistence fails, the manager is never called.
func (c *Controller[C, S]) HandleServiceConfig(cfg C) error {
	if err := c.repo.Upsert(cfg); err != nil {
		return err
	}
	return c.manager.Update(cfg)
}

// DeleteAndStop removes key from persistence, then stops its running
// instance, returning the terminal handle.
func (c *Controller[C, S]) DeleteAndStop(key string) (watch.Handle[S], bool, error) {
	if err := c.repo.Delete(key); err != nil {
		var zero watch.Handle[S]
		return zero, false, err
	}
	h, ok := c.manager.Stop(key)
	return h, ok, nil
}

func (c *Controller[C, S]) GetAllStatus() map[string]watch.Handle[S] {
	return c.manager.AllStatus()
}

func (c *Controller[C, S]) GetConfigByName(key string) (C, bool, error) {
	return c.repo.Get(key)
}

func (c *Controller[C, S]) ListConfigs() ([]C, error) {
	return c.repo.ListAll()
}
