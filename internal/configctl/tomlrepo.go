package configctl

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/supervisor"
)

// FileRepository is a Repository backed by a single TOML file holding a
// list of configs for one service kind. It is rewritten wholesale on every
// mutation, matching the "transactional per call, strong read-your-writes"
// contract the supervision engine requires of its config store.
type FileRepository[C supervisor.Keyed] struct {
	path string

	mu    sync.Mutex
	items map[string]C
}

type tomlDoc[C any] struct {
	Items []C `toml:"item"`
}

// NewFileRepository loads path (if it exists) and returns a repository
// backed by it. A missing file is treated as an empty repository.
func NewFileRepository[C supervisor.Keyed](path string) (*FileRepository[C], error) {
	r := &FileRepository[C]{path: path, items: make(map[string]C)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, apperrors.NewConfigError("failed to read config store "+path, err)
	}

	var doc tomlDoc[C]
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewConfigError("failed to parse config store "+path, err)
	}
	for _, item := range doc.Items {
		r.items[item.Key()] = item
	}
	return r, nil
}

func (r *FileRepository[C]) ListAll() ([]C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]C, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	return out, nil
}

func (r *FileRepository[C]) Get(key string) (C, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[key]
	return c, ok, nil
}

func (r *FileRepository[C]) Upsert(cfg C) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[cfg.Key()] = cfg
	return r.persistLocked()
}

func (r *FileRepository[C]) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key)
	return r.persistLocked()
}

// persistLocked atomically rewrites the backing file: write to a temp file
// in the same directory, then rename over the target. Callers must hold
// r.mu.
func (r *FileRepository[C]) persistLocked() error {
	doc := tomlDoc[C]{Items: make([]C, 0, len(r.items))}
	for _, c := range r.items {
		doc.Items = append(doc.Items, c)
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return apperrors.NewConfigError("failed to encode config store "+r.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return apperrors.NewConfigError("failed to create config store directory", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.NewConfigError("failed to write config store "+r.path, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return apperrors.NewConfigError("failed to commit config store "+r.path, err)
	}
	return nil
}
