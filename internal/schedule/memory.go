package schedule

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu        sync.RWMutex
	nextID    int64
	templates map[int64]ClassTemplate
}

// NewMemoryRepository keeps templates in process memory.
func NewMemoryRepository() TemplateRepository {
	return &memoryRepository{templates: make(map[int64]ClassTemplate)}
}

func (r *memoryRepository) CreateTemplate(_ context.Context, tpl ClassTemplate) (*ClassTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	tpl.ID = r.nextID
	tpl.Active = true
	tpl.CreatedAt = time.Now().UTC()
	r.templates[tpl.ID] = tpl

	out := tpl
	return &out, nil
}

func (r *memoryRepository) GetTemplateByID(_ context.Context, id int64) (*ClassTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &tpl, nil
}

func (r *memoryRepository) ListTemplates(_ context.Context, onlyActive bool) ([]ClassTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ClassTemplate, 0, len(r.templates))
	for _, tpl := range r.templates {
		if onlyActive && !tpl.Active {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) DeactivateTemplate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tpl, ok := r.templates[id]
	if !ok {
		return ErrTemplateNotFound
	}
	tpl.Active = false
	r.templates[id] = tpl
	return nil
}
