package member

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	members map[int64]Member
}

func NewMemoryRepository() Repository {
	return &memoryRepository{members: make(map[int64]Member)}
}

func (r *memoryRepository) Create(_ context.Context, name, email, passwordHash, role string) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if strings.EqualFold(m.Email, email) {
			return nil, ErrEmailExists
		}
	}

	r.nextID++
	m := Member{
		ID:           r.nextID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	r.members[m.ID] = m
	return &m, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if strings.EqualFold(m.Email, email) {
			return &m, nil
		}
	}
	return nil, ErrMemberNotFound
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return &m, nil
}

func (r *memoryRepository) FindByIDs(_ context.Context, ids []int64) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Member
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if m, ok := r.members[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if strings.EqualFold(m.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) UpdateRole(_ context.Context, id int64, role string) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	m.Role = role
	r.members[id] = m
	return &m, nil
}
