package attendance

import (
	"context"
	"sort"
	"sync"

	"judoclub/internal/schedule"
)

type recordKey struct {
	instance schedule.InstanceKey
	memberID int64
}

type memoryRepository struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[recordKey]Record)}
}

func (r *memoryRepository) Get(_ context.Context, key schedule.InstanceKey, memberID int64) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[recordKey{key, memberID}]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (r *memoryRepository) Save(_ context.Context, rec Record) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey{rec.Key(), rec.MemberID}
	if existing, ok := r.records[k]; ok {
		if existing.Terminal() {
			return &existing, nil
		}
		existing.Status = rec.Status
		existing.UpdatedAt = rec.UpdatedAt
		r.records[k] = existing
		return &existing, nil
	}

	r.records[k] = rec
	return &rec, nil
}

func (r *memoryRepository) MarkAttended(_ context.Context, rec Record) (*Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey{rec.Key(), rec.MemberID}
	existing, ok := r.records[k]
	if ok && existing.CheckedInAt != nil {
		return &existing, false, nil
	}
	if ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	r.records[k] = rec
	return &rec, true, nil
}

func (r *memoryRepository) ListByInstance(_ context.Context, key schedule.InstanceKey) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for k, rec := range r.records {
		if k.instance == key {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out, nil
}

func (r *memoryRepository) ListByMemberBetween(_ context.Context, memberID int64, fromDate, toDate string) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for k, rec := range r.records {
		if k.memberID == memberID && rec.ClassDate >= fromDate && rec.ClassDate <= toDate {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClassDate != out[j].ClassDate {
			return out[i].ClassDate < out[j].ClassDate
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	return out, nil
}
