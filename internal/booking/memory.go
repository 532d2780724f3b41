package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"judoclub/internal/schedule"
)

type memoryRepository struct {
	locksMu sync.Mutex
	locks   map[schedule.InstanceKey]*sync.Mutex

	mu       sync.RWMutex
	nextID   int64
	bookings map[int64]Booking
}

// NewMemoryRepository keeps bookings in process memory with one mutex per
// instance as the serialization point.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		locks:    make(map[schedule.InstanceKey]*sync.Mutex),
		bookings: make(map[int64]Booking),
	}
}

func (r *memoryRepository) instanceLock(key schedule.InstanceKey) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *memoryRepository) WithInstanceLock(ctx context.Context, key schedule.InstanceKey, fn func(Store) error) error {
	l := r.instanceLock(key)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(r)
}

func (r *memoryRepository) GetByID(_ context.Context, id int64) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r *memoryRepository) filter(keep func(Booking) bool) []Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Booking
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func (r *memoryRepository) ListByMember(_ context.Context, memberID int64) ([]Booking, error) {
	out := r.filter(func(b Booking) bool { return b.MemberID == memberID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClassDate != out[j].ClassDate {
			return out[i].ClassDate > out[j].ClassDate
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryRepository) ListByInstance(_ context.Context, key schedule.InstanceKey) ([]Booking, error) {
	out := r.filter(func(b Booking) bool { return b.Key() == key })
	sortByCreation(out)
	return out, nil
}

func (r *memoryRepository) ListByMemberBetween(_ context.Context, memberID int64, fromDate, toDate string) ([]Booking, error) {
	out := r.filter(func(b Booking) bool {
		return b.MemberID == memberID && b.ClassDate >= fromDate && b.ClassDate <= toDate
	})
	sortByInstance(out)
	return out, nil
}

func (r *memoryRepository) ListBetween(_ context.Context, fromDate, toDate string) ([]Booking, error) {
	out := r.filter(func(b Booking) bool { return b.ClassDate >= fromDate && b.ClassDate <= toDate })
	sortByInstance(out)
	return out, nil
}

func (r *memoryRepository) ListRecurring(_ context.Context, memberID int64) ([]Booking, error) {
	out := r.filter(func(b Booking) bool {
		return b.MemberID == memberID && b.Recurrence != RecurrenceNone && b.Status != StatusCancelled
	})
	sortByInstance(out)
	return out, nil
}

func (r *memoryRepository) Insert(_ context.Context, b Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.bookings {
		if existing.Active() && existing.MemberID == b.MemberID && existing.Key() == b.Key() {
			return nil, ErrDuplicateBooking
		}
	}

	r.nextID++
	b.ID = r.nextID
	r.bookings[b.ID] = b

	out := b
	return &out, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id int64, status Status, cancelledAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.Status = status
	b.CancelledAt = cancelledAt
	r.bookings[id] = b
	return nil
}

func sortByCreation(bookings []Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
		}
		return bookings[i].ID < bookings[j].ID
	})
}

func sortByInstance(bookings []Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].ClassDate != bookings[j].ClassDate {
			return bookings[i].ClassDate < bookings[j].ClassDate
		}
		if bookings[i].TemplateID != bookings[j].TemplateID {
			return bookings[i].TemplateID < bookings[j].TemplateID
		}
		return bookings[i].ID < bookings[j].ID
	})
}
