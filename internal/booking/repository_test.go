package booking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"judoclub/internal/schedule"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingRowColumns = []string{"id", "template_id", "class_date", "member_id", "status", "recurrence", "created_at", "cancelled_at"}

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRepository_WithInstanceLock_Book(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := schedule.InstanceKey{TemplateID: 7, Date: "2024-03-04"}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	lockKey, err := instanceLockKey(key)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(lockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM bookings\s+WHERE template_id = \$1 AND class_date = \$2::date\s+ORDER BY created_at, id`).
		WithArgs(int64(7), "2024-03-04").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).
			AddRow(1, 7, "2024-03-04", 10, "confirmed", "", now, nil))
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(int64(7), "2024-03-04", int64(11), "waitlisted", "", now).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).
			AddRow(2, 7, "2024-03-04", 11, "waitlisted", "", now, nil))
	mock.ExpectCommit()

	var created *Booking
	err = repo.WithInstanceLock(context.Background(), key, func(store Store) error {
		existing, err := store.ListByInstance(context.Background(), key)
		if err != nil {
			return err
		}
		require.Len(t, existing, 1)

		created, err = store.Insert(context.Background(), Booking{
			TemplateID: 7, ClassDate: "2024-03-04", MemberID: 11, Status: StatusWaitlisted, CreatedAt: now,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)
	assert.Equal(t, StatusWaitlisted, created.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_WithInstanceLock_RollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := schedule.InstanceKey{TemplateID: 7, Date: "2024-03-04"}
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithInstanceLock(context.Background(), key, func(Store) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_WithInstanceLock_InvalidDate(t *testing.T) {
	repo, _ := newMockRepo(t)

	err := repo.WithInstanceLock(context.Background(), schedule.InstanceKey{TemplateID: 1, Date: "tomorrow"}, func(Store) error { return nil })
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)
}

func TestRepository_Insert_UniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := schedule.InstanceKey{TemplateID: 7, Date: "2024-03-04"}

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO bookings`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.WithInstanceLock(context.Background(), key, func(store Store) error {
		_, err := store.Insert(context.Background(), Booking{TemplateID: 7, ClassDate: "2024-03-04", MemberID: 1, Status: StatusConfirmed})
		return err
	})
	assert.ErrorIs(t, err, ErrDuplicateBooking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := schedule.InstanceKey{TemplateID: 7, Date: "2024-03-04"}
	at := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE bookings SET status = \$1, cancelled_at = \$2 WHERE id = \$3`).
		WithArgs("cancelled", at, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bookings SET status = \$1, cancelled_at = \$2 WHERE id = \$3`).
		WithArgs("confirmed", nil, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithInstanceLock(context.Background(), key, func(store Store) error {
		if err := store.UpdateStatus(context.Background(), 1, StatusCancelled, &at); err != nil {
			return err
		}
		return store.UpdateStatus(context.Background(), 2, StatusConfirmed, nil)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM bookings WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).
			AddRow(3, 7, "2024-03-04", 10, "cancelled", "weekly", now, now))
	mock.ExpectQuery(`SELECT .* FROM bookings WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnError(sql.ErrNoRows)

	b, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, RecurrenceWeekly, b.Recurrence)
	assert.NotNil(t, b.CancelledAt)

	_, err = repo.GetByID(context.Background(), 4)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListRecurring(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM bookings\s+WHERE member_id = \$1 AND recurrence <> '' AND status <> 'cancelled'`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).
			AddRow(3, 7, "2024-03-04", 10, "confirmed", "weekly", time.Now(), nil))

	bookings, err := repo.ListRecurring(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, RecurrenceWeekly, bookings[0].Recurrence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstanceLockKey(t *testing.T) {
	key := schedule.InstanceKey{TemplateID: 7, Date: "2024-03-04"}
	a, err := instanceLockKey(key)
	require.NoError(t, err)
	b, err := instanceLockKey(key)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Ids that agree in their low 32 bits still lock apart.
	low, err := instanceLockKey(schedule.InstanceKey{TemplateID: 1, Date: "2024-03-04"})
	require.NoError(t, err)
	high, err := instanceLockKey(schedule.InstanceKey{TemplateID: 1 + 1<<32, Date: "2024-03-04"})
	require.NoError(t, err)
	assert.NotEqual(t, low, high)

	next, err := instanceLockKey(schedule.InstanceKey{TemplateID: 7, Date: "2024-03-11"})
	require.NoError(t, err)
	assert.NotEqual(t, a, next)

	_, err = instanceLockKey(schedule.InstanceKey{TemplateID: 7, Date: "2024-13-01"})
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)
}
