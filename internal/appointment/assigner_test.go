package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/workshop-scheduling/internal/auth"
)

func mechanic() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: auth.RoleMechanic, Active: true}
}

func booked(m auth.Principal, start TimeOfDay, status AppointmentStatus) Appointment {
	id := m.ID
	return Appointment{ID: uuid.New(), MechanicID: &id, Date: day, StartTime: start, Status: status}
}

func TestAssigner_Available(t *testing.T) {
	free := mechanic()
	busy := mechanic()
	adjacent := mechanic()
	cancelled := mechanic()

	bookings := fixedBookings{
		busy.ID:      {booked(busy, Clock(9, 0), StatusCreated)},
		adjacent.ID:  {booked(adjacent, Clock(8, 0), StatusInProgress), booked(adjacent, Clock(12, 0), StatusCreated)},
		cancelled.ID: {booked(cancelled, Clock(10, 0), StatusCancelled)},
	}
	a := NewAssigner(bookings, FirstSelector{})

	got, err := a.Available(context.Background(), day, Clock(10, 0), []auth.Principal{free, busy, adjacent, cancelled})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{free.ID, adjacent.ID, cancelled.ID}, got)
}

func TestAssigner_SkipsInactiveAndNonMechanics(t *testing.T) {
	inactive := mechanic()
	inactive.Active = false
	secretary := auth.Principal{ID: uuid.New(), Role: auth.RoleSecretary, Active: true}

	a := NewAssigner(fixedBookings{}, FirstSelector{})
	got, err := a.Available(context.Background(), day, Clock(10, 0), []auth.Principal{inactive, secretary})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAssigner_IgnoresBookingsOutsideWindow(t *testing.T) {
	m := mechanic()
	// A 16:00 booking runs until 18:00 but is not considered when assigning.
	a := NewAssigner(fixedBookings{m.ID: {booked(m, Clock(16, 0), StatusCreated)}}, FirstSelector{})

	got, err := a.Available(context.Background(), day, Clock(15, 0), []auth.Principal{m})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{m.ID}, got)

	// The commit-time check still sees it.
	assert.True(t, Conflicts(SlotAt(day, Clock(15, 0)), BusyIntervals([]Appointment{booked(m, Clock(16, 0), StatusCreated)})))
}

func TestAssigner_AssignReturnsNilWhenNobodyFree(t *testing.T) {
	m := mechanic()
	a := NewAssigner(fixedBookings{m.ID: {booked(m, Clock(10, 0), StatusCreated)}}, nil)

	got, err := a.Assign(context.Background(), day, Clock(11, 0), []auth.Principal{m})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = a.Assign(context.Background(), day, Clock(10, 0), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAssigner_AssignNeverReturnsConflictingMechanic(t *testing.T) {
	pool := []auth.Principal{mechanic(), mechanic(), mechanic()}
	bookings := fixedBookings{
		pool[0].ID: {booked(pool[0], Clock(10, 0), StatusCreated)},
		pool[2].ID: {booked(pool[2], Clock(11, 0), StatusInProgress)},
	}
	a := NewAssigner(bookings, NewSeededSelector(42))

	for i := 0; i < 50; i++ {
		got, err := a.Assign(context.Background(), day, Clock(10, 30), pool)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, pool[1].ID, *got)
	}
}

type failingBookings struct{ err error }

func (f failingBookings) ListActiveBookings(ctx context.Context, mechanicID uuid.UUID, date time.Time) ([]Appointment, error) {
	return nil, f.err
}

func TestAssigner_PropagatesReadErrors(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewAssigner(failingBookings{err: boom}, nil)

	_, err := a.Available(context.Background(), day, Clock(10, 0), []auth.Principal{mechanic()})
	assert.ErrorIs(t, err, boom)
}

func TestSelectors(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	t.Run("first", func(t *testing.T) {
		assert.Equal(t, ids[0], FirstSelector{}.Select(ids))
	})

	t.Run("round robin", func(t *testing.T) {
		rr := &RoundRobinSelector{}
		got := []uuid.UUID{rr.Select(ids), rr.Select(ids), rr.Select(ids), rr.Select(ids)}
		assert.Equal(t, []uuid.UUID{ids[0], ids[1], ids[2], ids[0]}, got)
	})

	t.Run("seeded is reproducible", func(t *testing.T) {
		a, b := NewSeededSelector(7), NewSeededSelector(7)
		for i := 0; i < 20; i++ {
			assert.Equal(t, a.Select(ids), b.Select(ids))
		}
	})

	t.Run("random stays within candidates", func(t *testing.T) {
		r := NewRandomSelector()
		for i := 0; i < 20; i++ {
			assert.Contains(t, ids, r.Select(ids))
		}
	})
}
