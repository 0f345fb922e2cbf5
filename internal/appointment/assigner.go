package appointment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/workshop-scheduling/internal/auth"
)

// Selector picks one mechanic out of a non-empty candidate list.
type Selector interface {
	Select(candidates []uuid.UUID) uuid.UUID
}

// RandomSelector spreads load by choosing uniformly at random. It makes no
// fairness guarantee.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSelector() *RandomSelector {
	return &RandomSelector{}
}

// NewSeededSelector returns a RandomSelector with a reproducible sequence.
func NewSeededSelector(seed uint64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (s *RandomSelector) Select(candidates []uuid.UUID) uuid.UUID {
	if s.rng == nil {
		return candidates[rand.IntN(len(candidates))]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return candidates[s.rng.IntN(len(candidates))]
}

// FirstSelector always takes the first candidate in pool order.
type FirstSelector struct{}

func (FirstSelector) Select(candidates []uuid.UUID) uuid.UUID {
	return candidates[0]
}

type RoundRobinSelector struct {
	next atomic.Uint64
}

func (s *RoundRobinSelector) Select(candidates []uuid.UUID) uuid.UUID {
	n := s.next.Add(1) - 1
	return candidates[n%uint64(len(candidates))]
}

type Assigner struct {
	bookings BookingReader
	selector Selector
}

func NewAssigner(bookings BookingReader, selector Selector) *Assigner {
	if selector == nil {
		selector = NewRandomSelector()
	}
	return &Assigner{
		bookings: bookings,
		selector: selector,
	}
}

// Available returns, in pool order, every active mechanic whose bookings
// on date leave [start, start+2h) free. Only bookings starting inside
// opening hours are considered.
func (a *Assigner) Available(ctx context.Context, date time.Time, start TimeOfDay, pool []auth.Principal) ([]uuid.UUID, error) {
	slot := SlotAt(date, start)

	var available []uuid.UUID
	for _, m := range pool {
		if m.Role != auth.RoleMechanic || !m.Active {
			continue
		}

		bookings, err := a.bookings.ListActiveBookings(ctx, m.ID, date)
		if err != nil {
			return nil, fmt.Errorf("load bookings for mechanic %s: %w", m.ID, err)
		}

		if !Conflicts(slot, BusyIntervals(withinAssignmentWindow(bookings))) {
			available = append(available, m.ID)
		}
	}

	return available, nil
}

// Assign picks one available mechanic. A nil ID with a nil error means
// nobody is free.
func (a *Assigner) Assign(ctx context.Context, date time.Time, start TimeOfDay, pool []auth.Principal) (*uuid.UUID, error) {
	available, err := a.Available(ctx, date, start, pool)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, nil
	}

	id := a.selector.Select(available)
	return &id, nil
}

func (a *Assigner) Select(candidates []uuid.UUID) uuid.UUID {
	return a.selector.Select(candidates)
}
