package appointment

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/workshop-scheduling/internal/auth"
	"github.com/hackgods/workshop-scheduling/internal/notify"
	redisclient "github.com/hackgods/workshop-scheduling/internal/redis"
)

// memRepo is an in-memory Repository. It does not serialize InMechanicDay;
// that is left to the locker under test.
type memRepo struct {
	mu         sync.Mutex
	principals map[uuid.UUID]auth.Principal
	vehicles   map[uuid.UUID]Vehicle
	appts      map[uuid.UUID]Appointment
	workItems  []WorkItem
	events     []EventLog

	mechanicListCalls atomic.Int32
	lastLimit         int
	lastOffset        int
	lastQuery         string

	// beforeCommit runs at the start of InMechanicDay, outside the repo mutex.
	beforeCommit func(mechanicID uuid.UUID)
	// failStatusCAS makes UpdateAppointmentStatus behave as if the row moved.
	failStatusCAS bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		principals: make(map[uuid.UUID]auth.Principal),
		vehicles:   make(map[uuid.UUID]Vehicle),
		appts:      make(map[uuid.UUID]Appointment),
	}
}

func (r *memRepo) addPrincipal(username string, role auth.Role, active bool) auth.Principal {
	p := auth.Principal{ID: uuid.New(), Username: username, Role: role, Active: active}
	r.mu.Lock()
	r.principals[p.ID] = p
	r.mu.Unlock()
	return p
}

func (r *memRepo) addVehicle(owner uuid.UUID) Vehicle {
	v := Vehicle{ID: uuid.New(), OwnerID: owner, SerialNumber: uuid.NewString(), Make: "Fiat", Model: "Panda"}
	r.mu.Lock()
	r.vehicles[v.ID] = v
	r.mu.Unlock()
	return v
}

func (r *memRepo) addAppointment(a Appointment) Appointment {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Date = CivilDate(a.Date)
	r.mu.Lock()
	r.appts[a.ID] = a
	r.mu.Unlock()
	return a
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appts)
}

func (r *memRepo) all() []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		out = append(out, a)
	}
	return out
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (r *memRepo) GetPrincipalByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return &p, nil
}

func (r *memRepo) ListActiveMechanics(ctx context.Context) ([]auth.Principal, error) {
	r.mechanicListCalls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []auth.Principal
	for _, p := range r.principals {
		if p.Role == auth.RoleMechanic && p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memRepo) GetVehicleByID(ctx context.Context, id uuid.UUID) (*Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, ErrVehicleNotFound
	}
	return &v, nil
}

func (r *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) ListActiveBookings(ctx context.Context, mechanicID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := CivilDate(date)
	var out []Appointment
	for _, a := range r.appts {
		if a.MechanicID != nil && *a.MechanicID == mechanicID && a.Date.Equal(day) && a.Status.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *memRepo) InMechanicDay(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context, tx MechanicDayTx) error) error {
	if r.beforeCommit != nil {
		r.beforeCommit(mechanicID)
	}
	return fn(ctx, r)
}

func (r *memRepo) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	appt.ID = uuid.New()
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	r.mu.Lock()
	r.appts[appt.ID] = appt
	r.mu.Unlock()
	return &appt, nil
}

func (r *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from || r.failStatusCAS {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appts[id] = a
	return &a, nil
}

func (r *memRepo) details(match func(Appointment) bool, limit, offset int) []AppointmentDetail {
	r.lastLimit, r.lastOffset = limit, offset
	var out []AppointmentDetail
	for _, a := range r.appts {
		if match(a) {
			out = append(out, AppointmentDetail{Appointment: a})
		}
	}
	return out
}

func (r *memRepo) ListAppointmentsByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.details(func(a Appointment) bool { return a.ClientID == clientID }, limit, offset), nil
}

func (r *memRepo) ListAppointmentsByMechanic(ctx context.Context, mechanicID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.details(func(a Appointment) bool { return a.MechanicID != nil && *a.MechanicID == mechanicID }, limit, offset), nil
}

func (r *memRepo) SearchAppointments(ctx context.Context, query string, limit, offset int) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = query
	return r.details(func(a Appointment) bool { return query == "" || string(a.Status) == query }, limit, offset), nil
}

func (r *memRepo) AddWorkItem(ctx context.Context, item WorkItem) (*WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[item.AppointmentID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	r.workItems = append(r.workItems, item)

	var total int64
	for _, w := range r.workItems {
		if w.AppointmentID == a.ID {
			total += w.CostCents
		}
	}
	a.TotalCostCents = total
	r.appts[a.ID] = a
	return &item, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type passLocker struct{}

func (passLocker) WithMechanicDayLock(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type contendedLocker struct{}

func (contendedLocker) WithMechanicDayLock(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// barrierLocker holds the first n callers until all n have arrived, so
// every one of them has finished its availability read before any commit.
type barrierLocker struct {
	inner   redisclient.Locker
	n       int32
	arrived atomic.Int32
	release chan struct{}
}

func newBarrierLocker(inner redisclient.Locker, n int) *barrierLocker {
	return &barrierLocker{inner: inner, n: int32(n), release: make(chan struct{})}
}

func (b *barrierLocker) WithMechanicDayLock(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	if k := b.arrived.Add(1); k <= b.n {
		if k == b.n {
			close(b.release)
		}
		<-b.release
	}
	return b.inner.WithMechanicDayLock(ctx, mechanicID, date, fn)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) levels() []notify.Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Level
	for _, m := range n.sent {
		out = append(out, m.Level)
	}
	return out
}

type fixedBookings map[uuid.UUID][]Appointment

func (f fixedBookings) ListActiveBookings(ctx context.Context, mechanicID uuid.UUID, date time.Time) ([]Appointment, error) {
	return f[mechanicID], nil
}
