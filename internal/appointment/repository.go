package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/workshop-scheduling/internal/auth"
)

var (
	ErrPrincipalNotFound   = errors.New("principal not found")
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

type BookingReader interface {
	// ListActiveBookings returns the mechanic's CREATED and IN_PROGRESS
	// appointments on date, ordered by start time.
	ListActiveBookings(ctx context.Context, mechanicID uuid.UUID, date time.Time) ([]Appointment, error)
}

// MechanicDayTx is the view of the store inside a (mechanic, date) guarded
// transaction.
type MechanicDayTx interface {
	BookingReader
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	BookingReader

	GetPrincipalByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error)
	ListActiveMechanics(ctx context.Context) ([]auth.Principal, error)
	GetVehicleByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// InMechanicDay runs fn in one transaction that is serialized against
	// every other InMechanicDay call for the same mechanic and date.
	InMechanicDay(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context, tx MechanicDayTx) error) error

	// CreateAppointment persists an appointment without a mechanic.
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	// UpdateAppointmentStatus moves id from -> to, returning
	// ErrAppointmentNotFound when the row is no longer in from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Listings
	ListAppointmentsByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	ListAppointmentsByMechanic(ctx context.Context, mechanicID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	SearchAppointments(ctx context.Context, query string, limit, offset int) ([]AppointmentDetail, error)

	// AddWorkItem stores the item and recomputes the appointment's total cost.
	AddWorkItem(ctx context.Context, item WorkItem) (*WorkItem, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
