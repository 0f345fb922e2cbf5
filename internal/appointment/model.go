package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusCreated    AppointmentStatus = "CREATED"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
)

// Active appointments still occupy calendar time.
func (s AppointmentStatus) Active() bool {
	return s == StatusCreated || s == StatusInProgress
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s AppointmentStatus) Valid() bool {
	return s.Active() || s.Terminal()
}

type ServiceType string

const (
	ServiceTypeService ServiceType = "service"
	ServiceTypeRepair  ServiceType = "repair"
)

type Vehicle struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	SerialNumber    string
	Make            string
	Model           string
	BodyType        string
	FuelType        string
	Doors           int
	Wheels          int
	ProductionDate  time.Time
	AcquisitionYear int
	CreatedAt       time.Time
}

type Appointment struct {
	ID                 uuid.UUID
	ClientID           uuid.UUID
	VehicleID          uuid.UUID
	MechanicID         *uuid.UUID
	Date               time.Time
	StartTime          TimeOfDay
	ServiceType        ServiceType
	ProblemDescription string
	Status             AppointmentStatus
	TotalCostCents     int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Slot is the calendar interval the appointment occupies.
func (a Appointment) Slot() Interval {
	return SlotAt(a.Date, a.StartTime)
}

type WorkItem struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	Description    string
	Materials      string
	CompletionTime time.Duration
	CostCents      int64
	CreatedAt      time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentDetail is an appointment joined with the names shown in listings.
type AppointmentDetail struct {
	Appointment
	ClientName   string
	MechanicName *string
	VehicleLabel string
}
