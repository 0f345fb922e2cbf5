package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/workshop-scheduling/internal/auth"
	"github.com/hackgods/workshop-scheduling/internal/notify"
	redisclient "github.com/hackgods/workshop-scheduling/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentUnassigned    = "APPOINTMENT_UNASSIGNED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventWorkItemRecorded         = "WORK_ITEM_RECORDED"
)

var (
	ErrSlotAlreadyBooked   = errors.New("mechanic already has an overlapping appointment")
	ErrConcurrencyConflict = errors.New("concurrent update, please retry")
)

type BookingRequest struct {
	ClientID           uuid.UUID
	VehicleID          uuid.UUID
	Date               time.Time
	StartTime          TimeOfDay
	ServiceType        ServiceType
	ProblemDescription string

	// MechanicID is honoured only on the secretary path.
	MechanicID *uuid.UUID
}

type WorkItemInput struct {
	Description    string
	Materials      string
	CompletionTime time.Duration
	CostCents      int64
}

type ServiceConfig struct {
	Policy   *auth.Policy
	Selector Selector
	Notifier notify.Notifier
	Logger   *slog.Logger
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	policy   *auth.Policy
	assigner *Assigner
	notifier notify.Notifier
	log      *slog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg ServiceConfig) *Service {
	if cfg.Policy == nil {
		cfg.Policy = auth.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier(cfg.Logger)
	}

	return &Service{
		repo:     repo,
		locker:   locker,
		policy:   cfg.Policy,
		assigner: NewAssigner(repo, cfg.Selector),
		notifier: cfg.Notifier,
		log:      cfg.Logger.With(slog.String("component", "appointment.service")),
	}
}

// RequestAppointment books a slot on behalf of the calling client. Booking
// for somebody else additionally needs create-appointment-for-any-client.
func (s *Service) RequestAppointment(ctx context.Context, p *auth.Principal, req BookingRequest) (*Appointment, error) {
	req.MechanicID = nil
	if req.ClientID == uuid.Nil && p != nil {
		req.ClientID = p.ID
	}

	if err := Validate(req); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, auth.OpCreateOwnAppointment); err != nil {
		return nil, err
	}
	if req.ClientID != p.ID {
		if err := s.authorize(ctx, p, auth.OpCreateAppointmentForAny); err != nil {
			return nil, err
		}
	}

	return s.book(ctx, p, req)
}

// RequestAppointmentForClient is the secretary path. A chosen mechanic skips
// the assigner but is still committed under the mechanic-day guard.
func (s *Service) RequestAppointmentForClient(ctx context.Context, p *auth.Principal, req BookingRequest) (*Appointment, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, auth.OpCreateAppointmentForAny); err != nil {
		return nil, err
	}

	return s.book(ctx, p, req)
}

func (s *Service) book(ctx context.Context, p *auth.Principal, req BookingRequest) (*Appointment, error) {
	if err := s.checkClientVehicle(ctx, req.ClientID, req.VehicleID); err != nil {
		return nil, err
	}

	appt := Appointment{
		ClientID:           req.ClientID,
		VehicleID:          req.VehicleID,
		Date:               CivilDate(req.Date),
		StartTime:          req.StartTime,
		ServiceType:        req.ServiceType,
		ProblemDescription: strings.TrimSpace(req.ProblemDescription),
		Status:             StatusCreated,
	}

	if req.MechanicID != nil {
		if err := s.checkMechanic(ctx, *req.MechanicID); err != nil {
			return nil, err
		}
		created, err := s.commitForMechanic(ctx, appt, *req.MechanicID)
		if err != nil {
			return nil, err
		}
		s.afterCreate(ctx, p, created)
		return created, nil
	}

	pool, err := s.repo.ListActiveMechanics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mechanics: %w", err)
	}

	candidates, err := s.assigner.Available(ctx, appt.Date, appt.StartTime, pool)
	if err != nil {
		return nil, err
	}

	for len(candidates) > 0 {
		pick := s.assigner.Select(candidates)

		created, err := s.commitForMechanic(ctx, appt, pick)
		if err == nil {
			s.afterCreate(ctx, p, created)
			return created, nil
		}
		if !errors.Is(err, ErrSlotAlreadyBooked) {
			return nil, err
		}

		s.log.InfoContext(ctx, "mechanic taken between check and commit, trying next",
			slog.String("mechanic_id", pick.String()),
			slog.String("date", appt.Date.Format(time.DateOnly)),
			slog.String("start_time", appt.StartTime.String()),
		)
		candidates = slices.DeleteFunc(candidates, func(id uuid.UUID) bool { return id == pick })
	}

	// Nobody free: the booking stands without a mechanic.
	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create unassigned appointment: %w", err)
	}
	s.logEvent(ctx, created.ID, EventAppointmentUnassigned, map[string]any{
		"date":       created.Date.Format(time.DateOnly),
		"start_time": created.StartTime.String(),
	})
	s.notify(ctx, notify.Info(p.ID, fmt.Sprintf(
		"Appointment booked for %s at %s; a mechanic will be assigned later.",
		created.Date.Format(time.DateOnly), created.StartTime)))

	return created, nil
}

// commitForMechanic re-checks the mechanic's calendar and inserts the
// appointment while holding both the Redis lock and the database guard for
// (mechanic, date).
func (s *Service) commitForMechanic(ctx context.Context, appt Appointment, mechanicID uuid.UUID) (*Appointment, error) {
	appt.MechanicID = &mechanicID

	var created *Appointment

	err := s.locker.WithMechanicDayLock(ctx, mechanicID, appt.Date, func(lockCtx context.Context) error {
		return s.repo.InMechanicDay(lockCtx, mechanicID, appt.Date, func(txCtx context.Context, tx MechanicDayTx) error {
			existing, err := tx.ListActiveBookings(txCtx, mechanicID, appt.Date)
			if err != nil {
				return fmt.Errorf("re-check bookings: %w", err)
			}
			if Conflicts(appt.Slot(), BusyIntervals(existing)) {
				return ErrSlotAlreadyBooked
			}

			c, err := tx.CreateAppointment(txCtx, appt)
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}
			created = c
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.log.WarnContext(ctx, "mechanic day lock contended",
				slog.String("mechanic_id", mechanicID.String()),
				slog.String("date", appt.Date.Format(time.DateOnly)),
			)
			return nil, fmt.Errorf("%w: mechanic %s is being booked", ErrConcurrencyConflict, mechanicID)
		}
		return nil, err
	}

	return created, nil
}

func (s *Service) afterCreate(ctx context.Context, p *auth.Principal, appt *Appointment) {
	payload := map[string]any{
		"client_id":    appt.ClientID.String(),
		"vehicle_id":   appt.VehicleID.String(),
		"date":         appt.Date.Format(time.DateOnly),
		"start_time":   appt.StartTime.String(),
		"service_type": appt.ServiceType,
		"requested_by": p.ID.String(),
	}
	if appt.MechanicID != nil {
		payload["mechanic_id"] = appt.MechanicID.String()
	}
	s.logEvent(ctx, appt.ID, EventAppointmentCreated, payload)

	s.notify(ctx, notify.Success(p.ID, fmt.Sprintf(
		"Appointment booked for %s at %s.", appt.Date.Format(time.DateOnly), appt.StartTime)))
}

func (s *Service) checkClientVehicle(ctx context.Context, clientID, vehicleID uuid.UUID) error {
	client, err := s.repo.GetPrincipalByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return validationError("client_id", "unknown client")
		}
		return fmt.Errorf("load client: %w", err)
	}
	if client.Role != auth.RoleClient {
		return validationError("client_id", "is not a client")
	}

	vehicle, err := s.repo.GetVehicleByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, ErrVehicleNotFound) {
			return validationError("vehicle_id", "unknown vehicle")
		}
		return fmt.Errorf("load vehicle: %w", err)
	}
	if vehicle.OwnerID != client.ID {
		return validationError("vehicle_id", "does not belong to the client")
	}
	return nil
}

func (s *Service) checkMechanic(ctx context.Context, mechanicID uuid.UUID) error {
	mechanic, err := s.repo.GetPrincipalByID(ctx, mechanicID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return validationError("mechanic_id", "unknown mechanic")
		}
		return fmt.Errorf("load mechanic: %w", err)
	}
	if mechanic.Role != auth.RoleMechanic || !mechanic.Active {
		return validationError("mechanic_id", "is not an active mechanic")
	}
	return nil
}

// UpdateAppointmentStatus applies one lifecycle transition. Rejections are
// reported to the caller as a notification and leave the appointment as is.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if err := s.authorize(ctx, p, auth.OpUpdateAppointmentStatus); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := CanTransition(appt.Status, to); err != nil {
		s.notify(ctx, notify.Error(p.ID, err.Error()))
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: status of %s changed meanwhile", ErrConcurrencyConflict, appt.ID)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from":       appt.Status,
		"to":         to,
		"changed_by": p.ID.String(),
	})
	s.notify(ctx, notify.Success(p.ID, fmt.Sprintf("Appointment status changed to %s.", to)))

	return updated, nil
}

// AvailableMechanics previews which mechanics could take the slot right now.
func (s *Service) AvailableMechanics(ctx context.Context, p *auth.Principal, date time.Time, start TimeOfDay) ([]uuid.UUID, error) {
	probe := BookingRequest{Date: date, StartTime: start, ServiceType: ServiceTypeService}
	if err := Validate(probe); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, auth.OpViewAvailability); err != nil {
		return nil, err
	}

	pool, err := s.repo.ListActiveMechanics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mechanics: %w", err)
	}
	return s.assigner.Available(ctx, CivilDate(date), start, pool)
}

// RecordWorkItem attaches a work item to an appointment the caller is
// assigned to and rolls its cost into the total.
func (s *Service) RecordWorkItem(ctx context.Context, p *auth.Principal, appointmentID uuid.UUID, in WorkItemInput) (*WorkItem, error) {
	if err := s.authorize(ctx, p, auth.OpRecordWorkItem); err != nil {
		return nil, err
	}

	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, validationError("description", "is required")
	}
	if in.CostCents < 0 {
		return nil, validationError("cost", "must not be negative")
	}
	if in.CompletionTime < 0 {
		return nil, validationError("completion_time", "must not be negative")
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.MechanicID == nil || *appt.MechanicID != p.ID {
		if err := s.authorize(ctx, p, auth.OpRecordWorkItemForAny); err != nil {
			return nil, err
		}
	}
	if appt.Status == StatusCancelled {
		return nil, validationError("appointment_id", "appointment is cancelled")
	}

	item, err := s.repo.AddWorkItem(ctx, WorkItem{
		AppointmentID:  appt.ID,
		Description:    desc,
		Materials:      strings.TrimSpace(in.Materials),
		CompletionTime: in.CompletionTime,
		CostCents:      in.CostCents,
	})
	if err != nil {
		return nil, fmt.Errorf("add work item: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventWorkItemRecorded, map[string]any{
		"work_item_id": item.ID.String(),
		"cost_cents":   item.CostCents,
		"recorded_by":  p.ID.String(),
	})
	return item, nil
}

// ListOwnAppointments retrieves the calling client's appointments, newest first
func (s *Service) ListOwnAppointments(ctx context.Context, p *auth.Principal, limit, offset int) ([]AppointmentDetail, error) {
	if err := s.authorize(ctx, p, auth.OpViewOwnAppointments); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)

	appointments, err := s.repo.ListAppointmentsByClient(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by client: %w", err)
	}
	return appointments, nil
}

// ListAssignedAppointments retrieves the calling mechanic's work queue in calendar order
func (s *Service) ListAssignedAppointments(ctx context.Context, p *auth.Principal, limit, offset int) ([]AppointmentDetail, error) {
	if err := s.authorize(ctx, p, auth.OpViewAssignedAppointments); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)

	appointments, err := s.repo.ListAppointmentsByMechanic(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by mechanic: %w", err)
	}
	return appointments, nil
}

// SearchAppointments matches client last name, client tax id or status. An
// empty query lists everything.
func (s *Service) SearchAppointments(ctx context.Context, p *auth.Principal, query string, limit, offset int) ([]AppointmentDetail, error) {
	if err := s.authorize(ctx, p, auth.OpViewAllAppointments); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)

	appointments, err := s.repo.SearchAppointments(ctx, strings.TrimSpace(query), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) authorize(ctx context.Context, p *auth.Principal, op auth.Operation) error {
	if err := s.policy.Authorize(p, op); err != nil {
		attrs := []any{slog.String("operation", string(op)), slog.Any("err", err)}
		if p != nil {
			attrs = append(attrs, slog.String("principal_id", p.ID.String()), slog.String("role", string(p.Role)))
		}
		s.log.WarnContext(ctx, "operation denied", attrs...)
		return err
	}
	return nil
}

func (s *Service) notify(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WarnContext(ctx, "notification failed",
			slog.String("recipient_id", n.RecipientID.String()),
			slog.Any("err", err),
		)
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to marshal event payload", slog.String("event_type", eventType), slog.Any("err", err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.ErrorContext(ctx, "failed to insert event log",
			slog.String("event_type", eventType),
			slog.String("appointment_id", appointmentID.String()),
			slog.Any("err", err),
		)
	}
}

// NormalizePage applies the listing defaults: 20 per page, at most 100.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
