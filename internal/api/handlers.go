package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/workshop-scheduling/internal/appointment"
	"github.com/hackgods/workshop-scheduling/internal/auth"
)

// AppointmentService is the part of appointment.Service the handlers use.
type AppointmentService interface {
	RequestAppointment(ctx context.Context, p *auth.Principal, req appointment.BookingRequest) (*appointment.Appointment, error)
	RequestAppointmentForClient(ctx context.Context, p *auth.Principal, req appointment.BookingRequest) (*appointment.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, to appointment.AppointmentStatus) (*appointment.Appointment, error)
	AvailableMechanics(ctx context.Context, p *auth.Principal, date time.Time, start appointment.TimeOfDay) ([]uuid.UUID, error)
	RecordWorkItem(ctx context.Context, p *auth.Principal, appointmentID uuid.UUID, in appointment.WorkItemInput) (*appointment.WorkItem, error)
	ListOwnAppointments(ctx context.Context, p *auth.Principal, limit, offset int) ([]appointment.AppointmentDetail, error)
	ListAssignedAppointments(ctx context.Context, p *auth.Principal, limit, offset int) ([]appointment.AppointmentDetail, error)
	SearchAppointments(ctx context.Context, p *auth.Principal, query string, limit, offset int) ([]appointment.AppointmentDetail, error)
}

func createAppointmentHandler(svc AppointmentService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		booking, ok := parseBooking(w, req)
		if !ok {
			return
		}

		appt, err := svc.RequestAppointment(r.Context(), auth.PrincipalFrom(r.Context()), booking)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func createForClientHandler(svc AppointmentService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateForClientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		booking, ok := parseBooking(w, req.CreateAppointmentRequest)
		if !ok {
			return
		}

		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
			return
		}
		booking.ClientID = clientID

		if req.MechanicID != nil && *req.MechanicID != "" {
			mechanicID, err := uuid.Parse(*req.MechanicID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_mechanic_id", "mechanic_id must be a valid UUID")
				return
			}
			booking.MechanicID = &mechanicID
		}

		appt, err := svc.RequestAppointmentForClient(r.Context(), auth.PrincipalFrom(r.Context()), booking)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc AppointmentService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		to := appointment.AppointmentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		appt, err := svc.UpdateAppointmentStatus(r.Context(), auth.PrincipalFrom(r.Context()), id, to)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availabilityHandler(svc AppointmentService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date, err := appointment.ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := appointment.ParseTimeOfDay(q.Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		mechanics, err := svc.AvailableMechanics(r.Context(), auth.PrincipalFrom(r.Context()), date, start)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		if mechanics == nil {
			mechanics = []uuid.UUID{}
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Date:      date.Format(time.DateOnly),
			StartTime: start.String(),
			Mechanics: mechanics,
		})
	}
}

func recordWorkItemHandler(svc AppointmentService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req WorkItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		item, err := svc.RecordWorkItem(r.Context(), auth.PrincipalFrom(r.Context()), id, appointment.WorkItemInput{
			Description:    req.Description,
			Materials:      req.Materials,
			CompletionTime: time.Duration(req.CompletionMinutes) * time.Minute,
			CostCents:      req.CostCents,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWorkItemResponse(item))
	}
}

type listFunc func(ctx context.Context, p *auth.Principal, limit, offset int) ([]appointment.AppointmentDetail, error)

func listHandler(list listFunc, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, ok := parsePage(w, r)
		if !ok {
			return
		}

		items, err := list(r.Context(), auth.PrincipalFrom(r.Context()), limit, offset)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(items, limit, offset))
	}
}

func searchHandler(svc AppointmentService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, ok := parsePage(w, r)
		if !ok {
			return
		}

		items, err := svc.SearchAppointments(r.Context(), auth.PrincipalFrom(r.Context()), r.URL.Query().Get("q"), limit, offset)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(items, limit, offset))
	}
}

func parseBooking(w http.ResponseWriter, req CreateAppointmentRequest) (appointment.BookingRequest, bool) {
	vehicleID, err := uuid.Parse(req.VehicleID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_vehicle_id", "vehicle_id must be a valid UUID")
		return appointment.BookingRequest{}, false
	}
	date, err := appointment.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return appointment.BookingRequest{}, false
	}
	start, err := appointment.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
		return appointment.BookingRequest{}, false
	}

	return appointment.BookingRequest{
		VehicleID:          vehicleID,
		Date:               date,
		StartTime:          start,
		ServiceType:        appointment.ServiceType(strings.ToLower(strings.TrimSpace(req.ServiceType))),
		ProblemDescription: req.ProblemDescription,
	}, true
}

// parsePage reads limit and offset with the same defaults and caps the
// service applies.
func parsePage(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+p.name, p.name+" must be an integer")
			return 0, 0, false
		}
		*p.dst = n
	}
	limit, offset = appointment.NormalizePage(limit, offset)
	return limit, offset, true
}
