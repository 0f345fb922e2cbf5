package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/workshop-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	VehicleID          string `json:"vehicle_id"`
	Date               string `json:"date"`       // YYYY-MM-DD
	StartTime          string `json:"start_time"` // HH:MM
	ServiceType        string `json:"service_type"`
	ProblemDescription string `json:"problem_description"`
}

type CreateForClientRequest struct {
	CreateAppointmentRequest
	ClientID   string  `json:"client_id"`
	MechanicID *string `json:"mechanic_id,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type WorkItemRequest struct {
	Description       string `json:"description"`
	Materials         string `json:"materials"`
	CompletionMinutes int    `json:"completion_minutes"`
	CostCents         int64  `json:"cost_cents"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ClientID           uuid.UUID  `json:"client_id"`
	VehicleID          uuid.UUID  `json:"vehicle_id"`
	MechanicID         *uuid.UUID `json:"mechanic_id"`
	Date               string     `json:"date"`
	StartTime          string     `json:"start_time"`
	EndTime            string     `json:"end_time"`
	ServiceType        string     `json:"service_type"`
	ProblemDescription string     `json:"problem_description,omitempty"`
	Status             string     `json:"status"`
	TotalCostCents     int64      `json:"total_cost_cents"`
	CreatedAt          time.Time  `json:"created_at"`

	ClientName   string  `json:"client_name,omitempty"`
	MechanicName *string `json:"mechanic_name,omitempty"`
	VehicleLabel string  `json:"vehicle_label,omitempty"`
}

type AppointmentListResponse struct {
	Items  []AppointmentResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type AvailabilityResponse struct {
	Date      string      `json:"date"`
	StartTime string      `json:"start_time"`
	Mechanics []uuid.UUID `json:"mechanics"`
}

type WorkItemResponse struct {
	ID                uuid.UUID `json:"id"`
	AppointmentID     uuid.UUID `json:"appointment_id"`
	Description       string    `json:"description"`
	Materials         string    `json:"materials,omitempty"`
	CompletionMinutes int       `json:"completion_minutes"`
	CostCents         int64     `json:"cost_cents"`
	CreatedAt         time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	end := a.StartTime + appointment.TimeOfDay(appointment.SlotDuration.Minutes())
	return AppointmentResponse{
		ID:                 a.ID,
		ClientID:           a.ClientID,
		VehicleID:          a.VehicleID,
		MechanicID:         a.MechanicID,
		Date:               a.Date.Format(time.DateOnly),
		StartTime:          a.StartTime.String(),
		EndTime:            end.String(),
		ServiceType:        string(a.ServiceType),
		ProblemDescription: a.ProblemDescription,
		Status:             string(a.Status),
		TotalCostCents:     a.TotalCostCents,
		CreatedAt:          a.CreatedAt,
	}
}

func toListResponse(details []appointment.AppointmentDetail, limit, offset int) AppointmentListResponse {
	items := make([]AppointmentResponse, 0, len(details))
	for i := range details {
		resp := toAppointmentResponse(&details[i].Appointment)
		resp.ClientName = details[i].ClientName
		resp.MechanicName = details[i].MechanicName
		resp.VehicleLabel = details[i].VehicleLabel
		items = append(items, resp)
	}
	return AppointmentListResponse{Items: items, Limit: limit, Offset: offset}
}

func toWorkItemResponse(w *appointment.WorkItem) WorkItemResponse {
	return WorkItemResponse{
		ID:                w.ID,
		AppointmentID:     w.AppointmentID,
		Description:       w.Description,
		Materials:         w.Materials,
		CompletionMinutes: int(w.CompletionTime / time.Minute),
		CostCents:         w.CostCents,
		CreatedAt:         w.CreatedAt,
	}
}
