package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/workshop-scheduling/internal/auth"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `a.id, a.client_id, a.vehicle_id, a.mechanic_id, a.scheduled_date, a.start_time,
	a.service_type, a.problem_description, a.status, a.total_cost_cents, a.created_at, a.updated_at`

const detailSelect = `
	SELECT ` + appointmentColumns + `,
	       c.first_name || ' ' || c.last_name,
	       m.first_name || ' ' || m.last_name,
	       v.make || ' ' || v.model || ' (' || v.serial_number || ')'
	FROM appointments a
	JOIN users c ON c.id = a.client_id
	JOIN vehicles v ON v.id = a.vehicle_id
	LEFT JOIN users m ON m.id = a.mechanic_id`

// Helpers

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
}

func scanAppointment(row pgx.Row, extra ...any) (*Appointment, error) {
	var a Appointment
	var start pgtype.Time

	dest := append([]any{
		&a.ID,
		&a.ClientID,
		&a.VehicleID,
		&a.MechanicID,
		&a.Date,
		&start,
		&a.ServiceType,
		&a.ProblemDescription,
		&a.Status,
		&a.TotalCostCents,
		&a.CreatedAt,
		&a.UpdatedAt,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartTime = TimeOfDay(time.Duration(start.Microseconds) * time.Microsecond / time.Minute)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		a, err := scanAppointment(rows, &d.ClientName, &d.MechanicName, &d.VehicleLabel)
		if err != nil {
			return nil, err
		}
		d.Appointment = *a
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var p auth.Principal
	err := row.Scan(&p.ID, &p.Username, &p.Role, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func listActiveBookings(ctx context.Context, q querier, mechanicID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.mechanic_id = $1
		  AND a.scheduled_date = $2
		  AND a.status IN ('CREATED', 'IN_PROGRESS')
		ORDER BY a.start_time
	`, mechanicID, CivilDate(date))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func insertAppointment(ctx context.Context, q querier, appt Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusCreated
	}

	row := q.QueryRow(ctx, `
		INSERT INTO appointments AS a (id, client_id, vehicle_id, mechanic_id, scheduled_date, start_time,
		                               service_type, problem_description, status, total_cost_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, now(), now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.ClientID, appt.VehicleID, appt.MechanicID, CivilDate(appt.Date), pgTime(appt.StartTime),
		appt.ServiceType, appt.ProblemDescription, appt.Status)

	return scanAppointment(row)
}

func mechanicDayKey(mechanicID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("mechanic:%s:%s", mechanicID, CivilDate(date).Format(time.DateOnly))
}

// Interface methods

func (r *PgRepository) GetPrincipalByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, role, is_active
		FROM users
		WHERE id = $1
	`, id)
	return scanPrincipal(row)
}

func (r *PgRepository) ListActiveMechanics(ctx context.Context) ([]auth.Principal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, role, is_active
		FROM users
		WHERE role = 'mechanic' AND is_active
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetVehicleByID(ctx context.Context, id uuid.UUID) (*Vehicle, error) {
	var v Vehicle
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, serial_number, make, model, body_type, fuel_type, doors, wheels,
		       production_date, acquisition_year, created_at
		FROM vehicles
		WHERE id = $1
	`, id).Scan(
		&v.ID,
		&v.OwnerID,
		&v.SerialNumber,
		&v.Make,
		&v.Model,
		&v.BodyType,
		&v.FuelType,
		&v.Doors,
		&v.Wheels,
		&v.ProductionDate,
		&v.AcquisitionYear,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveBookings(ctx context.Context, mechanicID uuid.UUID, date time.Time) ([]Appointment, error) {
	return listActiveBookings(ctx, r.pool, mechanicID, date)
}

type pgDayTx struct {
	tx pgx.Tx
}

func (t *pgDayTx) ListActiveBookings(ctx context.Context, mechanicID uuid.UUID, date time.Time) ([]Appointment, error) {
	return listActiveBookings(ctx, t.tx, mechanicID, date)
}

func (t *pgDayTx) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	return insertAppointment(ctx, t.tx, appt)
}

func (r *PgRepository) InMechanicDay(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context, tx MechanicDayTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, mechanicDayKey(mechanicID, date)); err != nil {
			return fmt.Errorf("lock mechanic day: %w", err)
		}
		return fn(ctx, &pgDayTx{tx: tx})
	})
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	return insertAppointment(ctx, r.pool, appt)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments AS a
		SET status = $2,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.client_id = $1
		ORDER BY a.scheduled_date DESC, a.start_time DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListAppointmentsByMechanic(ctx context.Context, mechanicID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.mechanic_id = $1
		ORDER BY a.scheduled_date ASC, a.start_time ASC
		LIMIT $2 OFFSET $3
	`, mechanicID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) SearchAppointments(ctx context.Context, query string, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE $1 = ''
		   OR c.last_name ILIKE '%' || $1 || '%'
		   OR c.tax_id ILIKE '%' || $1 || '%'
		   OR a.status ILIKE '%' || $1 || '%'
		ORDER BY a.scheduled_date DESC, a.start_time DESC
		LIMIT $2 OFFSET $3
	`, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) AddWorkItem(ctx context.Context, item WorkItem) (*WorkItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	var out WorkItem
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var seconds int64
		err := tx.QueryRow(ctx, `
			INSERT INTO work_items (id, appointment_id, description, materials, completion_seconds, cost_cents, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			RETURNING id, appointment_id, description, materials, completion_seconds, cost_cents, created_at
		`, item.ID, item.AppointmentID, item.Description, item.Materials,
			int64(item.CompletionTime/time.Second), item.CostCents).Scan(
			&out.ID,
			&out.AppointmentID,
			&out.Description,
			&out.Materials,
			&seconds,
			&out.CostCents,
			&out.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert work item: %w", err)
		}
		out.CompletionTime = time.Duration(seconds) * time.Second

		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET total_cost_cents = (
			        SELECT COALESCE(SUM(cost_cents), 0)::bigint
			        FROM work_items
			        WHERE appointment_id = $1
			    ),
			    updated_at = now()
			WHERE id = $1
		`, item.AppointmentID)
		if err != nil {
			return fmt.Errorf("update total cost: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAppointmentNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
