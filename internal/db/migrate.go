package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

// Migrate applies the idempotent schema. Statements run through the simple
// protocol, so the whole file goes out in one round trip.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Overlap is a pair of active appointments on the same mechanic whose
// two-hour slots intersect.
type Overlap struct {
	MechanicID uuid.UUID
	Date       time.Time
	FirstID    uuid.UUID
	SecondID   uuid.UUID
}

// FindOverlaps audits the appointments table for double-booked mechanics.
func FindOverlaps(ctx context.Context, pool *pgxpool.Pool) ([]Overlap, error) {
	rows, err := pool.Query(ctx, `
		SELECT a.mechanic_id, a.scheduled_date, a.id, b.id
		FROM appointments a
		JOIN appointments b
		  ON b.mechanic_id = a.mechanic_id
		 AND b.scheduled_date = a.scheduled_date
		 AND a.id < b.id
		WHERE a.status IN ('CREATED', 'IN_PROGRESS')
		  AND b.status IN ('CREATED', 'IN_PROGRESS')
		  AND a.start_time < b.start_time + interval '2 hours'
		  AND b.start_time < a.start_time + interval '2 hours'
		ORDER BY a.scheduled_date, a.mechanic_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query overlaps: %w", err)
	}
	defer rows.Close()

	var result []Overlap
	for rows.Next() {
		var o Overlap
		if err := rows.Scan(&o.MechanicID, &o.Date, &o.FirstID, &o.SecondID); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
