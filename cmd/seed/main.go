package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/workshop-scheduling/internal/auth"
	"github.com/hackgods/workshop-scheduling/internal/config"
	"github.com/hackgods/workshop-scheduling/internal/db"
	"github.com/hackgods/workshop-scheduling/internal/logging"
)

type seeded struct {
	secretary auth.Principal
	mechanics []auth.Principal
	clients   []auth.Principal
	vehicles  map[uuid.UUID][]uuid.UUID
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("err", err))
		os.Exit(1)
	}
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info("seed starting")

	mechanics := getInt("SEED_MECHANICS", 6)
	clients := getInt("SEED_CLIENTS", 200)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 0)
	if err != nil {
		log.Error("connect postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Error("migrate", slog.Any("err", err))
		os.Exit(1)
	}

	gofakeit.Seed(time.Now().UnixNano())

	out := &seeded{vehicles: make(map[uuid.UUID][]uuid.UUID)}

	if err := seedStaff(ctx, pool, log, mechanics, out); err != nil {
		log.Error("seed staff", slog.Any("err", err))
		os.Exit(1)
	}
	if err := seedClients(ctx, pool, log, clients, out); err != nil {
		log.Error("seed clients", slog.Any("err", err))
		os.Exit(1)
	}

	printTokens(auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL), out)
	log.Info("seed complete")
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger, mechanics int, out *seeded) error {
	log.Info("seeding staff", slog.Int("mechanics", mechanics))

	specializations := []string{
		"Engine",
		"Transmission",
		"Brakes",
		"Electrical",
		"Suspension",
		"Bodywork",
		"Air conditioning",
		"Diagnostics",
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		secretary, err := insertUser(ctx, tx, auth.RoleSecretary, "")
		if err != nil {
			return err
		}
		out.secretary = secretary

		for i := 0; i < mechanics; i++ {
			specialty := specializations[gofakeit.Number(0, len(specializations)-1)]
			m, err := insertUser(ctx, tx, auth.RoleMechanic, specialty)
			if err != nil {
				return err
			}
			out.mechanics = append(out.mechanics, m)
		}
		return nil
	})
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger, count int, out *seeded) error {
	log.Info("seeding clients", slog.Int("count", count))

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				c, err := insertUser(ctx, tx, auth.RoleClient, "")
				if err != nil {
					return err
				}
				out.clients = append(out.clients, c)

				for v := gofakeit.Number(1, 2); v > 0; v-- {
					id, err := insertVehicle(ctx, tx, c.ID)
					if err != nil {
						return err
					}
					out.vehicles[c.ID] = append(out.vehicles[c.ID], id)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Info("clients seeded", slog.Int("done", end), slog.Int("total", count))
	}
	return nil
}

func insertUser(ctx context.Context, tx pgx.Tx, role auth.Role, specialization string) (auth.Principal, error) {
	p := auth.Principal{
		ID:       uuid.New(),
		Username: fmt.Sprintf("%s.%s", strings.ToLower(gofakeit.Username()), uuid.NewString()[:6]),
		Role:     role,
		Active:   true,
	}

	var taxID *string
	if role == auth.RoleClient {
		afm := gofakeit.Numerify("#########")
		taxID = &afm
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, email, tax_id, address, specialization, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)
	`, p.ID, p.Username, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(),
		taxID, gofakeit.Street(), specialization, p.Role)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("insert %s: %w", role, err)
	}
	return p, nil
}

func insertVehicle(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	produced := gofakeit.DateRange(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Now().AddDate(-1, 0, 0))

	_, err := tx.Exec(ctx, `
		INSERT INTO vehicles (id, owner_id, serial_number, make, model, body_type, fuel_type,
		                      doors, wheels, production_date, acquisition_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 4, $9, $10)
	`, id, ownerID, strings.ToUpper(gofakeit.LetterN(3))+gofakeit.Numerify("##############"),
		gofakeit.CarMaker(), gofakeit.CarModel(), gofakeit.CarType(), gofakeit.CarFuelType(),
		[]int{3, 5}[gofakeit.Number(0, 1)], produced, gofakeit.Number(produced.Year(), time.Now().Year()))
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert vehicle: %w", err)
	}
	return id, nil
}

func printTokens(tokens *auth.TokenManager, out *seeded) {
	issue := func(p auth.Principal) string {
		t, err := tokens.Issue(p)
		if err != nil {
			return "error: " + err.Error()
		}
		return t
	}

	fmt.Println("\nsecretary", out.secretary.ID)
	fmt.Println("  token:", issue(out.secretary))

	for _, m := range out.mechanics[:min(3, len(out.mechanics))] {
		fmt.Println("mechanic", m.ID)
		fmt.Println("  token:", issue(m))
	}
	for _, c := range out.clients[:min(3, len(out.clients))] {
		fmt.Println("client", c.ID, "vehicles", out.vehicles[c.ID])
		fmt.Println("  token:", issue(c))
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
