package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesa-digital/api/internal/config"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/enum"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	tables := flag.Int("tables", 10, "Number of tables to create")
	demo := flag.Bool("demo", false, "Also create a demo menu when the catalog is empty")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	// Fall back to defaults
	if *email == "" {
		*email = "admin@mesa.local"
	}
	if *password == "" {
		*password = "password123"
		log.Warn().Msg("using default password 'password123', change it immediately in production")
	}
	if *name == "" {
		*name = "Administrador"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}
	log.Info().Msg("connected to database")

	// Seed in a transaction so a partial run leaves nothing behind
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)

	userID, err := seedAdmin(ctx, q, *email, *password, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}

	created, err := seedTables(ctx, q, *tables)
	if err != nil {
		log.Fatal().Err(err).Msg("seed tables")
	}

	if *demo {
		if err := seedDemoMenu(ctx, q); err != nil {
			log.Fatal().Err(err).Msg("seed demo menu")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("commit")
	}

	log.Info().
		Str("admin_id", userID.String()).
		Int("tables_created", created).
		Msg("seed completed successfully")
}

// seedAdmin creates the admin user if it doesn't exist.
func seedAdmin(ctx context.Context, q *database.Queries, email, password, fullName string) (uuid.UUID, error) {
	existing, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		log.Info().Str("email", email).Str("id", existing.ID.String()).Msg("user already exists, skipping")
		return existing.ID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := q.CreateUser(ctx, database.CreateUserParams{
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
		Role:           enum.UserRoleAdmin,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}

	log.Info().Str("email", email).Str("id", user.ID.String()).Msg("created admin user")
	return user.ID, nil
}

// seedTables creates tables 1..n, skipping numbers already taken.
func seedTables(ctx context.Context, q *database.Queries, n int) (int, error) {
	created := 0
	for number := int32(1); number <= int32(n); number++ {
		_, err := q.GetTableByNumber(ctx, number)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return created, fmt.Errorf("check table %d: %w", number, err)
		}
		if _, err := q.CreateTable(ctx, number); err != nil {
			return created, fmt.Errorf("insert table %d: %w", number, err)
		}
		created++
	}
	return created, nil
}

type demoItem struct {
	name     string
	price    string
	variants []demoVariant
	addons   bool
}

type demoVariant struct {
	name     string
	modifier string
	def      bool
}

var demoMenu = []struct {
	category string
	items    []demoItem
}{
	{"Lanches", []demoItem{
		{name: "X-Burger", price: "20.00", addons: true, variants: []demoVariant{
			{name: "Simples", modifier: "0", def: true},
			{name: "Duplo", modifier: "5.00"},
		}},
		{name: "Batata Frita", price: "12.90", addons: true},
	}},
	{"Bebidas", []demoItem{
		{name: "Suco Natural", price: "8.00", variants: []demoVariant{
			{name: "300ml", modifier: "0", def: true},
			{name: "500ml", modifier: "3.00"},
		}},
		{name: "Refrigerante", price: "6.00"},
	}},
}

var demoAddons = []struct {
	name  string
	price string
}{
	{"Ovo", "2.00"},
	{"Bacon", "3.50"},
	{"Cheddar", "1.00"},
}

// seedDemoMenu fills an empty catalog with a small sample menu.
func seedDemoMenu(ctx context.Context, q *database.Queries) error {
	existing, err := q.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Int("categories", len(existing)).Msg("catalog not empty, skipping demo menu")
		return nil
	}

	for _, a := range demoAddons {
		if _, err := q.CreateAddon(ctx, database.CreateAddonParams{
			Name:     a.name,
			Price:    numeric(a.price),
			IsActive: true,
		}); err != nil {
			return fmt.Errorf("insert addon %s: %w", a.name, err)
		}
	}

	for i, c := range demoMenu {
		cat, err := q.CreateCategory(ctx, database.CreateCategoryParams{
			Name:         c.category,
			DisplayOrder: int32(i),
			IsActive:     true,
		})
		if err != nil {
			return fmt.Errorf("insert category %s: %w", c.category, err)
		}

		for _, it := range c.items {
			item, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
				CategoryID:       pgtype.UUID{Bytes: cat.ID, Valid: true},
				Name:             it.name,
				Price:            numeric(it.price),
				ShowAddons:       it.addons,
				ShowSizeVariants: len(it.variants) > 0,
				IsAvailable:      true,
			})
			if err != nil {
				return fmt.Errorf("insert menu item %s: %w", it.name, err)
			}
			for _, v := range it.variants {
				if _, err := q.CreateSizeVariant(ctx, database.CreateSizeVariantParams{
					MenuItemID:    item.ID,
					SizeName:      v.name,
					PriceModifier: numeric(v.modifier),
					IsDefault:     v.def,
					IsActive:      true,
				}); err != nil {
					return fmt.Errorf("insert size variant %s/%s: %w", it.name, v.name, err)
				}
			}
		}
	}

	log.Info().Int("categories", len(demoMenu)).Int("addons", len(demoAddons)).Msg("created demo menu")
	return nil
}

func numeric(s string) pgtype.Numeric {
	return database.DecimalToNumeric(decimal.RequireFromString(s))
}
