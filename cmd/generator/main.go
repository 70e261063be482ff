package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medstay/internal/config"
	"medstay/internal/database"
	"medstay/internal/models"
)

var (
	count         = flag.Int("count", 20, "Number of demo properties to generate")
	owners        = flag.Int("owners", 5, "Number of distinct owners to spread properties across")
	clearExisting = flag.Bool("clear", false, "Remove all properties (and their bookings) before generating")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
	seed          = flag.Int64("seed", 0, "Random seed (0 = current time)")
)

var neighbourhoods = []string{
	"Clinic Quarter", "Riverside", "Old Town", "University Hill", "Harbour", "Medical Campus",
}

var kinds = []string{"Studio", "Apartment", "Family flat", "Recovery suite", "Loft"}

type PropertyGenerator struct {
	db *database.DB
}

func main() {
	flag.Parse()

	slog.Info("Starting property generator...")

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	properties := generateProperties(rand.New(rand.NewSource(s)), *count, *owners)

	if *dryRun {
		for _, p := range properties {
			slog.Info("[DRY RUN] Would create property",
				"name", p.Name, "owner_id", p.OwnerID, "base_price", p.BasePrice, "max_guests", p.MaxGuests)
		}
		return
	}

	cfg := config.Load()
	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	generator := &PropertyGenerator{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := generator.Insert(ctx, properties); err != nil {
		slog.Error("Failed to generate properties", "error", err)
		os.Exit(1)
	}

	slog.Info("Property generation completed successfully!", "count", len(properties))
}

// generateProperties builds a deterministic set of demo listings for a seed.
func generateProperties(rng *rand.Rand, n, ownerCount int) []models.Property {
	if ownerCount < 1 {
		ownerCount = 1
	}

	ownerIDs := make([]string, ownerCount)
	for i := range ownerIDs {
		ownerIDs[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("owner-%d-%d", i, rng.Int63()))).String()
	}

	properties := make([]models.Property, 0, n)
	for i := 0; i < n; i++ {
		maxGuests := rng.Intn(6) + 1
		properties = append(properties, models.Property{
			OwnerID:   ownerIDs[i%ownerCount],
			Name:      fmt.Sprintf("%s near %s #%d", kinds[rng.Intn(len(kinds))], neighbourhoods[rng.Intn(len(neighbourhoods))], i+1),
			BasePrice: generateBasePrice(rng, maxGuests),
			MaxGuests: maxGuests,
		})
	}
	return properties
}

// generateBasePrice scales a nightly rate with capacity, rounded to whole units.
func generateBasePrice(rng *rand.Rand, maxGuests int) float64 {
	base := 60.0 + float64(maxGuests)*15
	return math.Round(base + rng.Float64()*40)
}

func (g *PropertyGenerator) Insert(ctx context.Context, properties []models.Property) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if *clearExisting {
		if _, err := tx.ExecContext(ctx, "TRUNCATE properties RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("failed to clear existing properties: %w", err)
		}
		slog.Info("Cleared existing properties")
	}

	if err := insertProperties(ctx, tx, properties); err != nil {
		return fmt.Errorf("failed to insert properties: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertProperties(ctx context.Context, tx *sqlx.Tx, properties []models.Property) error {
	stmt := `
		INSERT INTO properties (owner_id, name, base_price, max_guests, created_at, updated_at)
		VALUES (:owner_id, :name, :base_price, :max_guests, :created_at, :updated_at)`

	now := time.Now()

	for _, p := range properties {
		p.CreatedAt = now
		p.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, stmt, p); err != nil {
			return err
		}
	}

	return nil
}
