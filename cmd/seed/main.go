// seed loads a parts sheet into the inventory and makes sure a local admin account exists.
//
// Usage: go run ./cmd/seed [-csv parts.csv] [-latin1] [-admin-email ops@club.org] [-admin-password ...]
// Without -csv the bundled sample sheet is used. Parts whose code already exists are skipped,
// so the command can be re-run safely.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/application/usecase"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/infrastructure/postgres"
	"github.com/stanfordssi/sats-inventory/pkg/config"
	"github.com/stanfordssi/sats-inventory/pkg/logger"
)

//go:embed sample_parts.csv
var sampleParts []byte

func main() {
	csvPath := flag.String("csv", "", "parts sheet (defaults to the bundled sample)")
	latin1 := flag.Bool("latin1", false, "the sheet is ISO-8859-1 encoded")
	adminEmail := flag.String("admin-email", os.Getenv("SEED_ADMIN_EMAIL"), "local admin e-mail")
	adminPassword := flag.String("admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "local admin password")
	adminName := flag.String("admin-name", "Inventory Admin", "local admin display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})

	var src io.Reader = bytes.NewReader(sampleParts)
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *csvPath).Msg("open parts sheet")
		}
		defer f.Close()
		src = f
	}
	reqs, err := parseParts(src, *latin1)
	if err != nil {
		log.Fatal().Err(err).Msg("parse parts sheet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to PostgreSQL")
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	repos := postgres.Bind(pool)
	admin, err := ensureAdmin(ctx, repos, *adminEmail, *adminPassword, *adminName)
	if err != nil {
		log.Fatal().Err(err).Msg("create admin")
	}
	log.Info().Str("email", admin.Email).Str("user_id", admin.ID).Msg("admin ready")

	partUC := usecase.NewPartUseCase(postgres.NewTxRunner(pool), repos.Parts, repos.Transactions)
	var created, skipped int
	for _, req := range reqs {
		_, err := partUC.Create(ctx, admin.ID, entity.RoleAdmin, req)
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrDuplicate):
			skipped++
		default:
			log.Fatal().Err(err).Str("part_id", req.PartID).Msg("create part")
		}
	}
	log.Info().Int("created", created).Int("skipped", skipped).Msg("parts loaded")
}

// ensureAdmin returns the account registered under email, creating it when missing.
// An existing account is promoted to admin.
func ensureAdmin(ctx context.Context, repos ports.Repos, email, password, name string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("-admin-email (or SEED_ADMIN_EMAIL) is required")
	}
	existing, err := repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Role != entity.RoleAdmin {
			if err := repos.Users.UpdateRole(ctx, existing.ID, entity.RoleAdmin); err != nil {
				return nil, err
			}
			existing.Role = entity.RoleAdmin
		}
		return existing, nil
	}

	if len(password) < 8 {
		return nil, errors.New("admin password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &entity.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		Role:         entity.RoleAdmin,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repos.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
