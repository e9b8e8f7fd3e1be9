// Command seedadmin creates the admin account from ADMIN_EMAIL,
// ADMIN_USERNAME and ADMIN_PASSWORD. When a user with that email already
// exists it is promoted to ADMIN and reactivated instead.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/config"
	"github.com/iliyamo/cinevault/internal/database"
	"github.com/iliyamo/cinevault/internal/logger"
	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/repository"
	"github.com/iliyamo/cinevault/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	email := repository.NormalizeEmail(os.Getenv("ADMIN_EMAIL"))
	userName := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}
	if userName == "" {
		userName = "admin"
	}
	if len(password) < utils.MinPasswordLength {
		log.Fatal("ADMIN_PASSWORD is too short", zap.Int("min", utils.MinPasswordLength))
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	users := repository.NewUserRepo(db)
	id, err := seed(ctx, users, userName, email, password, cfg.BcryptCost)
	if err != nil {
		log.Fatal("seed admin", zap.String("email", email), zap.Error(err))
	}
	log.Info("admin ready", zap.Uint64("user_id", id), zap.String("email", email))
}

type adminStore interface {
	Create(ctx context.Context, userName, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	SetRole(ctx context.Context, id uint64, role string) error
	SetActive(ctx context.Context, id uint64, active bool) error
}

func seed(ctx context.Context, users adminStore, userName, email, password string, cost int) (uint64, error) {
	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := users.SetRole(ctx, existing.ID, model.RoleAdmin); err != nil {
			return 0, err
		}
		if !existing.IsActive {
			if err := users.SetActive(ctx, existing.ID, true); err != nil {
				return 0, err
			}
		}
		return existing.ID, nil
	case errors.Is(err, repository.ErrUserNotFound):
		return users.Create(ctx, userName, email, password, model.RoleAdmin, cost)
	default:
		return 0, err
	}
}
