package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-shop-account/config"
	"github.com/oksasatya/go-shop-account/internal/container"
	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/pkg/apperror"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

// seed creates the admin account, or resets its password and role when it
// already exists. Every write goes through the credential store.
func main() {
	_ = godotenv.Load()

	email := flag.String("email", "admin@shop.local", "admin email")
	name := flag.String("name", "Administrator", "admin display name")
	password := flag.String("password", "password123", "admin password")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	app, err := container.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer app.Close()

	u, err := app.Repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		u = &entity.User{Name: *name, Email: *email}
	case err != nil:
		log.Fatalf("failed to look up admin: %v", err)
	}
	u.Role = entity.RoleAdmin
	u.SetPassword(*password)
	if err := app.Credentials.Persist(ctx, u); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	if app.UserIndex.Enabled() {
		if err := app.UserIndex.Index(ctx, u); err != nil {
			logger.WithError(err).Warn("index admin failed")
		}
	}
	fmt.Printf("seeded admin: id=%s email=%s name=%s\n", u.ID, u.Email, u.Name)
}
