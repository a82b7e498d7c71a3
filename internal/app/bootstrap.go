package app

import (
	"context"
	"database/sql"
	"log"

	"naccexam/internal/auth"
)

// BootstrapAdmin creates the configured admin account on first start. It is a
// no-op when no bootstrap credentials are configured or the user exists.
func BootstrapAdmin(ctx context.Context, cfg Config, db *sql.DB) error {
	if cfg.BootstrapAdminUsername == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	svc := auth.NewService(db, auth.ServiceConfig{JWTSecret: cfg.JWTSecret})
	user, created, err := svc.EnsureUser(ctx, auth.CreateUserInput{
		Username: cfg.BootstrapAdminUsername,
		Password: cfg.BootstrapAdminPassword,
		Role:     auth.RoleAdmin,
	})
	if err != nil {
		return err
	}
	if created {
		log.Printf("bootstrap admin created username=%s id=%d", user.Username, user.ID)
	}
	return nil
}
