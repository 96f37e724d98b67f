package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/idx"
	"github.com/gymslim/portal/pkg/slogx"
)

// BootstrapService seeds an empty database on first boot: one admin
// account and the default settings rows. Guarded by an emptiness check so
// restarts are no-ops.
type BootstrapService struct {
	Store store.Store

	AdminUsername string
	AdminPassword string
	AdminName     string
}

// Run performs the seeding if, and only if, no users exist yet. The
// seeded admin must change their password at first login.
func (s *BootstrapService) Run(ctx context.Context) error {
	log := slogx.FromContext(ctx)

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check for existing users: %w", err)
	}
	if !empty {
		log.Debug("bootstrap skipped: users already exist")
		return nil
	}

	if s.AdminUsername == "" || s.AdminPassword == "" {
		return fmt.Errorf("bootstrap: admin username and password must be configured for first boot")
	}

	hash, err := cryptox.HashPassword(s.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap: hash admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := domain.User{
		ID:                 idx.New().String(),
		Username:           s.AdminUsername,
		Name:               s.AdminName,
		PasswordHash:       hash,
		IsAdmin:            true,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, admin); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		seed := []domain.Setting{
			{Key: domain.SettingTrustedDeviceDays, Value: domain.SettingTrustedDeviceDaysDefault},
			{Key: domain.SettingCacheEnabled, Value: domain.SettingCacheEnabledDefault},
		}
		for _, setting := range seed {
			if err := tx.Settings().UpsertSetting(ctx, setting); err != nil {
				return fmt.Errorf("seed setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("bootstrap complete", "admin_username", admin.Username, "admin_id", admin.ID)
	return nil
}
