package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/idx"
	"github.com/gymslim/portal/pkg/slogx"
)

var (
	ErrUsernameTaken       = errors.New("username already taken")
	ErrUsernameRequired    = errors.New("username is required")
	ErrSelfDeleteForbidden = errors.New("cannot delete your own account")
)

// UserService carries the administrative account operations. Every
// mutation here is admin-gated at the HTTP layer.
type UserService struct {
	Store store.Store
}

// CreateUserParams are the admin-supplied fields for a new account.
type CreateUserParams struct {
	Username     string
	Name         string
	BookingEmail string
	Password     string
	IsAdmin      bool
}

// Create inserts a new user. The account always starts with
// mustChangePassword set: the admin knows the initial password.
func (s *UserService) Create(ctx context.Context, p CreateUserParams) (domain.User, error) {
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return domain.User{}, ErrUsernameRequired
	}
	if len(p.Password) < minPasswordLength {
		return domain.User{}, ErrPasswordTooShort
	}

	hash, err := cryptox.HashPassword(p.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:                 idx.New().String(),
		Username:           p.Username,
		Name:               p.Name,
		BookingEmail:       p.BookingEmail,
		PasswordHash:       hash,
		IsAdmin:            p.IsAdmin,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// UpdateDetails changes a user's display name and booking email. The
// username is fixed at creation and is not editable here.
func (s *UserService) UpdateDetails(ctx context.Context, userID, name, bookingEmail string) error {
	if err := s.Store.Users().UpdateDetails(ctx, userID, name, bookingEmail); err != nil {
		return fmt.Errorf("update user details: %w", err)
	}
	slogx.FromContext(ctx).Info("user details updated", "user_id", userID)
	return nil
}

// Delete removes a user. Trusted devices cascade with the row. An admin
// deleting themselves is refused so the portal cannot lock itself out.
func (s *UserService) Delete(ctx context.Context, requestorID, userID string) error {
	if requestorID == userID {
		return ErrSelfDeleteForbidden
	}
	if err := s.Store.Users().DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	slogx.FromContext(ctx).Info("user deleted", "user_id", userID, "by", requestorID)
	return nil
}

// ResetPassword replaces the user's password with a generated temporary
// one and flags the account for a forced change. The temporary password is
// returned once for the admin to hand over; it is never logged.
func (s *UserService) ResetPassword(ctx context.Context, userID string) (string, error) {
	temp, err := cryptox.GeneratePassword()
	if err != nil {
		return "", fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := cryptox.HashPassword(temp)
	if err != nil {
		return "", fmt.Errorf("hash temporary password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash, true); err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}

	slogx.FromContext(ctx).Info("password reset to temporary value", "user_id", userID)
	return temp, nil
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}
