package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, name, booking_email, password_hash, is_admin,
	must_change_password, mfa_enabled, mfa_secret, must_configure_mfa, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, booking_email, password_hash, is_admin,
			must_change_password, mfa_enabled, mfa_secret, must_configure_mfa, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, u.BookingEmail, u.PasswordHash, u.IsAdmin,
		u.MustChangePassword, u.MFAEnabled, mapOptionalString(u.MFASecret),
		u.MustConfigureMFA, now, now,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdateDetails(ctx context.Context, userID, name, bookingEmail string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, booking_email = ?, updated_at = ? WHERE id = ?`,
		name, bookingEmail, time.Now().UTC(), userID)
	return requireRow(res, err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string, mustChange bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, must_change_password = ?, updated_at = ? WHERE id = ?`,
		newHash, mustChange, time.Now().UTC(), userID)
	return requireRow(res, err)
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID, encryptedSecret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = 1, mfa_secret = ?, must_configure_mfa = 0, updated_at = ?
		 WHERE id = ?`,
		encryptedSecret, time.Now().UTC(), userID)
	return requireRow(res, err)
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string, forceReconfigure bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = 0, mfa_secret = NULL, must_configure_mfa = ?, updated_at = ?
		 WHERE id = ?`,
		forceReconfigure, time.Now().UTC(), userID)
	return requireRow(res, err)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return requireRow(res, err)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
