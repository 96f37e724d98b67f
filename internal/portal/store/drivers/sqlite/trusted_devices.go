package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/store"
)

type trustedDevicesRepo struct {
	db dbtx
}

func (r *trustedDevicesRepo) CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trusted_devices (id, user_id, token_hash, user_agent, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.TokenHash, d.UserAgent, d.ExpiresAt.UTC(), time.Now().UTC())
	return err
}

func (r *trustedDevicesRepo) GetTrustedDevice(ctx context.Context, tokenHash, userID string) (domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, user_agent, expires_at, created_at
		 FROM trusted_devices WHERE token_hash = ? AND user_id = ?`,
		tokenHash, userID,
	).Scan(&d.ID, &d.UserID, &d.TokenHash, &d.UserAgent, &d.ExpiresAt, &d.CreatedAt)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}
	return d, nil
}

func (r *trustedDevicesRepo) DeleteTrustedDevice(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE id = ?`, id)
	return err
}

func (r *trustedDevicesRepo) DeleteUserTrustedDevices(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE user_id = ?`, userID)
	return err
}

func (r *trustedDevicesRepo) CountUserTrustedDevices(ctx context.Context, userID string) (int, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trusted_devices WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// requireRow converts a zero-row UPDATE/DELETE into store.ErrNotFound.
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
