package store

import (
	"context"
	"errors"

	"github.com/gymslim/portal/internal/portal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	TrustedDevices() TrustedDevices
	Settings() Settings

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is the lookup used during credential verification.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateDetails mutates name and booking_email and bumps updated_at.
	UpdateDetails(ctx context.Context, userID, name, bookingEmail string) error

	// UpdatePasswordHash sets the password_hash (argon2id) and the
	// must_change_password flag, and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string, mustChange bool) error

	// EnableMFA stores the encrypted secret, sets mfa_enabled and clears
	// must_configure_mfa.
	EnableMFA(ctx context.Context, userID, encryptedSecret string) error

	// DisableMFA clears mfa_enabled and mfa_secret. forceReconfigure
	// additionally sets must_configure_mfa (administrator-forced re-enrollment).
	DisableMFA(ctx context.Context, userID string, forceReconfigure bool) error

	// DeleteUser removes the user; trusted devices cascade per schema.
	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type TrustedDevices interface {
	// CreateTrustedDevice stores a new bypass grant (token already hashed).
	CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error

	// GetTrustedDevice returns the grant matching both token hash and user.
	// The token alone is not sufficient.
	GetTrustedDevice(ctx context.Context, tokenHash, userID string) (domain.TrustedDevice, error)

	// DeleteTrustedDevice removes a single grant by id (lazy expiry cleanup).
	DeleteTrustedDevice(ctx context.Context, id string) error

	// DeleteUserTrustedDevices removes every grant for a user.
	DeleteUserTrustedDevices(ctx context.Context, userID string) error

	// CountUserTrustedDevices returns the number of grants for a user.
	CountUserTrustedDevices(ctx context.Context, userID string) (int, error)
}

type Settings interface {
	// ListSettings returns all persisted settings.
	ListSettings(ctx context.Context) ([]domain.Setting, error)

	// UpsertSetting inserts or replaces one key/value pair.
	UpsertSetting(ctx context.Context, s domain.Setting) error
}
