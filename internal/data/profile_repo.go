package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/data/pgxutil"
	apperrors "github.com/target/catalog-admin/internal/errors"
	"github.com/target/catalog-admin/internal/ports"
)

const profileColumns = `id, full_name, role, updated_at`

// profileRow mirrors the profiles table. role stays a string until validated.
type profileRow struct {
	ID        string     `db:"id"`
	FullName  *string    `db:"full_name"`
	Role      string     `db:"role"`
	UpdatedAt *time.Time `db:"updated_at"`
}

func (r profileRow) toDomain() (*domainauth.Profile, error) {
	role, err := domainauth.ParseRole(r.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRole, err)
	}
	p := &domainauth.Profile{ID: r.ID, Role: role, UpdatedAt: r.UpdatedAt}
	if r.FullName != nil {
		p.FullName = *r.FullName
	}
	return p, nil
}

var _ ports.ProfileStore = (*ProfileRepo)(nil)

// ProfileRepo provides database operations for user profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// GetByID returns the profile for id, or (nil, nil) when it does not exist.
// A stored role outside the known set is reported as a QueryError.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*domainauth.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.QueryError(ErrProfileIDRequired, "get profile")
	}

	var row profileRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.QueryError(apperrors.MapDBError(err), "get profile")
	}

	p, err := row.toDomain()
	if err != nil {
		return nil, apperrors.QueryError(err, "get profile")
	}
	return p, nil
}

// UpsertDefault inserts a profile unless one already exists and returns the stored row.
// Concurrent callers for the same id converge on the same row.
func (r *ProfileRepo) UpsertDefault(ctx context.Context, in ports.DefaultProfileInput) (*domainauth.Profile, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, apperrors.QueryError(ErrProfileIDRequired, "upsert profile")
	}
	role := in.Role
	if role == domainauth.RoleNone {
		role = domainauth.DefaultRole
	}
	if !role.Valid() {
		return nil, apperrors.QueryError(fmt.Errorf("%w: %q", ErrInvalidRole, role), "upsert profile")
	}

	var fullName *string
	if name := strings.TrimSpace(in.DisplayName); name != "" {
		fullName = &name
	}

	var row profileRow
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `
				INSERT INTO profiles (id, full_name, role, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO NOTHING
			`, in.ID, fullName, string(role), r.timeProvider.Now().UTC()); err != nil {
				return err
			}
			// A separate statement sees rows committed by a concurrent inserter.
			rows, err := tx.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, in.ID)
			if err != nil {
				return err
			}
			row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
			return err
		},
	})
	if err != nil {
		return nil, apperrors.QueryError(apperrors.MapDBError(err), "upsert profile")
	}

	p, err := row.toDomain()
	if err != nil {
		return nil, apperrors.QueryError(err, "upsert profile")
	}
	return p, nil
}

// SetRole changes a profile's role. It is used by admin tooling and tests.
func (r *ProfileRepo) SetRole(ctx context.Context, id string, role domainauth.Role) error {
	if !role.Valid() {
		return apperrors.ValidationField("role", "unknown role "+string(role))
	}
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1`,
			id, string(role), r.timeProvider.Now().UTC())
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: "profile not found"}
	}
	return nil
}
