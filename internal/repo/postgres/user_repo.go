package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	BusinessName string
	CreatedAt    time.Time
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, email, passwordHash, fullName, businessName string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(passwordHash) == "" {
		return UserRecord{}, fmt.Errorf("invalid user create payload")
	}

	record, err := scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (
	email,
	password_hash,
	full_name,
	business_name,
	created_at
) VALUES ($1, $2, $3, $4, NOW())
RETURNING id, email, password_hash, full_name, business_name, created_at
`, email, passwordHash, strings.TrimSpace(fullName), strings.TrimSpace(businessName)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UserRecord{}, ErrEmailTaken
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	return record, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = normalizeEmail(email)
	if email == "" {
		return UserRecord{}, fmt.Errorf("invalid email")
	}

	record, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, full_name, business_name, created_at
FROM users
WHERE email = $1
LIMIT 1
`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by email: %w", err)
	}

	return record, nil
}

func (r *UserRepo) FindByID(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	record, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, full_name, business_name, created_at
FROM users
WHERE id = $1
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return record, nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var record UserRecord
	if err := row.Scan(
		&record.ID,
		&record.Email,
		&record.PasswordHash,
		&record.FullName,
		&record.BusinessName,
		&record.CreatedAt,
	); err != nil {
		return UserRecord{}, err
	}
	return record, nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
