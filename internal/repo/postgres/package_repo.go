package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPackageNotFound = errors.New("package not found")

type PackageRepo struct {
	pool *pgxpool.Pool
}

type PackageRecord struct {
	ID          int64
	Title       string
	Description string
	Benefits    []string
	PriceMinor  int64
	Currency    string
	PaymentLink string
	CreatedAt   time.Time
}

func NewPackageRepo(pool *pgxpool.Pool) *PackageRepo {
	return &PackageRepo{pool: pool}
}

func (r *PackageRepo) List(ctx context.Context) ([]PackageRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, title, description, benefits, price_minor, currency, payment_link, created_at
FROM packages
ORDER BY price_minor ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var out []PackageRecord
	for rows.Next() {
		record, err := scanPackageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package row: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate package rows: %w", err)
	}

	return out, nil
}

func (r *PackageRepo) FindByID(ctx context.Context, packageID int64) (PackageRecord, error) {
	if r.pool == nil {
		return PackageRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if packageID <= 0 {
		return PackageRecord{}, fmt.Errorf("invalid package id")
	}

	record, err := scanPackageRow(r.pool.QueryRow(ctx, `
SELECT id, title, description, benefits, price_minor, currency, payment_link, created_at
FROM packages
WHERE id = $1
LIMIT 1
`, packageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PackageRecord{}, ErrPackageNotFound
		}
		return PackageRecord{}, fmt.Errorf("find package by id: %w", err)
	}

	return record, nil
}

func scanPackageRow(row pgx.Row) (PackageRecord, error) {
	var record PackageRecord
	if err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Description,
		&record.Benefits,
		&record.PriceMinor,
		&record.Currency,
		&record.PaymentLink,
		&record.CreatedAt,
	); err != nil {
		return PackageRecord{}, err
	}
	return record, nil
}
