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

	"github.com/upmarkt/backend/internal/domain/enums"
)

var (
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrCorrelationConflict = errors.New("correlation id already assigned to another purchase")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PurchaseRecord struct {
	ID            int64
	UserID        int64
	PackageID     int64
	CorrelationID string
	PaymentRef    *string
	Status        enums.PurchaseStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PurchaseWithPackage struct {
	Purchase PurchaseRecord
	Package  PackageRecord
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) CreatePending(ctx context.Context, userID, packageID int64, correlationID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	correlationID = strings.TrimSpace(correlationID)
	if userID <= 0 || packageID <= 0 || correlationID == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase create payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
INSERT INTO purchases (
	user_id,
	package_id,
	correlation_id,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, 'pending', NOW(), NOW())
RETURNING id, user_id, package_id, correlation_id, payment_ref, status, created_at, updated_at
`, userID, packageID, correlationID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PurchaseRecord{}, ErrCorrelationConflict
		}
		return PurchaseRecord{}, fmt.Errorf("create pending purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindByCorrelationID(ctx context.Context, correlationID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid correlation id")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, package_id, correlation_id, payment_ref, status, created_at, updated_at
FROM purchases
WHERE correlation_id = $1
LIMIT 1
`, correlationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by correlation id: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID int64) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase id")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, package_id, correlation_id, payment_ref, status, created_at, updated_at
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return record, nil
}

// Finalize moves a pending purchase to the given terminal status. The guard
// on current status makes the first writer win: a second finalization of the
// same purchase applies nothing and gets the already-terminal record back
// with applied=false. payment_ref is stamped only on completion.
func (r *PurchaseRepo) Finalize(ctx context.Context, purchaseID int64, status enums.PurchaseStatus, paymentRef string) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if purchaseID <= 0 {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase id")
	}
	if !status.Terminal() {
		return PurchaseRecord{}, false, fmt.Errorf("finalize to non-terminal status %q", status)
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if status == enums.PurchaseStatusCompleted && paymentRef == "" {
		return PurchaseRecord{}, false, fmt.Errorf("completed purchase requires a payment ref")
	}
	if status == enums.PurchaseStatusFailed && paymentRef != "" {
		return PurchaseRecord{}, false, fmt.Errorf("failed purchase must not carry a payment ref")
	}

	var ref *string
	if paymentRef != "" {
		ref = &paymentRef
	}

	updated, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET
	status = $2,
	payment_ref = $3,
	updated_at = NOW()
WHERE id = $1
  AND status = 'pending'
RETURNING id, user_id, package_id, correlation_id, payment_ref, status, created_at, updated_at
`, purchaseID, string(status), ref))
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("finalize purchase: %w", err)
	}

	existing, err := r.FindByID(ctx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, userID int64, statusFilter enums.PurchaseStatus) ([]PurchaseWithPackage, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	pu.id, pu.user_id, pu.package_id, pu.correlation_id, pu.payment_ref, pu.status, pu.created_at, pu.updated_at,
	pk.id, pk.title, pk.description, pk.benefits, pk.price_minor, pk.currency, pk.payment_link, pk.created_at
FROM purchases pu
JOIN packages pk ON pk.id = pu.package_id
WHERE pu.user_id = $1
  AND ($2 = '' OR pu.status = $2)
ORDER BY pu.created_at DESC, pu.id DESC
`, userID, string(statusFilter))
	if err != nil {
		return nil, fmt.Errorf("list purchases by user: %w", err)
	}
	defer rows.Close()

	var out []PurchaseWithPackage
	for rows.Next() {
		var item PurchaseWithPackage
		if err := rows.Scan(
			&item.Purchase.ID,
			&item.Purchase.UserID,
			&item.Purchase.PackageID,
			&item.Purchase.CorrelationID,
			&item.Purchase.PaymentRef,
			&item.Purchase.Status,
			&item.Purchase.CreatedAt,
			&item.Purchase.UpdatedAt,
			&item.Package.ID,
			&item.Package.Title,
			&item.Package.Description,
			&item.Package.Benefits,
			&item.Package.PriceMinor,
			&item.Package.Currency,
			&item.Package.PaymentLink,
			&item.Package.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}

	return out, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var record PurchaseRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.PackageID,
		&record.CorrelationID,
		&record.PaymentRef,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return record, nil
}
