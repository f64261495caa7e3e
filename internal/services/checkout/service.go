package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/upmarkt/backend/internal/domain/enums"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrPackageNotFound   = errors.New("package not found")
	ErrPaymentLinkConfig = errors.New("payment link is missing or malformed")
)

type PurchaseStore interface {
	CreatePending(ctx context.Context, userID, packageID int64, correlationID string) (pgrepo.PurchaseRecord, error)
}

type PackageStore interface {
	FindByID(ctx context.Context, packageID int64) (pgrepo.PackageRecord, error)
}

type UserStore interface {
	FindByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
}

type Service struct {
	purchases PurchaseStore
	packages  PackageStore
	users     UserStore
}

type RedirectTarget struct {
	URL           string
	PurchaseID    int64
	CorrelationID string
	Status        enums.PurchaseStatus
}

func NewService(purchases PurchaseStore, packages PackageStore, users UserStore) *Service {
	return &Service{
		purchases: purchases,
		packages:  packages,
		users:     users,
	}
}

// Initiate records a pending purchase and hands back the processor redirect.
// The row is written before the redirect URL is composed, so the correlation
// id is resolvable by the time anyone outside this process sees it. When the
// package's payment link turns out to be unusable the pending row stays put
// and ErrPaymentLinkConfig surfaces to the caller.
func (s *Service) Initiate(ctx context.Context, userID, packageID int64) (RedirectTarget, error) {
	if s.purchases == nil || s.packages == nil || s.users == nil {
		return RedirectTarget{}, fmt.Errorf("checkout dependencies are not configured")
	}
	if userID <= 0 || packageID <= 0 {
		return RedirectTarget{}, ErrValidation
	}

	pkg, err := s.packages.FindByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPackageNotFound) {
			return RedirectTarget{}, ErrPackageNotFound
		}
		return RedirectTarget{}, fmt.Errorf("load package: %w", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return RedirectTarget{}, ErrValidation
		}
		return RedirectTarget{}, fmt.Errorf("load user: %w", err)
	}

	correlationID := uuid.NewString()

	record, err := s.purchases.CreatePending(ctx, userID, packageID, correlationID)
	if err != nil {
		return RedirectTarget{}, fmt.Errorf("create pending purchase: %w", err)
	}

	redirectURL, err := buildRedirectURL(pkg.PaymentLink, correlationID, user.Email)
	if err != nil {
		return RedirectTarget{}, fmt.Errorf("purchase %d: %w", record.ID, err)
	}

	return RedirectTarget{
		URL:           redirectURL,
		PurchaseID:    record.ID,
		CorrelationID: record.CorrelationID,
		Status:        record.Status,
	}, nil
}

func buildRedirectURL(paymentLink, correlationID, email string) (string, error) {
	if paymentLink == "" {
		return "", ErrPaymentLinkConfig
	}

	parsed, err := url.Parse(paymentLink)
	if err != nil {
		return "", ErrPaymentLinkConfig
	}
	if (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
		return "", ErrPaymentLinkConfig
	}

	query := parsed.Query()
	query.Set("client_reference_id", correlationID)
	if email != "" {
		query.Set("prefilled_email", email)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
