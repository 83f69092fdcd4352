package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store captures the persistence methods required by the coupon service.
type Store interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
	Create(ctx context.Context, c Coupon) (Coupon, error)
	Update(ctx context.Context, c Coupon) (Coupon, error)
	SetStatus(ctx context.Context, code string, status Status) error
	Redeem(ctx context.Context, id uuid.UUID) error
}

// PreviewResult describes a dry-run evaluation for a cart.
type PreviewResult struct {
	Code       string     `json:"code"`
	Allocation Allocation `json:"allocation"`
}

// Service evaluates and manages coupons on top of a Store.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EvaluateCode looks up a coupon and classifies its validity at the current
// instant without touching any state.
func (s *Service) EvaluateCode(ctx context.Context, code string) (Coupon, Validity, error) {
	if s == nil || s.Store == nil {
		return Coupon{}, "", errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Coupon{}, "", ErrNotFound
	}
	c, err := s.Store.GetByCode(ctx, trimmed)
	if err != nil {
		return Coupon{}, "", err
	}
	return c, Evaluate(c, s.now()), nil
}

// Preview performs a full dry-run: validity check plus applicability
// resolution against the provided cart lines. Nothing is mutated.
func (s *Service) Preview(ctx context.Context, code string, lines []Line) (PreviewResult, error) {
	c, validity, err := s.EvaluateCode(ctx, code)
	if err != nil {
		return PreviewResult{}, err
	}
	if err := validity.Err(); err != nil {
		return PreviewResult{}, err
	}
	alloc, err := Resolve(c, lines)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{Code: c.Code, Allocation: alloc}, nil
}
