package coupon

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no coupon exists for the requested code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been deactivated.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned when the coupon window has already closed.
	ErrExpired = errors.New("coupon expired")
	// ErrNotYetStarted is returned when the coupon window has not opened yet.
	ErrNotYetStarted = errors.New("coupon not yet started")
	// ErrUsageExhausted indicates the coupon has consumed its usage quota.
	ErrUsageExhausted = errors.New("coupon usage exhausted")
	// ErrBelowMinimum indicates the eligible subtotal did not meet the coupon requirement.
	ErrBelowMinimum = errors.New("coupon minimum order amount not met")
)

// Kind describes how the coupon value is interpreted.
type Kind string

const (
	// KindPercent discounts a percentage of the eligible subtotal.
	KindPercent Kind = "percent"
	// KindFixed discounts a fixed amount of minor currency units.
	KindFixed Kind = "fixed"
)

// Status is the administrative state of a coupon.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Coupon captures the runtime constraints of a discount code.
type Coupon struct {
	ID             uuid.UUID
	Code           string
	Kind           Kind
	Value          int64
	MinOrderAmount int64
	MaxDiscount    *int64
	StartAt        time.Time
	EndAt          time.Time
	UsageLimit     *int32
	UsedCount      int32
	Status         Status
	ProductIDs     []uuid.UUID
	CategoryIDs    []uuid.UUID
}

// Scoped reports whether the coupon is restricted to specific products or categories.
func (c Coupon) Scoped() bool {
	return len(c.ProductIDs) > 0 || len(c.CategoryIDs) > 0
}

// Validity classifies the outcome of evaluating a coupon at an instant.
type Validity string

const (
	ValidityOK            Validity = "valid"
	ValidityInactive      Validity = "inactive"
	ValidityExhausted     Validity = "usage-exhausted"
	ValidityNotYetStarted Validity = "not-yet-started"
	ValidityExpired       Validity = "expired"
)

// Err maps a validity outcome to its sentinel error, or nil when valid.
func (v Validity) Err() error {
	switch v {
	case ValidityInactive:
		return ErrInactive
	case ValidityExhausted:
		return ErrUsageExhausted
	case ValidityNotYetStarted:
		return ErrNotYetStarted
	case ValidityExpired:
		return ErrExpired
	default:
		return nil
	}
}

// Evaluate classifies a coupon against the current time. The rejection
// precedence is fixed: inactive, then usage-exhausted, then not-yet-started,
// then expired, so callers get a deterministic reason when several hold.
func Evaluate(c Coupon, now time.Time) Validity {
	if c.Status != StatusActive {
		return ValidityInactive
	}
	if c.UsageLimit != nil && *c.UsageLimit > 0 && c.UsedCount >= *c.UsageLimit {
		return ValidityExhausted
	}
	if now.Before(c.StartAt) {
		return ValidityNotYetStarted
	}
	if now.After(c.EndAt) {
		return ValidityExpired
	}
	return ValidityOK
}

// Line is one cart entry the resolver can apply a coupon against. Total is the
// line total after the product-level promotional discount.
type Line struct {
	ProductID  uuid.UUID
	CategoryID *uuid.UUID
	VariantKey string
	Total      int64
}

// Share is the portion of the coupon discount attributed to a single line.
type Share struct {
	VariantKey string `json:"variantKey"`
	Amount     int64  `json:"amount"`
}

// Allocation is the resolved discount: the grand total plus a per-line
// breakdown whose amounts always sum exactly to Total.
type Allocation struct {
	Total    int64   `json:"total"`
	Eligible int64   `json:"eligible"`
	Shares   []Share `json:"shares"`
}

// Resolve determines which lines a validated coupon applies to and how much of
// the discount each one carries. MinOrderAmount is checked against the eligible
// subtotal, not the whole cart.
func Resolve(c Coupon, lines []Line) (Allocation, error) {
	eligible := make([]Line, 0, len(lines))
	var subtotal int64
	for _, ln := range lines {
		if ln.Total <= 0 {
			continue
		}
		if !c.Scoped() || matchesScope(c, ln) {
			eligible = append(eligible, ln)
			subtotal += ln.Total
		}
	}
	if subtotal < c.MinOrderAmount {
		return Allocation{}, ErrBelowMinimum
	}
	if subtotal == 0 || c.Value <= 0 {
		return Allocation{Eligible: subtotal}, nil
	}

	var total int64
	switch c.Kind {
	case KindPercent:
		for _, ln := range eligible {
			total += ln.Total * c.Value / 100
		}
		if c.MaxDiscount != nil && *c.MaxDiscount >= 0 && total > *c.MaxDiscount {
			total = *c.MaxDiscount
		}
	default:
		total = c.Value
	}
	if total > subtotal {
		total = subtotal
	}
	if total <= 0 {
		return Allocation{Eligible: subtotal}, nil
	}
	return Allocation{
		Total:    total,
		Eligible: subtotal,
		Shares:   distribute(total, eligible, subtotal),
	}, nil
}

func matchesScope(c Coupon, ln Line) bool {
	for _, id := range c.ProductIDs {
		if id == ln.ProductID {
			return true
		}
	}
	if ln.CategoryID != nil {
		for _, id := range c.CategoryIDs {
			if id == *ln.CategoryID {
				return true
			}
		}
	}
	return false
}

// distribute splits total across lines proportionally to their contribution to
// the eligible subtotal. Each share is floored, then the leftover units are
// handed out by largest fractional remainder (index order on ties) so the
// shares sum exactly to total.
func distribute(total int64, lines []Line, subtotal int64) []Share {
	shares := make([]Share, len(lines))
	remainders := make([]struct {
		idx int
		rem int64
	}, len(lines))
	var allocated int64
	for i, ln := range lines {
		amount := total * ln.Total / subtotal
		shares[i] = Share{VariantKey: ln.VariantKey, Amount: amount}
		remainders[i].idx = i
		remainders[i].rem = (total * ln.Total) % subtotal
		allocated += amount
	}
	leftover := total - allocated
	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].rem > remainders[b].rem
	})
	for i := int64(0); i < leftover; i++ {
		shares[remainders[i%int64(len(lines))].idx].Amount++
	}
	return shares
}
