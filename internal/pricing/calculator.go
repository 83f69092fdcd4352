package pricing

import (
	"errors"

	"github.com/noah-isme/backend-storefront/internal/coupon"
)

// Money represents a monetary value stored in minor units.
type Money = int64

var (
	// ErrCartEmpty is returned when a quote is requested for no line items.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrInvalidQty is returned when a line item carries a quantity below one.
	ErrInvalidQty = errors.New("quantity must be at least 1")
)

// LineItem describes a priced unit used for total calculation.
type LineItem struct {
	VariantKey      string
	UnitPrice       Money
	DiscountPercent int
	Qty             int
}

// Net returns the line contribution after the product-level discount, floored
// to the smallest currency unit. Flooring per line keeps the displayed items
// summing exactly to the subtotal.
func (it LineItem) Net() Money {
	pct := int64(it.DiscountPercent)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return it.UnitPrice * Money(it.Qty) * (100 - pct) / 100
}

// ItemBreakdown reports the computed amounts for a single line.
type ItemBreakdown struct {
	VariantKey     string `json:"variantKey"`
	UnitPrice      Money  `json:"unitPrice"`
	Qty            int    `json:"qty"`
	Net            Money  `json:"net"`
	CouponDiscount Money  `json:"couponDiscount"`
}

// Summary aggregates computed order totals.
type Summary struct {
	Subtotal Money           `json:"subtotal"`
	Discount Money           `json:"discount"`
	Shipping Money           `json:"shipping"`
	Total    Money           `json:"total"`
	Items    []ItemBreakdown `json:"items"`
	// Underflow flags subtotal-discount+shipping dropping below zero. The
	// total is clamped to zero; the allocation capping upstream should make
	// this impossible, so callers treat it as an anomaly worth logging.
	Underflow bool `json:"-"`
}

// Quote computes the order totals for the given lines, an optional resolved
// coupon allocation and a shipping fee. It is a pure function of its inputs.
func Quote(items []LineItem, alloc *coupon.Allocation, shipping Money) (Summary, error) {
	if len(items) == 0 {
		return Summary{}, ErrCartEmpty
	}
	shares := map[string]Money{}
	if alloc != nil {
		for _, sh := range alloc.Shares {
			shares[sh.VariantKey] += sh.Amount
		}
	}
	out := Summary{Shipping: shipping, Items: make([]ItemBreakdown, 0, len(items))}
	for _, it := range items {
		if it.Qty < 1 {
			return Summary{}, ErrInvalidQty
		}
		net := it.Net()
		out.Subtotal += net
		out.Items = append(out.Items, ItemBreakdown{
			VariantKey:     it.VariantKey,
			UnitPrice:      it.UnitPrice,
			Qty:            it.Qty,
			Net:            net,
			CouponDiscount: shares[it.VariantKey],
		})
	}
	if alloc != nil {
		out.Discount = alloc.Total
	}
	out.Total = out.Subtotal - out.Discount + out.Shipping
	if out.Total < 0 {
		out.Total = 0
		out.Underflow = true
	}
	return out, nil
}
