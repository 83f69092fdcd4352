package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-storefront/internal/coupon"
)

func TestNetFloorsPerLine(t *testing.T) {
	// 5,589,000 at 32% off = 3,800,520 exactly; the discount portion floors
	item := LineItem{VariantKey: "a", UnitPrice: 5_589_000, DiscountPercent: 32, Qty: 1}
	assert.EqualValues(t, 3_800_520, item.Net())

	// 999 at 33% off: 999*67/100 = 669.33 floors to 669
	item = LineItem{VariantKey: "b", UnitPrice: 999, DiscountPercent: 33, Qty: 1}
	assert.EqualValues(t, 669, item.Net())

	// quantity multiplies before the floor, not after
	item = LineItem{VariantKey: "c", UnitPrice: 333, DiscountPercent: 50, Qty: 3}
	assert.EqualValues(t, 499, item.Net())
}

func TestNetClampsPercent(t *testing.T) {
	assert.EqualValues(t, 100, LineItem{UnitPrice: 100, DiscountPercent: -5, Qty: 1}.Net())
	assert.EqualValues(t, 0, LineItem{UnitPrice: 100, DiscountPercent: 150, Qty: 1}.Net())
}

func TestQuoteRejectsEmptyCart(t *testing.T) {
	_, err := Quote(nil, nil, 0)
	require.ErrorIs(t, err, ErrCartEmpty)
}

func TestQuoteRejectsInvalidQty(t *testing.T) {
	_, err := Quote([]LineItem{{VariantKey: "a", UnitPrice: 100, Qty: 0}}, nil, 0)
	require.ErrorIs(t, err, ErrInvalidQty)
}

func TestQuoteWithoutCoupon(t *testing.T) {
	items := []LineItem{
		{VariantKey: "a", UnitPrice: 1_000_000, DiscountPercent: 20, Qty: 2},
		{VariantKey: "b", UnitPrice: 150_000, Qty: 1},
	}
	summary, err := Quote(items, nil, 25_000)
	require.NoError(t, err)
	assert.EqualValues(t, 1_750_000, summary.Subtotal)
	assert.EqualValues(t, 0, summary.Discount)
	assert.EqualValues(t, 25_000, summary.Shipping)
	assert.EqualValues(t, 1_775_000, summary.Total)
	assert.False(t, summary.Underflow)
}

func TestQuoteAppliesAllocation(t *testing.T) {
	items := []LineItem{
		{VariantKey: "a", UnitPrice: 300_000, Qty: 1},
		{VariantKey: "b", UnitPrice: 200_000, Qty: 1},
	}
	alloc := &coupon.Allocation{
		Total: 50_000,
		Shares: []coupon.Share{
			{VariantKey: "a", Amount: 30_000},
			{VariantKey: "b", Amount: 20_000},
		},
	}
	summary, err := Quote(items, alloc, 25_000)
	require.NoError(t, err)
	assert.EqualValues(t, 500_000, summary.Subtotal)
	assert.EqualValues(t, 50_000, summary.Discount)
	assert.EqualValues(t, 475_000, summary.Total)
	assert.EqualValues(t, 30_000, summary.Items[0].CouponDiscount)
	assert.EqualValues(t, 20_000, summary.Items[1].CouponDiscount)
}

func TestQuoteIsDeterministic(t *testing.T) {
	items := []LineItem{
		{VariantKey: "a", UnitPrice: 123_457, DiscountPercent: 13, Qty: 3},
		{VariantKey: "b", UnitPrice: 99_999, DiscountPercent: 7, Qty: 2},
	}
	first, err := Quote(items, nil, 25_000)
	require.NoError(t, err)
	second, err := Quote(items, nil, 25_000)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQuoteClampsNegativeTotal(t *testing.T) {
	items := []LineItem{{VariantKey: "a", UnitPrice: 10_000, Qty: 1}}
	// an over-large allocation can only come from a bug upstream, the
	// calculator still refuses to produce a negative order total
	alloc := &coupon.Allocation{
		Total:  50_000,
		Shares: []coupon.Share{{VariantKey: "a", Amount: 50_000}},
	}
	summary, err := Quote(items, alloc, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.Total)
	assert.True(t, summary.Underflow)
}

func TestQuoteItemsSumToSubtotal(t *testing.T) {
	items := []LineItem{
		{VariantKey: "a", UnitPrice: 777, DiscountPercent: 11, Qty: 3},
		{VariantKey: "b", UnitPrice: 1_313, DiscountPercent: 29, Qty: 5},
		{VariantKey: "c", UnitPrice: 99, Qty: 7},
	}
	summary, err := Quote(items, nil, 0)
	require.NoError(t, err)
	var sum Money
	for _, it := range summary.Items {
		sum += it.Net
	}
	assert.Equal(t, summary.Subtotal, sum)
}
