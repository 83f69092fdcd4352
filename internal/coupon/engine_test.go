package coupon

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var engineNow = time.Date(2026, time.May, 15, 10, 0, 0, 0, time.UTC)

func activeCoupon() Coupon {
	return Coupon{
		ID:      uuid.New(),
		Code:    "TEST",
		Kind:    KindPercent,
		Value:   10,
		StartAt: engineNow.Add(-24 * time.Hour),
		EndAt:   engineNow.Add(24 * time.Hour),
		Status:  StatusActive,
	}
}

func TestEvaluateValid(t *testing.T) {
	require.Equal(t, ValidityOK, Evaluate(activeCoupon(), engineNow))
}

func TestEvaluateWindowBoundariesInclusive(t *testing.T) {
	c := activeCoupon()
	assert.Equal(t, ValidityOK, Evaluate(c, c.StartAt))
	assert.Equal(t, ValidityOK, Evaluate(c, c.EndAt))
	assert.Equal(t, ValidityNotYetStarted, Evaluate(c, c.StartAt.Add(-time.Second)))
	assert.Equal(t, ValidityExpired, Evaluate(c, c.EndAt.Add(time.Second)))
}

func TestEvaluatePrecedence(t *testing.T) {
	limit := int32(5)

	// a stale active flag loses to the exhausted counter
	c := activeCoupon()
	c.UsageLimit = &limit
	c.UsedCount = 5
	assert.Equal(t, ValidityExhausted, Evaluate(c, engineNow))

	// inactive wins over everything else
	c.Status = StatusInactive
	c.EndAt = engineNow.Add(-time.Hour)
	assert.Equal(t, ValidityInactive, Evaluate(c, engineNow))

	// exhausted wins over expired
	c = activeCoupon()
	c.UsageLimit = &limit
	c.UsedCount = 7
	c.EndAt = engineNow.Add(-time.Hour)
	assert.Equal(t, ValidityExhausted, Evaluate(c, engineNow))

	// not-yet-started wins over expired (malformed window)
	c = activeCoupon()
	c.StartAt = engineNow.Add(time.Hour)
	c.EndAt = engineNow.Add(-time.Hour)
	assert.Equal(t, ValidityNotYetStarted, Evaluate(c, engineNow))
}

func TestValidityErrMapping(t *testing.T) {
	assert.NoError(t, ValidityOK.Err())
	assert.ErrorIs(t, ValidityInactive.Err(), ErrInactive)
	assert.ErrorIs(t, ValidityExhausted.Err(), ErrUsageExhausted)
	assert.ErrorIs(t, ValidityNotYetStarted.Err(), ErrNotYetStarted)
	assert.ErrorIs(t, ValidityExpired.Err(), ErrExpired)
}

func lines(totals ...int64) []Line {
	out := make([]Line, 0, len(totals))
	for i, total := range totals {
		out = append(out, Line{
			ProductID:  uuid.New(),
			VariantKey: string(rune('a' + i)),
			Total:      total,
		})
	}
	return out
}

func sumShares(alloc Allocation) int64 {
	var sum int64
	for _, sh := range alloc.Shares {
		sum += sh.Amount
	}
	return sum
}

func TestResolvePercent(t *testing.T) {
	c := activeCoupon()
	alloc, err := Resolve(c, lines(2_000_000))
	require.NoError(t, err)
	require.EqualValues(t, 200_000, alloc.Total)
	require.EqualValues(t, 2_000_000, alloc.Eligible)
	require.EqualValues(t, alloc.Total, sumShares(alloc))
}

func TestResolvePercentCappedByMaxDiscount(t *testing.T) {
	c := activeCoupon()
	cap := int64(100_000)
	c.MaxDiscount = &cap

	alloc, err := Resolve(c, lines(2_000_000))
	require.NoError(t, err)
	require.EqualValues(t, 100_000, alloc.Total)
	require.EqualValues(t, alloc.Total, sumShares(alloc))
}

func TestResolveFixed(t *testing.T) {
	c := activeCoupon()
	c.Kind = KindFixed
	c.Value = 50_000

	alloc, err := Resolve(c, lines(300_000, 200_000))
	require.NoError(t, err)
	require.EqualValues(t, 50_000, alloc.Total)
	// proportional: 30,000 and 20,000
	require.EqualValues(t, 30_000, alloc.Shares[0].Amount)
	require.EqualValues(t, 20_000, alloc.Shares[1].Amount)
}

func TestResolveFixedCappedAtSubtotal(t *testing.T) {
	c := activeCoupon()
	c.Kind = KindFixed
	c.Value = 500_000

	alloc, err := Resolve(c, lines(120_000, 80_000))
	require.NoError(t, err)
	require.EqualValues(t, 200_000, alloc.Total, "discount never exceeds the eligible subtotal")
	require.EqualValues(t, alloc.Total, sumShares(alloc))
}

func TestResolveDistributionIsExact(t *testing.T) {
	c := activeCoupon()
	c.Kind = KindFixed

	// awkward splits that floor-only distribution would lose units on
	cases := []struct {
		value  int64
		totals []int64
	}{
		{100, []int64{100, 100, 100}},
		{1, []int64{3, 3, 3}},
		{97, []int64{10, 20, 30, 41}},
		{333, []int64{1000, 1, 1}},
	}
	for _, tc := range cases {
		c.Value = tc.value
		alloc, err := Resolve(c, lines(tc.totals...))
		require.NoError(t, err)
		assert.EqualValues(t, alloc.Total, sumShares(alloc),
			"value=%d totals=%v", tc.value, tc.totals)
	}
}

func TestResolveMinOrderOnEligibleSubtotal(t *testing.T) {
	categoryID := uuid.New()
	c := activeCoupon()
	c.CategoryIDs = []uuid.UUID{categoryID}
	c.MinOrderAmount = 500_000

	inScope := Line{ProductID: uuid.New(), CategoryID: &categoryID, VariantKey: "a", Total: 300_000}
	outOfScope := Line{ProductID: uuid.New(), VariantKey: "b", Total: 900_000}

	// cart subtotal clears the minimum, the eligible subtotal does not
	_, err := Resolve(c, []Line{inScope, outOfScope})
	require.ErrorIs(t, err, ErrBelowMinimum)

	inScope.Total = 600_000
	alloc, err := Resolve(c, []Line{inScope, outOfScope})
	require.NoError(t, err)
	require.EqualValues(t, 600_000, alloc.Eligible)
	require.Len(t, alloc.Shares, 1)
	require.Equal(t, "a", alloc.Shares[0].VariantKey)
}

func TestResolveScopingByProduct(t *testing.T) {
	target := uuid.New()
	c := activeCoupon()
	c.ProductIDs = []uuid.UUID{target}

	ls := lines(400_000, 600_000)
	ls[0].ProductID = target

	alloc, err := Resolve(c, ls)
	require.NoError(t, err)
	require.EqualValues(t, 400_000, alloc.Eligible)
	require.EqualValues(t, 40_000, alloc.Total)
	require.Len(t, alloc.Shares, 1)
}

func TestResolveUnscopedAppliesToWholeCart(t *testing.T) {
	alloc, err := Resolve(activeCoupon(), lines(100_000, 200_000, 300_000))
	require.NoError(t, err)
	require.EqualValues(t, 600_000, alloc.Eligible)
	require.Len(t, alloc.Shares, 3)
}

func TestResolveSkipsNonPositiveLines(t *testing.T) {
	ls := lines(100_000)
	ls = append(ls, Line{ProductID: uuid.New(), VariantKey: "z", Total: 0})

	alloc, err := Resolve(activeCoupon(), ls)
	require.NoError(t, err)
	require.EqualValues(t, 100_000, alloc.Eligible)
	require.Len(t, alloc.Shares, 1)
}

func TestResolveZeroDiscountAllocation(t *testing.T) {
	c := activeCoupon()
	c.Value = 0
	alloc, err := Resolve(c, lines(100_000))
	require.NoError(t, err)
	require.Zero(t, alloc.Total)
	require.Empty(t, alloc.Shares)
}
