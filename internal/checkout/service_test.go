package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-storefront/internal/cart"
	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/order"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/shipping"
)

// fakeDB backs all three tx stores and supports snapshot/rollback so the fake
// runner mirrors real transaction semantics.
type fakeDB struct {
	coupons    map[string]coupon.Coupon
	orders     []order.Order
	orderItems [][]order.Item
	cartItems  map[uuid.UUID][]cart.Item
	cartCoupon map[uuid.UUID]*string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		coupons:    map[string]coupon.Coupon{},
		cartItems:  map[uuid.UUID][]cart.Item{},
		cartCoupon: map[uuid.UUID]*string{},
	}
}

func (db *fakeDB) snapshot() *fakeDB {
	clone := newFakeDB()
	for k, v := range db.coupons {
		clone.coupons[k] = v
	}
	clone.orders = append([]order.Order(nil), db.orders...)
	clone.orderItems = append([][]order.Item(nil), db.orderItems...)
	for k, v := range db.cartItems {
		clone.cartItems[k] = append([]cart.Item(nil), v...)
	}
	for k, v := range db.cartCoupon {
		clone.cartCoupon[k] = v
	}
	return clone
}

func (db *fakeDB) restore(snap *fakeDB) {
	db.coupons = snap.coupons
	db.orders = snap.orders
	db.orderItems = snap.orderItems
	db.cartItems = snap.cartItems
	db.cartCoupon = snap.cartCoupon
}

func (db *fakeDB) GetByCodeForUpdate(_ context.Context, code string) (coupon.Coupon, error) {
	c, ok := db.coupons[code]
	if !ok {
		return coupon.Coupon{}, coupon.ErrNotFound
	}
	return c, nil
}

func (db *fakeDB) Redeem(_ context.Context, id uuid.UUID) error {
	for code, c := range db.coupons {
		if c.ID != id {
			continue
		}
		if c.Status != coupon.StatusActive {
			return coupon.ErrUsageExhausted
		}
		if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
			return coupon.ErrUsageExhausted
		}
		c.UsedCount++
		if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
			c.Status = coupon.StatusInactive
		}
		db.coupons[code] = c
		return nil
	}
	return coupon.ErrNotFound
}

func (db *fakeDB) Create(_ context.Context, o order.Order, items []order.Item) (order.Order, error) {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	db.orders = append(db.orders, o)
	db.orderItems = append(db.orderItems, items)
	return o, nil
}

func (db *fakeDB) ListItems(_ context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	return db.cartItems[cartID], nil
}

func (db *fakeDB) ClearItems(_ context.Context, cartID uuid.UUID) error {
	delete(db.cartItems, cartID)
	return nil
}

func (db *fakeDB) SetCoupon(_ context.Context, cartID uuid.UUID, code *string) error {
	db.cartCoupon[cartID] = code
	return nil
}

func fakeRunner(db *fakeDB) Runner {
	return func(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
		snap := db.snapshot()
		err := fn(ctx, Stores{Coupons: db, Orders: db, Carts: db})
		if err != nil {
			db.restore(snap)
		}
		return err
	}
}

func checkoutNow() time.Time {
	return time.Date(2026, time.April, 2, 9, 30, 0, 0, time.UTC)
}

func newCheckoutService(db *fakeDB) *Service {
	return &Service{Run: fakeRunner(db), Now: checkoutNow}
}

func seedCart(db *fakeDB, unitPrice int64, discountPct int32, qty int32) cart.Cart {
	c := cart.Cart{ID: uuid.New(), Token: uuid.NewString()}
	db.cartItems[c.ID] = []cart.Item{{
		ID:              uuid.New(),
		CartID:          c.ID,
		ProductID:       uuid.New(),
		VariantID:       uuid.New(),
		Title:           "Sneakers",
		Size:            "42",
		Color:           "white",
		UnitPrice:       unitPrice,
		DiscountPercent: discountPct,
		Qty:             qty,
	}}
	return c
}

func seedCoupon(db *fakeDB, code string, kind coupon.Kind, value int64, usageLimit *int32) coupon.Coupon {
	c := coupon.Coupon{
		ID:      uuid.New(),
		Code:    code,
		Kind:    kind,
		Value:   value,
		StartAt: checkoutNow().Add(-time.Hour),
		EndAt:   checkoutNow().Add(time.Hour),
		Status:  coupon.StatusActive,
	}
	c.UsageLimit = usageLimit
	db.coupons[code] = c
	return c
}

func TestPlaceOrderWithoutCoupon(t *testing.T) {
	db := newFakeDB()
	svc := newCheckoutService(db)
	c := seedCart(db, 500_000, 0, 2)

	result, err := svc.PlaceOrder(context.Background(), c, Request{
		CustomerName:   "Budi",
		CustomerEmail:  "budi@example.com",
		Address:        "Jl. Merdeka 1",
		ShippingMethod: shipping.MethodStandard,
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, result.Order.Status)
	require.EqualValues(t, 1_000_000, result.Order.Subtotal)
	require.EqualValues(t, 25_000, result.Order.ShippingFee)
	require.EqualValues(t, 1_025_000, result.Order.Total)
	require.Nil(t, result.Order.CouponCode)
	require.Len(t, result.Items, 1)
	require.Empty(t, db.cartItems[c.ID], "cart must be emptied after checkout")
}

func TestPlaceOrderRedeemsCouponOnce(t *testing.T) {
	db := newFakeDB()
	svc := newCheckoutService(db)
	limit := int32(1)
	seedCoupon(db, "ONCE", coupon.KindFixed, 100_000, &limit)

	code := "ONCE"
	c := seedCart(db, 500_000, 0, 1)
	c.CouponCode = &code

	result, err := svc.PlaceOrder(context.Background(), c, Request{
		CustomerName:   "Sari",
		CustomerEmail:  "sari@example.com",
		Address:        "Jl. Sudirman 2",
		ShippingMethod: shipping.MethodExpress,
	})
	require.NoError(t, err)
	require.EqualValues(t, 100_000, result.Order.Discount)
	require.EqualValues(t, 500_000-100_000+35_000, result.Order.Total)

	redeemed := db.coupons["ONCE"]
	require.EqualValues(t, 1, redeemed.UsedCount)
	require.Equal(t, coupon.StatusInactive, redeemed.Status, "limit reached flips the coupon inactive")

	// second order with the same coupon must fail and roll back entirely
	c2 := seedCart(db, 500_000, 0, 1)
	c2.CouponCode = &code
	_, err = svc.PlaceOrder(context.Background(), c2, Request{
		CustomerName:   "Rina",
		CustomerEmail:  "rina@example.com",
		Address:        "Jl. Thamrin 3",
		ShippingMethod: shipping.MethodStandard,
	})
	require.ErrorIs(t, err, coupon.ErrInactive)
	require.Len(t, db.orders, 1)
	require.NotEmpty(t, db.cartItems[c2.ID], "failed checkout must keep the cart intact")
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	db := newFakeDB()
	svc := newCheckoutService(db)
	c := cart.Cart{ID: uuid.New(), Token: uuid.NewString()}

	_, err := svc.PlaceOrder(context.Background(), c, Request{ShippingMethod: shipping.MethodStandard})
	require.ErrorIs(t, err, pricing.ErrCartEmpty)
	require.Empty(t, db.orders)
}

func TestPlaceOrderRejectsUnknownShipping(t *testing.T) {
	db := newFakeDB()
	svc := newCheckoutService(db)
	c := seedCart(db, 500_000, 0, 1)

	_, err := svc.PlaceOrder(context.Background(), c, Request{ShippingMethod: shipping.Method("pigeon")})
	require.ErrorIs(t, err, shipping.ErrUnknownMethod)
}

func TestPlaceOrderBelowMinimumRollsBack(t *testing.T) {
	db := newFakeDB()
	svc := newCheckoutService(db)
	code := "BIGSPEND"
	c := seedCart(db, 100_000, 0, 1)
	c.CouponCode = &code

	cp := seedCoupon(db, code, coupon.KindFixed, 50_000, nil)
	cp.MinOrderAmount = 1_000_000
	db.coupons[code] = cp

	_, err := svc.PlaceOrder(context.Background(), c, Request{
		CustomerName:   "Andi",
		CustomerEmail:  "andi@example.com",
		Address:        "Jl. Gatot Subroto 4",
		ShippingMethod: shipping.MethodStandard,
	})
	require.ErrorIs(t, err, coupon.ErrBelowMinimum)
	require.Empty(t, db.orders)
	require.EqualValues(t, 0, db.coupons[code].UsedCount)
}

func TestOrderItemsCarryCouponShares(t *testing.T) {
	db := newFakeDB()
	svc := newCheckoutService(db)
	seedCoupon(db, "SPLIT", coupon.KindFixed, 100, nil)

	c := cart.Cart{ID: uuid.New(), Token: uuid.NewString()}
	code := "SPLIT"
	c.CouponCode = &code
	v1, v2, v3 := uuid.New(), uuid.New(), uuid.New()
	db.cartItems[c.ID] = []cart.Item{
		{ID: uuid.New(), CartID: c.ID, ProductID: uuid.New(), VariantID: v1, UnitPrice: 100, Qty: 1},
		{ID: uuid.New(), CartID: c.ID, ProductID: uuid.New(), VariantID: v2, UnitPrice: 100, Qty: 1},
		{ID: uuid.New(), CartID: c.ID, ProductID: uuid.New(), VariantID: v3, UnitPrice: 100, Qty: 1},
	}

	result, err := svc.PlaceOrder(context.Background(), c, Request{
		CustomerName:   "Tono",
		CustomerEmail:  "tono@example.com",
		Address:        "Jl. Asia Afrika 5",
		ShippingMethod: shipping.MethodStandard,
	})
	require.NoError(t, err)

	var sum int64
	for _, it := range result.Items {
		sum += it.CouponDiscount
	}
	require.EqualValues(t, 100, sum, "per-line shares must sum exactly to the discount")
	require.EqualValues(t, 100, result.Order.Discount)
}
