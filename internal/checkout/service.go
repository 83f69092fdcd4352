package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-storefront/internal/cart"
	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/obs"
	"github.com/noah-isme/backend-storefront/internal/order"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/shipping"
)

// CouponTxStore is the coupon access checkout needs inside its transaction.
type CouponTxStore interface {
	GetByCodeForUpdate(ctx context.Context, code string) (coupon.Coupon, error)
	Redeem(ctx context.Context, id uuid.UUID) error
}

// OrderTxStore persists the order inside the checkout transaction.
type OrderTxStore interface {
	Create(ctx context.Context, o order.Order, items []order.Item) (order.Order, error)
}

// CartTxStore is the cart access checkout needs inside its transaction.
type CartTxStore interface {
	ListItems(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
}

// Stores groups the per-transaction data access used by checkout.
type Stores struct {
	Coupons CouponTxStore
	Orders  OrderTxStore
	Carts   CartTxStore
}

// Runner executes fn atomically: every store call inside fn either commits as
// one unit or rolls back entirely.
type Runner func(ctx context.Context, fn func(ctx context.Context, st Stores) error) error

// PGRunner runs checkout functions inside a single Postgres transaction.
func PGRunner(pool *pgxpool.Pool) Runner {
	return func(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()
		st := Stores{
			Coupons: coupon.PGStore{DB: tx},
			Orders:  order.PGStore{DB: tx},
			Carts:   cart.PGStore{DB: tx},
		}
		if err := fn(ctx, st); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
}

// Request carries the customer details needed to place an order.
type Request struct {
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Address        string
	ShippingMethod shipping.Method
}

// Result is the outcome of a successful checkout.
type Result struct {
	Order   order.Order     `json:"order"`
	Items   []order.Item    `json:"items"`
	Summary pricing.Summary `json:"summary"`
}

// Service places orders. The whole operation runs in one transaction: the
// coupon row is locked, the order is created, and the redemption counter moves,
// or none of it happens.
type Service struct {
	Run    Runner
	Quoter shipping.Quoter
	Log    zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PlaceOrder converts the cart into a pending order.
func (s *Service) PlaceOrder(ctx context.Context, c cart.Cart, req Request) (Result, error) {
	if s == nil || s.Run == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	fee, err := s.Quoter.Fee(req.ShippingMethod)
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = s.Run(ctx, func(ctx context.Context, st Stores) error {
		items, err := st.Carts.ListItems(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return pricing.ErrCartEmpty
		}

		var (
			alloc      *coupon.Allocation
			redeemed   *coupon.Coupon
			couponCode *string
		)
		if c.CouponCode != nil {
			locked, err := st.Coupons.GetByCodeForUpdate(ctx, *c.CouponCode)
			if err != nil {
				return err
			}
			if err := coupon.Evaluate(locked, s.now()).Err(); err != nil {
				return err
			}
			resolved, err := coupon.Resolve(locked, cart.CouponLines(items))
			if err != nil {
				return err
			}
			alloc = &resolved
			redeemed = &locked
			couponCode = &locked.Code
		}

		summary, err := pricing.Quote(cart.PricingLines(items), alloc, fee)
		if err != nil {
			return err
		}
		if summary.Underflow {
			s.Log.Warn().Str("cart_token", c.Token).Msg("order total clamped to zero")
			if obs.PricingUnderflowTotal != nil {
				obs.PricingUnderflowTotal.Inc()
			}
		}

		created, err := st.Orders.Create(ctx, order.Order{
			CartToken:      c.Token,
			CustomerName:   req.CustomerName,
			CustomerEmail:  req.CustomerEmail,
			CustomerPhone:  req.CustomerPhone,
			Address:        req.Address,
			Status:         order.StatusPending,
			CouponCode:     couponCode,
			ShippingMethod: req.ShippingMethod,
			Subtotal:       summary.Subtotal,
			Discount:       summary.Discount,
			ShippingFee:    summary.Shipping,
			Total:          summary.Total,
		}, orderItems(items, summary))
		if err != nil {
			return err
		}

		if redeemed != nil {
			if err := st.Coupons.Redeem(ctx, redeemed.ID); err != nil {
				if obs.CouponRedemptionTotal != nil {
					obs.CouponRedemptionTotal.WithLabelValues("exhausted").Inc()
				}
				return err
			}
			if obs.CouponRedemptionTotal != nil {
				obs.CouponRedemptionTotal.WithLabelValues("redeemed").Inc()
			}
		}

		if err := st.Carts.ClearItems(ctx, c.ID); err != nil {
			return err
		}
		if err := st.Carts.SetCoupon(ctx, c.ID, nil); err != nil {
			return err
		}

		result = Result{Order: created, Summary: summary}
		result.Items = orderItems(items, summary)
		for i := range result.Items {
			result.Items[i].OrderID = created.ID
		}
		return nil
	})
	if err != nil {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues("rejected").Inc()
		}
		return Result{}, err
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("placed").Inc()
	}
	s.Log.Info().
		Str("order_id", result.Order.ID.String()).
		Int64("total", result.Order.Total).
		Msg("order placed")
	return result, nil
}

// orderItems freezes the cart lines, joining in the per-line coupon share from
// the computed breakdown.
func orderItems(items []cart.Item, summary pricing.Summary) []order.Item {
	byKey := make(map[string]pricing.ItemBreakdown, len(summary.Items))
	for _, b := range summary.Items {
		byKey[b.VariantKey] = b
	}
	out := make([]order.Item, 0, len(items))
	for _, it := range items {
		breakdown := byKey[it.VariantID.String()]
		out = append(out, order.Item{
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			Title:           it.Title,
			Size:            it.Size,
			Color:           it.Color,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
			Qty:             it.Qty,
			Net:             breakdown.Net,
			CouponDiscount:  breakdown.CouponDiscount,
		})
	}
	return out
}
