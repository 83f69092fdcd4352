package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-storefront/internal/catalog"
	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/shipping"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfStock is returned when the requested quantity exceeds variant stock.
var ErrOutOfStock = errors.New("insufficient stock")

// Store captures the persistence methods required by the cart service.
type Store interface {
	GetByToken(ctx context.Context, token string) (Cart, error)
	Create(ctx context.Context, token string, expiresAt time.Time) (Cart, error)
	Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error
	SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
	UpsertItem(ctx context.Context, item Item) error
	UpdateItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) error
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
}

// View is the cart payload returned to clients: the cart, its lines, and the
// running totals without shipping.
type View struct {
	Cart    Cart            `json:"cart"`
	Items   []Item          `json:"items"`
	Summary pricing.Summary `json:"summary"`
}

// Quote extends a View with shipping and the final payable total.
type Quote struct {
	View
	ShippingMethod shipping.Method `json:"shippingMethod"`
}

// Service encapsulates cart domain operations.
type Service struct {
	Store   Store
	Catalog catalog.Store
	Coupons *coupon.Service
	Quoter  shipping.Quoter
	TTL     time.Duration
	Now     func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads the cart for the token, creating one when the token is
// empty or unknown. The expiry slides forward on every touch.
func (s *Service) EnsureCart(ctx context.Context, token string) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	expires := s.now().Add(s.ttl())
	if token != "" {
		c, err := s.Store.GetByToken(ctx, token)
		if err == nil {
			_ = s.Store.Touch(ctx, c.ID, expires)
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Cart{}, err
		}
	}
	return s.Store.Create(ctx, uuid.NewString(), expires)
}

// AddItem resolves the variant, checks stock, and adds a snapshot line.
func (s *Service) AddItem(ctx context.Context, c Cart, productID uuid.UUID, size, color string, qty int32) error {
	if qty < 1 {
		return fmt.Errorf("qty must be at least 1: %w", ErrInvalidInput)
	}
	product, err := s.Catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("product: %w", ErrNotFound)
		}
		return err
	}
	variant, err := s.Catalog.GetVariant(ctx, productID, size, color)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("variant: %w", ErrNotFound)
		}
		return err
	}
	if variant.Stock < qty {
		return ErrOutOfStock
	}
	return s.Store.UpsertItem(ctx, Item{
		CartID:          c.ID,
		ProductID:       product.ID,
		VariantID:       variant.ID,
		Title:           product.Title,
		Size:            variant.Size,
		Color:           variant.Color,
		UnitPrice:       product.Price,
		DiscountPercent: product.DiscountPercent,
		Qty:             qty,
	})
}

// UpdateItemQty replaces a line quantity. Zero removes the line.
func (s *Service) UpdateItemQty(ctx context.Context, c Cart, itemID uuid.UUID, qty int32) error {
	if qty < 0 {
		return fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	if qty == 0 {
		return s.Store.RemoveItem(ctx, c.ID, itemID)
	}
	return s.Store.UpdateItemQty(ctx, c.ID, itemID, qty)
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, c Cart, itemID uuid.UUID) error {
	return s.Store.RemoveItem(ctx, c.ID, itemID)
}

// ApplyCoupon dry-runs the code against the current cart and persists it only
// when the full evaluation succeeds.
func (s *Service) ApplyCoupon(ctx context.Context, c Cart, code string) (coupon.PreviewResult, error) {
	if s.Coupons == nil {
		return coupon.PreviewResult{}, errors.New("coupon service not configured")
	}
	items, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	if len(items) == 0 {
		return coupon.PreviewResult{}, pricing.ErrCartEmpty
	}
	result, err := s.Coupons.Preview(ctx, code, CouponLines(items))
	if err != nil {
		return coupon.PreviewResult{}, err
	}
	if err := s.Store.SetCoupon(ctx, c.ID, &result.Code); err != nil {
		return coupon.PreviewResult{}, err
	}
	return result, nil
}

// RemoveCoupon clears the applied coupon from the cart.
func (s *Service) RemoveCoupon(ctx context.Context, c Cart) error {
	return s.Store.SetCoupon(ctx, c.ID, nil)
}

// GetView returns the cart lines with totals computed without shipping. A
// coupon that no longer evaluates is surfaced through the error so callers can
// tell the client why the discount vanished.
func (s *Service) GetView(ctx context.Context, c Cart) (View, error) {
	items, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return View{}, err
	}
	view := View{Cart: c, Items: items}
	if len(items) == 0 {
		view.Items = []Item{}
		return view, nil
	}
	alloc, err := s.resolveCoupon(ctx, c, items)
	if err != nil {
		return View{}, err
	}
	summary, err := pricing.Quote(PricingLines(items), alloc, 0)
	if err != nil {
		return View{}, err
	}
	view.Summary = summary
	return view, nil
}

// QuoteTotal computes the final payable total for a shipping method.
func (s *Service) QuoteTotal(ctx context.Context, c Cart, method shipping.Method) (Quote, error) {
	fee, err := s.Quoter.Fee(method)
	if err != nil {
		return Quote{}, err
	}
	items, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return Quote{}, err
	}
	if len(items) == 0 {
		return Quote{}, pricing.ErrCartEmpty
	}
	alloc, err := s.resolveCoupon(ctx, c, items)
	if err != nil {
		return Quote{}, err
	}
	summary, err := pricing.Quote(PricingLines(items), alloc, fee)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		View:           View{Cart: c, Items: items, Summary: summary},
		ShippingMethod: method,
	}, nil
}

func (s *Service) resolveCoupon(ctx context.Context, c Cart, items []Item) (*coupon.Allocation, error) {
	if c.CouponCode == nil || s.Coupons == nil {
		return nil, nil
	}
	result, err := s.Coupons.Preview(ctx, *c.CouponCode, CouponLines(items))
	if err != nil {
		return nil, err
	}
	return &result.Allocation, nil
}

// PricingLines converts cart items to calculator inputs. The variant id keys
// the coupon breakdown back onto each line.
func PricingLines(items []Item) []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.LineItem{
			VariantKey:      it.VariantID.String(),
			UnitPrice:       it.UnitPrice,
			DiscountPercent: int(it.DiscountPercent),
			Qty:             int(it.Qty),
		})
	}
	return out
}

// CouponLines converts cart items to resolver inputs using net line totals.
func CouponLines(items []Item) []coupon.Line {
	out := make([]coupon.Line, 0, len(items))
	for _, it := range items {
		li := pricing.LineItem{
			UnitPrice:       it.UnitPrice,
			DiscountPercent: int(it.DiscountPercent),
			Qty:             int(it.Qty),
		}
		out = append(out, coupon.Line{
			ProductID:  it.ProductID,
			CategoryID: it.CategoryID,
			VariantKey: it.VariantID.String(),
			Total:      li.Net(),
		})
	}
	return out
}
