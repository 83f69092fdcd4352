package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-storefront/internal/cart"
	"github.com/noah-isme/backend-storefront/internal/common"
	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/shipping"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc      *Service
	Carts    *cart.Service
	Validate *validator.Validate
}

type checkoutRequest struct {
	CustomerName   string `json:"customerName" validate:"required"`
	CustomerEmail  string `json:"customerEmail" validate:"required,email"`
	CustomerPhone  string `json:"customerPhone" validate:"omitempty,min=6"`
	Address        string `json:"address" validate:"required"`
	ShippingMethod string `json:"shippingMethod" validate:"required,oneof=standard express"`
}

// Create handles POST /api/v1/checkout.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	token := strings.TrimSpace(r.Header.Get(cart.TokenHeader))
	if token == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart token is required", nil)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	validate := h.Validate
	if validate == nil {
		validate = validator.New()
	}
	if err := validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	c, err := h.Carts.EnsureCart(r.Context(), token)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return
	}

	result, err := h.Svc.PlaceOrder(r.Context(), c, Request{
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Address:        req.Address,
		ShippingMethod: shipping.Method(req.ShippingMethod),
	})
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	w.Header().Set(cart.TokenHeader, c.Token)
	common.Data(w, http.StatusCreated, result)
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	if code, status := coupon.RejectionCode(err); code != "" {
		common.JSONError(w, status, code, err.Error(), nil)
		return
	}
	switch {
	case errors.Is(err, pricing.ErrCartEmpty):
		common.JSONError(w, http.StatusUnprocessableEntity, "CART_EMPTY", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidQty), errors.Is(err, shipping.ErrUnknownMethod):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
