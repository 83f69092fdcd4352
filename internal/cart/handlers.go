package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-storefront/internal/common"
	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/shipping"
)

// TokenHeader carries the opaque cart token between requests.
const TokenHeader = "X-Cart-Token"

// Handler exposes cart endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Size      string `json:"size" validate:"required"`
	Color     string `json:"color" validate:"required"`
	Qty       int32  `json:"qty" validate:"required,gte=1"`
}

type updateItemRequest struct {
	Qty int32 `json:"qty" validate:"gte=0"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ensureCart(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.GetView(r.Context(), c)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ensureCart(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), c, productID, req.Size, req.Color, req.Qty); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.respondView(w, r, c, http.StatusCreated)
}

// UpdateItem handles PATCH /api/v1/cart/items/{itemID}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ensureCart(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Svc.UpdateItemQty(r.Context(), c, itemID, req.Qty); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.respondView(w, r, c, http.StatusOK)
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ensureCart(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), c, itemID); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.respondView(w, r, c, http.StatusOK)
}

// ApplyCoupon handles POST /api/v1/cart/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ensureCart(w, r)
	if !ok {
		return
	}
	var req applyCouponRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.Svc.ApplyCoupon(r.Context(), c, req.Code)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	w.Header().Set(TokenHeader, c.Token)
	common.Data(w, http.StatusOK, result)
}

// RemoveCoupon handles DELETE /api/v1/cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ensureCart(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveCoupon(r.Context(), c); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.respondView(w, r, c, http.StatusOK)
}

// QuoteTotal handles GET /api/v1/cart/quote?shipping=standard.
func (h *Handler) QuoteTotal(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ensureCart(w, r)
	if !ok {
		return
	}
	method := shipping.Method(strings.TrimSpace(r.URL.Query().Get("shipping")))
	if method == "" {
		method = shipping.MethodStandard
	}
	quote, err := h.Svc.QuoteTotal(r.Context(), c, method)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	w.Header().Set(TokenHeader, c.Token)
	common.Data(w, http.StatusOK, quote)
}

func (h *Handler) ensureCart(w http.ResponseWriter, r *http.Request) (Cart, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return Cart{}, false
	}
	c, err := h.Svc.EnsureCart(r.Context(), strings.TrimSpace(r.Header.Get(TokenHeader)))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return Cart{}, false
	}
	return c, true
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, c Cart, status int) {
	view, err := h.Svc.GetView(r.Context(), c)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	w.Header().Set(TokenHeader, c.Token)
	common.Data(w, status, view)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	validate := h.Validate
	if validate == nil {
		validate = validator.New()
	}
	if err := validate.Struct(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

func (h *Handler) writeCartError(w http.ResponseWriter, err error) {
	if code, status := coupon.RejectionCode(err); code != "" {
		common.JSONError(w, status, code, err.Error(), nil)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusUnprocessableEntity, "OUT_OF_STOCK", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, pricing.ErrCartEmpty),
		errors.Is(err, pricing.ErrInvalidQty), errors.Is(err, shipping.ErrUnknownMethod):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
