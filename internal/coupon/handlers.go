package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-storefront/internal/common"
)

// Handler exposes administrative coupon management endpoints.
type Handler struct {
	Store    Store
	Svc      *Service
	Validate *validator.Validate
}

type couponPayload struct {
	Code           string     `json:"code" validate:"required"`
	Kind           string     `json:"kind" validate:"required,oneof=percent fixed"`
	Value          int64      `json:"value" validate:"gte=0"`
	MinOrderAmount int64      `json:"minOrderAmount" validate:"gte=0"`
	MaxDiscount    *int64     `json:"maxDiscount" validate:"omitempty,gte=0"`
	StartAt        *time.Time `json:"startAt" validate:"required"`
	EndAt          *time.Time `json:"endAt" validate:"required"`
	UsageLimit     *int32     `json:"usageLimit" validate:"omitempty,gt=0"`
	Status         *string    `json:"status" validate:"omitempty,oneof=active inactive"`
	ProductIDs     []string   `json:"productIds" validate:"omitempty,dive,uuid"`
	CategoryIDs    []string   `json:"categoryIds" validate:"omitempty,dive,uuid"`
}

type previewRequest struct {
	Code  string        `json:"code" validate:"required"`
	Items []previewItem `json:"items" validate:"required,min=1,dive"`
}

type previewItem struct {
	ProductID  string  `json:"productId" validate:"required,uuid"`
	CategoryID *string `json:"categoryId" validate:"omitempty,uuid"`
	VariantKey string  `json:"variantKey" validate:"required"`
	Total      int64   `json:"total" validate:"gte=0"`
}

// Create inserts a new coupon rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon store not configured", nil)
		return
	}
	payload, err := h.decodePayload(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	c, err := buildCoupon(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	created, err := h.Store.Create(r.Context(), c)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(created)})
}

// Update replaces the mutable fields of an existing coupon.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon store not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	payload, err := h.decodePayload(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	payload.Code = code
	c, err := buildCoupon(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	updated, err := h.Store.Update(r.Context(), c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(updated)})
}

// Deactivate flips a coupon inactive. Coupons are never deleted.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon store not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	if err := h.Store.SetStatus(r.Context(), code, StatusInactive); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to deactivate coupon", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview returns the simulated discount allocation for a coupon without
// mutating state.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	lines, err := toEngineLines(req.Items)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, lines)
	if err != nil {
		code, status := RejectionCode(err)
		if code == "" {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon preview failed", nil)
			return
		}
		common.JSONError(w, status, code, err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// RejectionCode maps engine sentinel errors to the canonical API error code and
// HTTP status. It returns an empty code for unrecognised errors.
func RejectionCode(err error) (string, int) {
	switch {
	case errors.Is(err, ErrNotFound):
		return "COUPON_NOT_FOUND", http.StatusNotFound
	case errors.Is(err, ErrInactive):
		return "COUPON_INACTIVE", http.StatusUnprocessableEntity
	case errors.Is(err, ErrExpired):
		return "COUPON_EXPIRED", http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotYetStarted):
		return "COUPON_NOT_YET_STARTED", http.StatusUnprocessableEntity
	case errors.Is(err, ErrUsageExhausted):
		return "COUPON_USAGE_EXHAUSTED", http.StatusUnprocessableEntity
	case errors.Is(err, ErrBelowMinimum):
		return "COUPON_BELOW_MINIMUM", http.StatusUnprocessableEntity
	default:
		return "", 0
	}
}

func (h *Handler) decodePayload(r *http.Request) (couponPayload, error) {
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return couponPayload{}, errors.New("invalid payload")
	}
	if err := h.validate(payload); err != nil {
		return couponPayload{}, err
	}
	return payload, nil
}

func (h *Handler) validate(v any) error {
	validate := h.Validate
	if validate == nil {
		validate = validator.New()
	}
	return validate.Struct(v)
}

func buildCoupon(payload couponPayload) (Coupon, error) {
	code := strings.TrimSpace(payload.Code)
	if code == "" {
		return Coupon{}, errors.New("code is required")
	}
	kind := Kind(payload.Kind)
	if kind == KindPercent && payload.Value > 100 {
		return Coupon{}, errors.New("percent value must be between 0 and 100")
	}
	if !payload.StartAt.Before(*payload.EndAt) {
		return Coupon{}, errors.New("startAt must be before endAt")
	}
	if payload.MaxDiscount != nil && kind != KindPercent {
		return Coupon{}, errors.New("maxDiscount only applies to percent coupons")
	}
	productIDs, err := parseUUIDs(payload.ProductIDs)
	if err != nil {
		return Coupon{}, err
	}
	categoryIDs, err := parseUUIDs(payload.CategoryIDs)
	if err != nil {
		return Coupon{}, err
	}
	status := StatusActive
	if payload.Status != nil {
		status = Status(*payload.Status)
	}
	return Coupon{
		Code:           code,
		Kind:           kind,
		Value:          payload.Value,
		MinOrderAmount: payload.MinOrderAmount,
		MaxDiscount:    payload.MaxDiscount,
		StartAt:        *payload.StartAt,
		EndAt:          *payload.EndAt,
		UsageLimit:     payload.UsageLimit,
		Status:         status,
		ProductIDs:     productIDs,
		CategoryIDs:    categoryIDs,
	}, nil
}

func toResponse(c Coupon) map[string]any {
	out := map[string]any{
		"id":             c.ID.String(),
		"code":           c.Code,
		"kind":           c.Kind,
		"value":          c.Value,
		"minOrderAmount": c.MinOrderAmount,
		"startAt":        c.StartAt,
		"endAt":          c.EndAt,
		"usedCount":      c.UsedCount,
		"status":         c.Status,
	}
	if c.MaxDiscount != nil {
		out["maxDiscount"] = *c.MaxDiscount
	}
	if c.UsageLimit != nil {
		out["usageLimit"] = *c.UsageLimit
	}
	if len(c.ProductIDs) > 0 {
		out["productIds"] = c.ProductIDs
	}
	if len(c.CategoryIDs) > 0 {
		out["categoryIds"] = c.CategoryIDs
	}
	return out
}

func toEngineLines(items []previewItem) ([]Line, error) {
	out := make([]Line, 0, len(items))
	for _, it := range items {
		if it.Total <= 0 {
			continue
		}
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, err
		}
		line := Line{ProductID: pid, VariantKey: it.VariantKey, Total: it.Total}
		if it.CategoryID != nil && strings.TrimSpace(*it.CategoryID) != "" {
			cid, err := uuid.Parse(*it.CategoryID)
			if err != nil {
				return nil, err
			}
			line.CategoryID = &cid
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil, errors.New("no valid items provided")
	}
	return out, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		parsed, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
