package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-storefront/internal/common"
)

// Store abstracts catalog persistence for the service.
type Store interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CountProducts(ctx context.Context, params ListParams) (int64, error)
	ListProducts(ctx context.Context, params ListParams) ([]Product, error)
	GetBySlug(ctx context.Context, slug string) (Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (Product, error)
	ListVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error)
	GetVariant(ctx context.Context, productID uuid.UUID, size, color string) (Variant, error)
}

// ProductDetail is the full product payload including variants.
type ProductDetail struct {
	Product
	Variants []Variant `json:"variants"`
}

// ListResult contains one product page with pagination metadata.
type ListResult struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	store        Store
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// NewService constructs a Service. Cache may be nil.
func NewService(store Store, cache *Cache) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: store, cache: cache, defaultLimit: 20, maxLimit: 100}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	const key = "catalog:categories"
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []Category{}
	}
	_ = s.cache.SetJSON(ctx, key, cats)
	return cats, nil
}

// ListProducts returns a filtered product page. Only the unfiltered first page
// is cached, it serves the storefront landing view.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ListResult, error) {
	key, cacheable := s.listCacheKey(params)
	if cacheable {
		var cached ListResult
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	total, err := s.store.CountProducts(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	items, err := s.store.ListProducts(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Product{}
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, result)
	}
	return result, nil
}

// GetProductDetail returns a product with its variants, by slug.
func (s *Service) GetProductDetail(ctx context.Context, slug string) (ProductDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductDetail{}, badRequest("slug", "slug is required", nil)
	}
	key := "catalog:products:detail:" + slug
	var cached ProductDetail
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	product, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProductDetail{}, notFound("product not found", err)
		}
		return ProductDetail{}, fmt.Errorf("get product by slug: %w", err)
	}
	variants, err := s.store.ListVariants(ctx, product.ID)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("list variants: %w", err)
	}
	if variants == nil {
		variants = []Variant{}
	}
	detail := ProductDetail{Product: product, Variants: variants}
	_ = s.cache.SetJSON(ctx, key, detail)
	return detail, nil
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != 1 || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" {
		return "", false
	}
	return "catalog:products:list:front", true
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}

func notFound(message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "NOT_FOUND",
		Message:    message,
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}
