package catalog

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	products   []Product
	variants   []Variant
	categories []Category
	listCalls  int
}

func (s *stubStore) ListCategories(context.Context) ([]Category, error) { return s.categories, nil }

func (s *stubStore) CountProducts(context.Context, ListParams) (int64, error) {
	return int64(len(s.products)), nil
}

func (s *stubStore) ListProducts(context.Context, ListParams) ([]Product, error) {
	s.listCalls++
	return s.products, nil
}

func (s *stubStore) GetBySlug(_ context.Context, slug string) (Product, error) {
	for _, p := range s.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (s *stubStore) GetByID(_ context.Context, id uuid.UUID) (Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (s *stubStore) ListVariants(_ context.Context, productID uuid.UUID) ([]Variant, error) {
	var out []Variant
	for _, v := range s.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubStore) GetVariant(_ context.Context, productID uuid.UUID, size, color string) (Variant, error) {
	for _, v := range s.variants {
		if v.ProductID == productID && v.Size == size && v.Color == color {
			return v, nil
		}
	}
	return Variant{}, ErrNotFound
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestParseListParams(t *testing.T) {
	svc, err := NewService(&stubStore{}, nil)
	require.NoError(t, err)

	params, err := svc.ParseListParams(url.Values{"q": {" sepatu "}, "category": {"shoes"}, "page": {"2"}, "limit": {"10"}})
	require.NoError(t, err)
	require.Equal(t, "sepatu", params.Query)
	require.Equal(t, "shoes", params.Category)
	require.Equal(t, 2, params.Page)
	require.Equal(t, 10, params.Limit)

	_, err = svc.ParseListParams(url.Values{"page": {"0"}})
	require.Error(t, err)

	params, err = svc.ParseListParams(url.Values{"limit": {"500"}})
	require.NoError(t, err)
	require.Equal(t, 100, params.Limit)
}

func TestListProductsUsesCacheForFrontPage(t *testing.T) {
	store := &stubStore{products: []Product{{ID: uuid.New(), Slug: "tee", Title: "Basic Tee", Price: 150_000}}}
	svc, err := NewService(store, newTestCache(t))
	require.NoError(t, err)

	params := ListParams{Page: 1, Limit: 20}
	first, err := svc.ListProducts(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	second, err := svc.ListProducts(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, store.listCalls)
}

func TestListProductsSkipsCacheWhenFiltered(t *testing.T) {
	store := &stubStore{products: []Product{{ID: uuid.New(), Slug: "tee"}}}
	svc, err := NewService(store, newTestCache(t))
	require.NoError(t, err)

	params := ListParams{Page: 1, Limit: 20, Query: "tee"}
	_, err = svc.ListProducts(context.Background(), params)
	require.NoError(t, err)
	_, err = svc.ListProducts(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, 2, store.listCalls)
}

func TestGetProductDetail(t *testing.T) {
	productID := uuid.New()
	store := &stubStore{
		products: []Product{{ID: productID, Slug: "denim-jacket", Title: "Denim Jacket", Price: 1_250_000}},
		variants: []Variant{
			{ID: uuid.New(), ProductID: productID, Size: "M", Color: "blue", Stock: 3},
			{ID: uuid.New(), ProductID: productID, Size: "L", Color: "blue", Stock: 1},
		},
	}
	svc, err := NewService(store, newTestCache(t))
	require.NoError(t, err)

	detail, err := svc.GetProductDetail(context.Background(), "denim-jacket")
	require.NoError(t, err)
	require.Equal(t, "Denim Jacket", detail.Title)
	require.Len(t, detail.Variants, 2)

	_, err = svc.GetProductDetail(context.Background(), "missing")
	require.Error(t, err)
}
