package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/campaign"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stock"
)

type memProductRepo struct {
	products map[string]product.Product
}

func (r *memProductRepo) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func (r *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProductRepo) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	p, ok := r.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.products[id] = p
	return true, nil
}

func (r *memProductRepo) RestoreStock(_ context.Context, id string, qty int) error {
	p := r.products[id]
	p.Stock += qty
	r.products[id] = p
	return nil
}

type memCouponRepo struct {
	coupons map[string]*coupon.Coupon
	usages  map[string][]string
}

func (r *memCouponRepo) FindByAlias(_ context.Context, alias string) (*coupon.Coupon, error) {
	c, ok := r.coupons[alias]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (r *memCouponRepo) LockByAlias(ctx context.Context, alias string) (*coupon.Coupon, error) {
	return r.FindByAlias(ctx, alias)
}

func (r *memCouponRepo) UsageStats(_ context.Context, couponID, userID string) (coupon.UsageStats, error) {
	var stats coupon.UsageStats
	distinct := map[string]struct{}{}
	for _, u := range r.usages[couponID] {
		distinct[u] = struct{}{}
		if u == userID {
			stats.UserRedemptions++
			stats.UsedByUser = true
		}
	}
	stats.DistinctUsers = len(distinct)
	return stats, nil
}

func (r *memCouponRepo) AppendUsage(_ context.Context, couponID, userID string) error {
	r.usages[couponID] = append(r.usages[couponID], userID)
	return nil
}

type memOrderRepo struct {
	orders map[string]*order.Order
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id string, from, to order.Status) (bool, error) {
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type memCartRepo struct {
	carts map[string][]cart.Item
}

func (r *memCartRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	return &cart.Cart{UserID: userID, Items: r.carts[userID]}, nil
}

func (r *memCartRepo) AddItem(_ context.Context, userID string, item cart.Item) error {
	for i, existing := range r.carts[userID] {
		if existing.ProductID == item.ProductID {
			r.carts[userID][i].Quantity += item.Quantity
			return nil
		}
	}
	r.carts[userID] = append(r.carts[userID], item)
	return nil
}

func (r *memCartRepo) RemoveItem(_ context.Context, userID, productID string) (bool, error) {
	items := r.carts[userID]
	for i, item := range items {
		if item.ProductID == productID {
			r.carts[userID] = append(items[:i:i], items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *memCartRepo) Clear(_ context.Context, userID string) error {
	delete(r.carts, userID)
	return nil
}

type memTokenRepo struct {
	identities map[string]auth.Identity
}

func (r *memTokenRepo) FindByHash(_ context.Context, hash string) (*auth.Identity, error) {
	ident, ok := r.identities[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return &ident, nil
}

type memTxManager struct {
	repos order.TxRepos
}

func (m *memTxManager) WithinTx(ctx context.Context, fn func(context.Context, order.TxRepos) error) error {
	return fn(ctx, m.repos)
}

type memCampaignRepo struct {
	campaigns []campaign.Campaign
}

func (r *memCampaignRepo) List(context.Context) ([]campaign.Campaign, error) {
	return r.campaigns, nil
}

func (r *memCampaignRepo) GetByID(_ context.Context, id string) (*campaign.Campaign, error) {
	for i := range r.campaigns {
		if r.campaigns[i].ID == id {
			return &r.campaigns[i], nil
		}
	}
	return nil, campaign.ErrNotFound
}

type testServer struct {
	srv      *httptest.Server
	products *memProductRepo
	coupons  *memCouponRepo
	orders   *memOrderRepo
	carts    *memCartRepo
}

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	products := &memProductRepo{products: map[string]product.Product{
		"prod-1": {ID: "prod-1", Name: "Waffle", Price: decimal.NewFromFloat(12.00), Stock: 10, Category: "Breakfast"},
		"prod-2": {ID: "prod-2", Name: "Burger", Price: decimal.NewFromFloat(24.00), Stock: 5, Category: "Lunch"},
		"prod-3": {ID: "prod-3", Name: "Truffle", Price: decimal.NewFromFloat(90.00), Stock: 1, Category: "Dinner"},
	}}
	now := time.Now()
	coupons := &memCouponRepo{
		coupons: map[string]*coupon.Coupon{
			"SAVE10": {
				ID: "c-1", Alias: "SAVE10",
				IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour),
				MinPrice:        decimal.NewFromInt(50),
				PercentDiscount: decimal.NewFromInt(10),
				IsRunning:       true,
			},
			"EXPIRED": {
				ID: "c-2", Alias: "EXPIRED",
				IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
				PercentDiscount: decimal.NewFromInt(10),
				IsRunning:       true,
			},
		},
		usages: map[string][]string{},
	}
	orders := &memOrderRepo{orders: map[string]*order.Order{}}
	carts := &memCartRepo{carts: map[string][]cart.Item{}}

	tx := &memTxManager{repos: order.TxRepos{
		Orders:   orders,
		Products: products,
		Coupons:  coupons,
		Carts:    carts,
	}}
	svc := order.NewService(stock.NewChecker(products), coupon.NewRepoValidator(coupons), orders, carts, tx)

	pepper := []byte("test-pepper")
	hasher := NewSecurityHandler(nil, pepper)
	tokens := &memTokenRepo{identities: map[string]auth.Identity{
		hasher.HashToken(userToken):  {UserID: "user-1", Admin: false},
		hasher.HashToken(adminToken): {UserID: "admin-1", Admin: true},
	}}
	sec := NewSecurityHandler(tokens, pepper)

	h := NewHandler(products, &memCampaignRepo{}, carts, coupon.NewRepoValidator(coupons), svc)

	srv := httptest.NewServer(h.Routes(sec))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, products: products, coupons: coupons, orders: orders, carts: carts}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestListProducts(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	products := decodeBody[[]productJSON](t, resp)
	assert.Len(t, products, 3)
}

func TestGetProductNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/products/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, "product_not_found", body.Error)
}

func TestPlaceOrderRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/orders", "", placeOrderReq{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/orders", "bogus", placeOrderReq{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPlaceOrderWithCoupon(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		Items: []orderItemReq{
			{ProductID: "prod-1", Quantity: 5}, // 60.00
			{ProductID: "prod-2", Quantity: 1}, // 24.00
		},
		CouponID: "SAVE10",
		ShippingInfo: shippingInfoReq{
			Name: "Ada", AddressLine: "1 Main St", City: "Sacramento",
			State: "CA", PostalCode: "94203", Country: "US",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	o := decodeBody[orderJSON](t, resp)
	require.NotNil(t, o.Breakdown)
	// subtotal 84, discount 8.40, shipping 5.99 (tier <100), tax 7.25% of 75.60 = 5.48
	assert.InDelta(t, 84.00, o.Breakdown.Subtotal, 0.001)
	assert.InDelta(t, 8.40, o.Breakdown.Discount, 0.001)
	assert.InDelta(t, 5.99, o.Breakdown.ShippingCost, 0.001)
	assert.InDelta(t, 5.48, o.Breakdown.TaxAmount, 0.001)
	assert.InDelta(t, 87.07, o.Breakdown.Total, 0.001)
	assert.Equal(t, "PENDING", o.Status)
	assert.Equal(t, "user-1", o.UserID)

	// Stock consumed at commit.
	assert.Equal(t, 5, ts.products.products["prod-1"].Stock)
	assert.Equal(t, 4, ts.products.products["prod-2"].Stock)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		Items: []orderItemReq{{ProductID: "prod-3", Quantity: 2}},
		ShippingInfo: shippingInfoReq{
			Name: "Ada", AddressLine: "1 Main St", City: "Austin",
			State: "TX", PostalCode: "73301", Country: "US",
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error   string               `json:"error"`
		Details []stockViolationJSON `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "insufficient_stock", body.Error)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "prod-3", body.Details[0].ProductID)
	assert.Equal(t, 1, body.Details[0].Available)
	assert.Equal(t, 2, body.Details[0].Requested)
}

func TestPlaceOrderMissingCountry(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		Items: []orderItemReq{{ProductID: "prod-1", Quantity: 1}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, "validation_error", body.Error)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	ship := shippingInfoReq{
		Name: "Ada", AddressLine: "1 Main St", City: "Portland",
		State: "OR", PostalCode: "97035", Country: "US",
	}
	resp := ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		Items:        []orderItemReq{{ProductID: "prod-1", Quantity: 1}},
		ShippingInfo: ship,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[orderJSON](t, resp)

	// Owner can fetch it back.
	resp = ts.do(t, http.MethodGet, "/api/orders/"+created.ID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// It shows up in the owner's list.
	resp = ts.do(t, http.MethodGet, "/api/orders", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]orderJSON](t, resp), 1)

	// Non-admin cannot advance the status.
	resp = ts.do(t, http.MethodPatch, "/api/orders/"+created.ID+"/status", userToken, updateStatusReq{Status: "PROCESSING"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Admin can.
	resp = ts.do(t, http.MethodPatch, "/api/orders/"+created.ID+"/status", adminToken, updateStatusReq{Status: "PROCESSING"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PROCESSING", decodeBody[orderJSON](t, resp).Status)

	// Skipping a state is rejected.
	resp = ts.do(t, http.MethodPatch, "/api/orders/"+created.ID+"/status", adminToken, updateStatusReq{Status: "DELIVERED"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_status_transition", decodeBody[errorResponse](t, resp).Error)

	// Cancel no longer possible once processing.
	resp = ts.do(t, http.MethodPost, "/api/orders/"+created.ID+"/cancel", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		Items: []orderItemReq{{ProductID: "prod-2", Quantity: 3}},
		ShippingInfo: shippingInfoReq{
			Name: "Ada", AddressLine: "1 Main St", City: "Berlin",
			PostalCode: "10115", Country: "DE",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[orderJSON](t, resp)
	require.Equal(t, 2, ts.products.products["prod-2"].Stock)

	resp = ts.do(t, http.MethodPost, "/api/orders/"+created.ID+"/cancel", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELED", decodeBody[orderJSON](t, resp).Status)
	assert.Equal(t, 5, ts.products.products["prod-2"].Stock)
}

func TestGetOrderOfAnotherUser(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		Items: []orderItemReq{{ProductID: "prod-1", Quantity: 1}},
		ShippingInfo: shippingInfoReq{
			Name: "Ada", AddressLine: "1 Main St", City: "Austin",
			State: "TX", PostalCode: "73301", Country: "US",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[orderJSON](t, resp)

	// Admin identity is not the owner but may read any order.
	resp = ts.do(t, http.MethodGet, "/api/orders/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplyCoupon(t *testing.T) {
	ts := newTestServer(t)

	t.Run("valid", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/coupons/apply", userToken, applyCouponReq{
			CouponID: "SAVE10", OrderTotal: 120,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[applyCouponResp](t, resp)
		assert.True(t, body.Valid)
		assert.InDelta(t, 12.00, body.Discount, 0.001)
		assert.InDelta(t, 108.00, body.Total, 0.001)
	})

	t.Run("below minimum", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/coupons/apply", userToken, applyCouponReq{
			CouponID: "SAVE10", OrderTotal: 30,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "coupon_below_minimum", decodeBody[errorResponse](t, resp).Error)
	})

	t.Run("expired", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/coupons/apply", userToken, applyCouponReq{
			CouponID: "EXPIRED", OrderTotal: 120,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_coupon", decodeBody[errorResponse](t, resp).Error)
	})

	t.Run("unknown", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/coupons/apply", userToken, applyCouponReq{
			CouponID: "NOPE", OrderTotal: 120,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_coupon", decodeBody[errorResponse](t, resp).Error)
	})

	t.Run("preview does not consume usage", func(t *testing.T) {
		assert.Empty(t, ts.coupons.usages["c-1"])
	})
}

func TestCartFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/cart/items", userToken, addCartItemReq{ProductID: "prod-1", Quantity: 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same product accumulates.
	resp = ts.do(t, http.MethodPost, "/api/cart/items", userToken, addCartItemReq{ProductID: "prod-1", Quantity: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/cart", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decodeBody[cartJSON](t, resp)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	resp = ts.do(t, http.MethodDelete, "/api/cart/items/prod-1", userToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/cart/items/prod-1", userToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddUnknownProductToCart(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/cart/items", userToken, addCartItemReq{ProductID: "nope", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrderFromCart(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/cart/items", userToken, addCartItemReq{ProductID: "prod-2", Quantity: 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		ShippingInfo: shippingInfoReq{
			Name: "Ada", AddressLine: "1 Main St", City: "Austin",
			State: "TX", PostalCode: "73301", Country: "US",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decodeBody[orderJSON](t, resp)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "prod-2", o.Items[0].ProductID)

	// Cart cleared on commit.
	resp = ts.do(t, http.MethodGet, "/api/cart", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[cartJSON](t, resp).Items)
}

func TestOrderEmptyCart(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/orders", userToken, placeOrderReq{
		ShippingInfo: shippingInfoReq{
			Name: "Ada", AddressLine: "1 Main St", City: "Austin",
			State: "TX", PostalCode: "73301", Country: "US",
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", decodeBody[errorResponse](t, resp).Error)
}
