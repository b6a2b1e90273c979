// Package api exposes the storefront checkout core over HTTP JSON. Handlers
// decode requests, delegate to the domain services, and map domain errors to
// stable error codes.
package api

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/campaign"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// Handler holds the domain dependencies for all API endpoints.
type Handler struct {
	products  product.Repository
	campaigns campaign.Repository
	carts     cart.Repository
	coupons   coupon.Validator
	orders    *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	campaigns campaign.Repository,
	carts cart.Repository,
	coupons coupon.Validator,
	orders *order.Service,
) *Handler {
	return &Handler{
		products:  products,
		campaigns: campaigns,
		carts:     carts,
		coupons:   coupons,
		orders:    orders,
	}
}

// Routes registers every API endpoint on a fresh mux. Catalog and campaign
// reads are public; everything touching a user's cart, orders, or coupons
// requires an authenticated identity.
func (h *Handler) Routes(sec *SecurityHandler) *http.ServeMux {
	mux := http.NewServeMux()

	authed := func(fn http.HandlerFunc) http.Handler {
		return sec.Authenticate(fn)
	}

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("GET /api/campaigns", h.listCampaigns)
	mux.HandleFunc("GET /api/campaigns/{id}", h.getCampaign)

	mux.Handle("POST /api/orders", authed(h.placeOrder))
	mux.Handle("GET /api/orders", authed(h.listOrders))
	mux.Handle("GET /api/orders/{id}", authed(h.getOrder))
	mux.Handle("POST /api/orders/{id}/cancel", authed(h.cancelOrder))
	mux.Handle("PATCH /api/orders/{id}/status", authed(h.updateOrderStatus))

	mux.Handle("POST /api/coupons/apply", authed(h.applyCoupon))

	mux.Handle("GET /api/cart", authed(h.getCart))
	mux.Handle("POST /api/cart/items", authed(h.addCartItem))
	mux.Handle("DELETE /api/cart/items/{productID}", authed(h.removeCartItem))

	return mux
}
