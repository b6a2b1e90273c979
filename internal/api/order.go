package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/stock"
)

// orderItemReq is one requested line in an order placement.
type orderItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// shippingInfoReq is the destination address supplied by the client.
type shippingInfoReq struct {
	Name        string `json:"name"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
}

// placeOrderReq is the order creation payload. Items may be omitted to
// order the persisted cart. Total is advisory only.
type placeOrderReq struct {
	Items        []orderItemReq  `json:"items"`
	ShippingInfo shippingInfoReq `json:"shippingInfo"`
	PaymentInfo  json.RawMessage `json:"paymentInfo"`
	CouponID     string          `json:"couponId"`
	Total        *float64        `json:"total"`
}

type orderItemJSON struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type shippingInfoJSON struct {
	Name         string  `json:"name"`
	AddressLine  string  `json:"addressLine"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postalCode"`
	Country      string  `json:"country"`
	ShippingCost float64 `json:"shippingCost"`
	TaxAmount    float64 `json:"taxAmount"`
}

type breakdownJSON struct {
	Subtotal     float64 `json:"subtotal"`
	Discount     float64 `json:"discount"`
	ShippingCost float64 `json:"shippingCost"`
	TaxAmount    float64 `json:"taxAmount"`
	Total        float64 `json:"total"`
}

type orderJSON struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Items        []orderItemJSON  `json:"items"`
	CouponID     *string          `json:"couponId"`
	Status       string           `json:"status"`
	Total        float64          `json:"total"`
	ShippingInfo shippingInfoJSON `json:"shippingInfo"`
	PaymentInfo  json.RawMessage  `json:"paymentInfo,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	Breakdown    *breakdownJSON   `json:"breakdown,omitempty"`
}

func toOrderJSON(o *order.Order) orderJSON {
	items := make([]orderItemJSON, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemJSON{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.InexactFloat64(),
			Quantity:  item.Quantity,
		}
	}

	return orderJSON{
		ID:       o.ID,
		UserID:   o.UserID,
		Items:    items,
		CouponID: o.CouponID,
		Status:   string(o.Status),
		Total:    o.Total.InexactFloat64(),
		ShippingInfo: shippingInfoJSON{
			Name:         o.ShippingInfo.Name,
			AddressLine:  o.ShippingInfo.AddressLine,
			City:         o.ShippingInfo.City,
			State:        o.ShippingInfo.State,
			PostalCode:   o.ShippingInfo.PostalCode,
			Country:      o.ShippingInfo.Country,
			ShippingCost: o.ShippingInfo.ShippingCost.InexactFloat64(),
			TaxAmount:    o.ShippingInfo.TaxAmount.InexactFloat64(),
		},
		PaymentInfo: o.PaymentInfo,
		CreatedAt:   o.CreatedAt,
	}
}

// placeOrder handles POST /api/orders.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized", nil)
		return
	}

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.ShippingInfo.Country == "" {
		badRequest(w, "shippingInfo.country is required")
		return
	}

	items := make([]stock.RequestedItem, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID == "" {
			badRequest(w, "items[].productId is required")
			return
		}
		items[i] = stock.RequestedItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	var clientTotal *decimal.Decimal
	if req.Total != nil {
		t := decimal.NewFromFloat(*req.Total)
		clientTotal = &t
	}

	res, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:      ident.UserID,
		Items:       items,
		CouponAlias: req.CouponID,
		Shipping: order.ShippingInfo{
			Name:        req.ShippingInfo.Name,
			AddressLine: req.ShippingInfo.AddressLine,
			City:        req.ShippingInfo.City,
			State:       req.ShippingInfo.State,
			PostalCode:  req.ShippingInfo.PostalCode,
			Country:     req.ShippingInfo.Country,
		},
		PaymentInfo: req.PaymentInfo,
		ClientTotal: clientTotal,
	})
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}

	resp := toOrderJSON(res.Order)
	resp.Breakdown = &breakdownJSON{
		Subtotal:     res.Breakdown.Subtotal.InexactFloat64(),
		Discount:     res.Breakdown.Discount.InexactFloat64(),
		ShippingCost: res.Breakdown.ShippingCost.InexactFloat64(),
		TaxAmount:    res.Breakdown.TaxAmount.InexactFloat64(),
		Total:        res.Breakdown.Total.InexactFloat64(),
	}
	writeJSON(w, http.StatusCreated, resp)
}

// getOrder handles GET /api/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"), ident)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

// listOrders handles GET /api/orders.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	orders, err := h.orders.ListOrders(r.Context(), ident)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}

	out := make([]orderJSON, len(orders))
	for i := range orders {
		out[i] = toOrderJSON(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// cancelOrder handles POST /api/orders/{id}/cancel.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	o, err := h.orders.CancelOrder(r.Context(), r.PathValue("id"), ident)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

// updateStatusReq is the admin status transition payload.
type updateStatusReq struct {
	Status string `json:"status"`
}

// updateOrderStatus handles PATCH /api/orders/{id}/status. Admin only.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())
	if !ident.Admin {
		writeErr(w, http.StatusForbidden, "forbidden", "admin access required", nil)
		return
	}

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	status, err := order.ToStatus(req.Status)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}
