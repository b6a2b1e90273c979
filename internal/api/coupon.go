package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
)

// applyCouponReq asks whether a coupon applies to an order of the given
// subtotal, without placing the order.
type applyCouponReq struct {
	CouponID   string  `json:"couponId"`
	OrderTotal float64 `json:"orderTotal"`
}

type applyCouponResp struct {
	Valid           bool    `json:"valid"`
	CouponID        string  `json:"couponId"`
	PercentDiscount float64 `json:"percentDiscount"`
	Discount        float64 `json:"discount"`
	Total           float64 `json:"total"`
}

// applyCoupon handles POST /api/coupons/apply. It previews a coupon against
// a subtotal; nothing is recorded on the usage ledger.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	var req applyCouponReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CouponID == "" {
		badRequest(w, "couponId is required")
		return
	}
	if req.OrderTotal < 0 {
		badRequest(w, "orderTotal must not be negative")
		return
	}

	subtotal := decimal.NewFromFloat(req.OrderTotal)
	res, err := h.coupons.Validate(r.Context(), req.CouponID, ident.UserID, subtotal)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, applyCouponResp{
		Valid:           true,
		CouponID:        res.Coupon.Alias,
		PercentDiscount: res.Coupon.PercentDiscount.InexactFloat64(),
		Discount:        res.Discount.InexactFloat64(),
		Total:           subtotal.Sub(res.Discount).InexactFloat64(),
	})
}
