package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/xenking/storefront/internal/domain/cart"
)

type cartItemJSON struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

type cartJSON struct {
	UserID string         `json:"userId"`
	Items  []cartItemJSON `json:"items"`
}

func toCartJSON(c *cart.Cart) cartJSON {
	items := make([]cartItemJSON, len(c.Items))
	for i, item := range c.Items {
		items[i] = cartItemJSON{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
	}
	return cartJSON{UserID: c.UserID, Items: items}
}

// getCart handles GET /api/cart.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	c, err := h.carts.Get(r.Context(), ident.UserID)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartJSON(c))
}

type addCartItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// addCartItem handles POST /api/cart/items. Adding an already carted product
// accumulates its quantity.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	var req addCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.ProductID == "" {
		badRequest(w, "productId is required")
		return
	}
	if req.Quantity <= 0 {
		badRequest(w, "quantity must be positive")
		return
	}

	// The product must exist before it can be carted.
	if _, err := h.products.GetByID(r.Context(), req.ProductID); err != nil {
		writeDomainErr(w, r, err)
		return
	}

	item := cart.Item{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		AddedAt:   time.Now(),
	}
	if err := h.carts.AddItem(r.Context(), ident.UserID, item); err != nil {
		writeDomainErr(w, r, err)
		return
	}

	c, err := h.carts.Get(r.Context(), ident.UserID)
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartJSON(c))
}

// removeCartItem handles DELETE /api/cart/items/{productID}.
func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	removed, err := h.carts.RemoveItem(r.Context(), ident.UserID, r.PathValue("productID"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	if !removed {
		writeErr(w, http.StatusNotFound, "cart_item_not_found", "product is not in the cart", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
