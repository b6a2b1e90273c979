package api

import (
	"net/http"
	"time"

	"github.com/xenking/storefront/internal/domain/campaign"
	"github.com/xenking/storefront/internal/domain/product"
)

type productJSON struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Category string  `json:"category"`
}

func toProductJSON(p product.Product) productJSON {
	return productJSON{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.InexactFloat64(),
		Stock:    p.Stock,
		Category: p.Category,
	}
}

// listProducts handles GET /api/products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}

	out := make([]productJSON, len(products))
	for i, p := range products {
		out[i] = toProductJSON(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductJSON(*p))
}

type campaignCouponJSON struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	PercentDiscount float64   `json:"percentDiscount"`
	MinPrice        float64   `json:"minPrice"`
	IssuedAt        time.Time `json:"issuedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	Active          bool      `json:"active"`
}

type campaignJSON struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	StartDate time.Time            `json:"startDate"`
	EndDate   time.Time            `json:"endDate"`
	Coupons   []campaignCouponJSON `json:"coupons"`
}

func toCampaignJSON(c campaign.Campaign) campaignJSON {
	coupons := make([]campaignCouponJSON, len(c.Coupons))
	for i, cp := range c.Coupons {
		coupons[i] = campaignCouponJSON{
			ID:              cp.ID,
			Code:            cp.Alias,
			PercentDiscount: cp.PercentDiscount.InexactFloat64(),
			MinPrice:        cp.MinPrice.InexactFloat64(),
			IssuedAt:        cp.IssuedAt,
			ExpiresAt:       cp.ExpiresAt,
			Active:          cp.IsRunning,
		}
	}
	return campaignJSON{
		ID:        c.ID,
		Name:      c.Name,
		StartDate: c.StartDate(),
		EndDate:   c.EndDate(),
		Coupons:   coupons,
	}
}

// listCampaigns handles GET /api/campaigns.
func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.List(r.Context())
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}

	out := make([]campaignJSON, len(campaigns))
	for i, c := range campaigns {
		out[i] = toCampaignJSON(c)
	}
	writeJSON(w, http.StatusOK, out)
}

// getCampaign handles GET /api/campaigns/{id}.
func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignJSON(*c))
}
