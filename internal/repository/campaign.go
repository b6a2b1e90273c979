package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/campaign"
)

const (
	listCampaignsSQL = `SELECT id, name FROM campaigns ORDER BY name`

	getCampaignByIDSQL = `SELECT id, name FROM campaigns WHERE id = $1`

	getCampaignCouponsSQL = `SELECT c.id, c.alias, c.issued_at, c.expires_at, c.min_price,
		c.percent_discount, c.max_uses_per_user, c.max_uses_total, c.is_running
		FROM coupons c
		JOIN campaign_coupons cc ON cc.coupon_id = c.id
		WHERE cc.campaign_id = $1
		ORDER BY c.alias`

	assignCouponSQL = `INSERT INTO campaign_coupons (campaign_id, coupon_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	createCampaignSQL = `INSERT INTO campaigns (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
)

var _ campaign.Repository = (*CampaignRepository)(nil)

// CampaignRepository implements campaign.Repository backed by PostgreSQL.
type CampaignRepository struct {
	db querier
}

// NewCampaignRepository returns a CampaignRepository that uses the given pool.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{db: pool}
}

// List returns all campaigns with their member coupons.
func (r *CampaignRepository) List(ctx context.Context) ([]campaign.Campaign, error) {
	rows, err := r.db.Query(ctx, listCampaignsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}

	campaigns, err := pgx.CollectRows(rows, scanCampaign)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}

	for i := range campaigns {
		if err := r.loadCoupons(ctx, &campaigns[i]); err != nil {
			return nil, err
		}
	}
	return campaigns, nil
}

// GetByID loads one campaign with its member coupons.
// Returns campaign.ErrNotFound when no matching campaign exists.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*campaign.Campaign, error) {
	rows, err := r.db.Query(ctx, getCampaignByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting campaign %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCampaign)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, campaign.ErrNotFound
		}
		return nil, fmt.Errorf("getting campaign %q: %w", id, err)
	}

	if err := r.loadCoupons(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a campaign and assigns the given coupons to it.
// Used by seeding tools.
func (r *CampaignRepository) Create(ctx context.Context, c *campaign.Campaign) error {
	if _, err := r.db.Exec(ctx, createCampaignSQL, c.ID, c.Name); err != nil {
		return fmt.Errorf("creating campaign %q: %w", c.ID, err)
	}
	for _, cpn := range c.Coupons {
		if _, err := r.db.Exec(ctx, assignCouponSQL, c.ID, cpn.ID); err != nil {
			return fmt.Errorf("assigning coupon %q to campaign %q: %w", cpn.ID, c.ID, err)
		}
	}
	return nil
}

func (r *CampaignRepository) loadCoupons(ctx context.Context, c *campaign.Campaign) error {
	rows, err := r.db.Query(ctx, getCampaignCouponsSQL, c.ID)
	if err != nil {
		return fmt.Errorf("loading coupons of campaign %q: %w", c.ID, err)
	}

	c.Coupons, err = pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return fmt.Errorf("loading coupons of campaign %q: %w", c.ID, err)
	}
	return nil
}

func scanCampaign(row pgx.CollectableRow) (campaign.Campaign, error) {
	var c campaign.Campaign
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}
