package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, alias, issued_at, expires_at, min_price, percent_discount,
		max_uses_per_user, max_uses_total, is_running`

	findCouponByAliasSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(alias) = UPPER($1)`

	// FOR UPDATE serializes concurrent redemptions of the same coupon: the
	// cap re-check and the ledger append happen while the row is held.
	lockCouponByAliasSQL = findCouponByAliasSQL + ` FOR UPDATE`

	couponUsageStatsSQL = `SELECT
		COUNT(*) FILTER (WHERE user_id = $2),
		COUNT(DISTINCT user_id)
		FROM coupon_usages WHERE coupon_id = $1`

	appendCouponUsageSQL = `INSERT INTO coupon_usages (coupon_id, user_id) VALUES ($1, $2)`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (alias) DO NOTHING`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL. The
// usage ledger lives in coupon_usages, one row per redemption, preserving
// the append-only non-deduplicated semantics the caps are defined over.
type CouponRepository struct {
	db querier
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: pool}
}

// FindByAlias looks up a coupon by its alias (case-insensitive).
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByAlias(ctx context.Context, alias string) (*coupon.Coupon, error) {
	return r.findByAlias(ctx, alias, findCouponByAliasSQL)
}

// LockByAlias behaves like FindByAlias but acquires a row lock. Only valid
// inside a transaction.
func (r *CouponRepository) LockByAlias(ctx context.Context, alias string) (*coupon.Coupon, error) {
	return r.findByAlias(ctx, alias, lockCouponByAliasSQL)
}

func (r *CouponRepository) findByAlias(ctx context.Context, alias, query string) (*coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, query, alias)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by alias %q: %w", alias, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by alias %q: %w", alias, err)
	}
	return &c, nil
}

// UsageStats summarizes the redemption ledger for one coupon as seen by one
// user: that user's redemption count and the number of distinct users.
func (r *CouponRepository) UsageStats(ctx context.Context, couponID, userID string) (coupon.UsageStats, error) {
	var stats coupon.UsageStats
	err := r.db.QueryRow(ctx, couponUsageStatsSQL, couponID, userID).
		Scan(&stats.UserRedemptions, &stats.DistinctUsers)
	if err != nil {
		return coupon.UsageStats{}, fmt.Errorf("loading usage stats for coupon %q: %w", couponID, err)
	}
	stats.UsedByUser = stats.UserRedemptions > 0
	return stats, nil
}

// AppendUsage records one redemption by the given user.
func (r *CouponRepository) AppendUsage(ctx context.Context, couponID, userID string) error {
	if _, err := r.db.Exec(ctx, appendCouponUsageSQL, couponID, userID); err != nil {
		return fmt.Errorf("appending usage for coupon %q: %w", couponID, err)
	}
	return nil
}

// Create inserts a new coupon, skipping aliases that already exist.
// Used by seeding and ingest tools.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.Exec(ctx, createCouponSQL,
		c.ID, c.Alias, c.IssuedAt, c.ExpiresAt, c.MinPrice, c.PercentDiscount,
		c.MaxUsesPerUser, c.MaxUsesTotal, c.IsRunning,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Alias, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Alias, &c.IssuedAt, &c.ExpiresAt, &c.MinPrice, &c.PercentDiscount,
		&c.MaxUsesPerUser, &c.MaxUsesTotal, &c.IsRunning,
	)
	return c, err
}
