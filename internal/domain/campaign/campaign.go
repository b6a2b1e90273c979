// Package campaign groups coupons for display. Campaigns are read-only from
// the checkout core's perspective: assignment happens in external tooling.
package campaign

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/samber/lo"

	"github.com/xenking/storefront/internal/domain/coupon"
)

// ErrNotFound is returned when a requested campaign does not exist.
var ErrNotFound = errors.New("campaign not found")

// Campaign is a named grouping of coupons sharing a derived date range.
type Campaign struct {
	ID      string
	Name    string
	Coupons []coupon.Coupon
}

// StartDate is the earliest issue date across member coupons.
// The zero time is returned for a campaign with no coupons.
func (c *Campaign) StartDate() time.Time {
	if len(c.Coupons) == 0 {
		return time.Time{}
	}
	earliest := lo.MinBy(c.Coupons, func(a, b coupon.Coupon) bool {
		return a.IssuedAt.Before(b.IssuedAt)
	})
	return earliest.IssuedAt
}

// EndDate is the latest expiry date across member coupons.
func (c *Campaign) EndDate() time.Time {
	if len(c.Coupons) == 0 {
		return time.Time{}
	}
	latest := lo.MaxBy(c.Coupons, func(a, b coupon.Coupon) bool {
		return a.ExpiresAt.After(b.ExpiresAt)
	})
	return latest.ExpiresAt
}

// Repository defines read operations for campaigns.
type Repository interface {
	List(ctx context.Context) ([]Campaign, error)
	GetByID(ctx context.Context, id string) (*Campaign, error)
}
