package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for the coupon eligibility classifications. Each maps to
// exactly one rejection reason so callers can produce per-reason feedback.
var (
	// ErrNotFound is returned when no coupon exists for the given alias.
	ErrNotFound = errors.New("invalid coupon code")
	// ErrInactive is returned when the coupon's campaign toggle is off.
	ErrInactive = errors.New("coupon is not active")
	// ErrNotYetValid is returned before the coupon's issue date.
	ErrNotYetValid = errors.New("coupon is not valid yet")
	// ErrExpired is returned after the coupon's expiry date.
	ErrExpired = errors.New("coupon has expired")
	// ErrPerUserLimitReached is returned when the requesting user has hit
	// their redemption cap.
	ErrPerUserLimitReached = errors.New("usage limit reached for this user")
	// ErrGlobalLimitReached is returned when the distinct-user cap is
	// exhausted by other users.
	ErrGlobalLimitReached = errors.New("coupon usage limit reached")
)

// BelowMinimumError is returned when the order subtotal does not reach the
// coupon's minimum. It carries the minimum so clients can display it.
type BelowMinimumError struct {
	MinPrice decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("order total is below the coupon minimum of %s", e.MinPrice.StringFixed(2))
}

// Coupon is a discount code with a validity window and usage caps.
// Invariant: IssuedAt <= ExpiresAt.
type Coupon struct {
	ID              string
	Alias           string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	MinPrice        decimal.Decimal
	PercentDiscount decimal.Decimal
	MaxUsesPerUser  int
	MaxUsesTotal    int
	IsRunning       bool
}

// UsageStats summarizes the redemption ledger of one coupon as seen by one
// user. The ledger is append-only and not deduplicated: a user appears once
// per redemption.
type UsageStats struct {
	// UserRedemptions is how many times the requesting user appears in the ledger.
	UserRedemptions int
	// DistinctUsers is the number of unique users in the ledger.
	DistinctUsers int
	// UsedByUser reports whether the requesting user appears at all.
	UsedByUser bool
}

// Repository provides coupon lookup and usage bookkeeping. FindByAlias and
// UsageStats are plain reads; AppendUsage must only be called from within
// the order transaction, after the caps have been re-checked under lock.
type Repository interface {
	FindByAlias(ctx context.Context, alias string) (*Coupon, error)
	UsageStats(ctx context.Context, couponID, userID string) (UsageStats, error)

	// LockByAlias loads the coupon with a row lock, serializing concurrent
	// redemptions of the same coupon until the transaction ends.
	LockByAlias(ctx context.Context, alias string) (*Coupon, error)
	AppendUsage(ctx context.Context, couponID, userID string) error
}

var hundred = decimal.NewFromInt(100)

// Check classifies the coupon's applicability for the given user and order
// subtotal at the given instant. It returns nil when the coupon is valid,
// or the error for the first failing classification, evaluated in order:
// inactive, not yet valid, expired, below minimum, per-user cap, global cap.
//
// The global cap counts distinct users, not redemptions: a user already on
// the ledger may keep redeeming up to their per-user cap even when the
// distinct-user cap is full.
func Check(c *Coupon, stats UsageStats, subtotal decimal.Decimal, now time.Time) error {
	if !c.IsRunning {
		return ErrInactive
	}
	if now.Before(c.IssuedAt) {
		return ErrNotYetValid
	}
	if now.After(c.ExpiresAt) {
		return ErrExpired
	}
	if subtotal.LessThan(c.MinPrice) {
		return &BelowMinimumError{MinPrice: c.MinPrice}
	}
	if c.MaxUsesPerUser > 0 && stats.UserRedemptions >= c.MaxUsesPerUser {
		return ErrPerUserLimitReached
	}
	if c.MaxUsesTotal > 0 && stats.DistinctUsers >= c.MaxUsesTotal && !stats.UsedByUser {
		return ErrGlobalLimitReached
	}
	return nil
}

// DiscountFor returns the discount the coupon grants on the given subtotal:
// subtotal * percent / 100, rounded half-up to 2 decimal places.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(c.PercentDiscount).Div(hundred).Round(2)
}
