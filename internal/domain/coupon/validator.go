package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Result holds a successful validation: the resolved coupon and the discount
// it grants on the checked subtotal.
type Result struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Validator resolves a coupon by alias and checks its eligibility for a
// given user and order subtotal.
type Validator interface {
	Validate(ctx context.Context, alias, userID string, subtotal decimal.Decimal) (*Result, error)
}

// RepoValidator implements Validator by loading the coupon and its usage
// ledger from a Repository. It does not record usage: redemptions are
// appended by the order service inside the commit transaction, where the
// caps are re-checked under a row lock. Splitting validation and recording
// across separate writes would let concurrent requests redeem past the cap.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// WithClock replaces the validator's time source and returns the validator.
// Tests use it to pin validation to a fixed instant.
func (v *RepoValidator) WithClock(now func() time.Time) *RepoValidator {
	v.now = now
	return v
}

// Validate looks up the coupon for the alias, classifies its applicability
// for the user and subtotal, and computes the discount on success.
func (v *RepoValidator) Validate(ctx context.Context, alias, userID string, subtotal decimal.Decimal) (*Result, error) {
	c, err := v.repo.FindByAlias(ctx, alias)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	stats, err := v.repo.UsageStats(ctx, c.ID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load coupon usage")
	}

	if err := Check(c, stats, subtotal, v.now()); err != nil {
		return nil, err
	}

	return &Result{
		Coupon:   c,
		Discount: c.DiscountFor(subtotal),
	}, nil
}
