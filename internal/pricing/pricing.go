// Package pricing computes shipping and tax for an order. All functions are
// pure: given the same subtotal and destination they always return the same
// amounts, rounded to 2 decimal places.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Destination describes where an order ships to. Country is an ISO-3166
// alpha-2 code; State is only meaningful for US destinations.
type Destination struct {
	Country string
	State   string
}

// IsDomestic reports whether the destination is in the US.
func (d Destination) IsDomestic() bool {
	return strings.EqualFold(d.Country, "US")
}

var (
	shippingTierMid  = decimal.NewFromInt(50)
	shippingTierFree = decimal.NewFromInt(100)

	shippingLow = decimal.RequireFromString("9.99")
	shippingMid = decimal.RequireFromString("5.99")

	internationalSurcharge = decimal.NewFromInt(15)

	// defaultTaxRate applies to US destinations with a missing or unknown
	// state code.
	defaultTaxRate = decimal.RequireFromString("0.06")
)

// stateTaxRates holds flat sales tax rates for the 50 states plus DC.
var stateTaxRates = map[string]decimal.Decimal{
	"AL": decimal.RequireFromString("0.04"),
	"AK": decimal.Zero,
	"AZ": decimal.RequireFromString("0.056"),
	"AR": decimal.RequireFromString("0.065"),
	"CA": decimal.RequireFromString("0.0725"),
	"CO": decimal.RequireFromString("0.029"),
	"CT": decimal.RequireFromString("0.0635"),
	"DE": decimal.Zero,
	"DC": decimal.RequireFromString("0.06"),
	"FL": decimal.RequireFromString("0.06"),
	"GA": decimal.RequireFromString("0.04"),
	"HI": decimal.RequireFromString("0.04"),
	"ID": decimal.RequireFromString("0.06"),
	"IL": decimal.RequireFromString("0.0625"),
	"IN": decimal.RequireFromString("0.07"),
	"IA": decimal.RequireFromString("0.06"),
	"KS": decimal.RequireFromString("0.065"),
	"KY": decimal.RequireFromString("0.06"),
	"LA": decimal.RequireFromString("0.0445"),
	"ME": decimal.RequireFromString("0.055"),
	"MD": decimal.RequireFromString("0.06"),
	"MA": decimal.RequireFromString("0.0625"),
	"MI": decimal.RequireFromString("0.06"),
	"MN": decimal.RequireFromString("0.06875"),
	"MS": decimal.RequireFromString("0.07"),
	"MO": decimal.RequireFromString("0.04225"),
	"MT": decimal.Zero,
	"NE": decimal.RequireFromString("0.055"),
	"NV": decimal.RequireFromString("0.0685"),
	"NH": decimal.Zero,
	"NJ": decimal.RequireFromString("0.06625"),
	"NM": decimal.RequireFromString("0.05125"),
	"NY": decimal.RequireFromString("0.04"),
	"NC": decimal.RequireFromString("0.0475"),
	"ND": decimal.RequireFromString("0.05"),
	"OH": decimal.RequireFromString("0.0575"),
	"OK": decimal.RequireFromString("0.045"),
	"OR": decimal.Zero,
	"PA": decimal.RequireFromString("0.06"),
	"RI": decimal.RequireFromString("0.07"),
	"SC": decimal.RequireFromString("0.06"),
	"SD": decimal.RequireFromString("0.045"),
	"TN": decimal.RequireFromString("0.07"),
	"TX": decimal.RequireFromString("0.0625"),
	"UT": decimal.RequireFromString("0.061"),
	"VT": decimal.RequireFromString("0.06"),
	"VA": decimal.RequireFromString("0.053"),
	"WA": decimal.RequireFromString("0.065"),
	"WV": decimal.RequireFromString("0.06"),
	"WI": decimal.RequireFromString("0.05"),
	"WY": decimal.RequireFromString("0.04"),
}

// ShippingCost returns the shipping fee for the given pre-discount subtotal.
// Tiers: below 50 costs 9.99, below 100 costs 5.99, at or above 100 ships
// free. Non-US destinations pay a flat 15 surcharge on top of the tier fee.
func ShippingCost(subtotal decimal.Decimal, dest Destination) decimal.Decimal {
	var fee decimal.Decimal
	switch {
	case subtotal.LessThan(shippingTierMid):
		fee = shippingLow
	case subtotal.LessThan(shippingTierFree):
		fee = shippingMid
	default:
		fee = decimal.Zero
	}

	if !dest.IsDomestic() {
		fee = fee.Add(internationalSurcharge)
	}

	return fee.Round(2)
}

// TaxAmount returns the sales tax on the post-discount subtotal. Non-US
// destinations are not taxed. Unknown or missing state codes fall back to
// the default rate.
func TaxAmount(postDiscountSubtotal decimal.Decimal, dest Destination) decimal.Decimal {
	if !dest.IsDomestic() {
		return decimal.Zero
	}

	rate, ok := stateTaxRates[strings.ToUpper(dest.State)]
	if !ok {
		rate = defaultTaxRate
	}

	return postDiscountSubtotal.Mul(rate).Round(2)
}
