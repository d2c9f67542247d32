package xendit

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultUSDRate is the fixed illustrative conversion rate, 1 USD = 56 PHP.
var DefaultUSDRate = decimal.NewFromInt(56)

// ConvertAmount turns a USD grand total into the PHP amount sent to Xendit,
// rounded to cents.
func ConvertAmount(usd, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		rate = DefaultUSDRate
	}
	return usd.Mul(rate).Round(2)
}

// FormatAmount renders a PHP amount for display, e.g. ₱1,234.56.
func FormatAmount(php decimal.Decimal) string {
	sign := ""
	if php.IsNegative() {
		sign = "-"
		php = php.Neg()
	}
	fixed := php.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "₱" + b.String() + "." + frac
}
