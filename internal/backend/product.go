package backend

import (
	"math"
	"strconv"
	"strings"
)

// priceOnRequest is shown when the backend has no price for a product
const priceOnRequest = "Lien he"

// Discount returns the discount in whole percent. It is derived from the
// original price when both prices are known, otherwise the backend's own
// discount_percent is used.
func (p Product) Discount() int {
	if p.OriginalPrice > 0 && p.Price > 0 {
		return int(math.Round((1 - p.Price/p.OriginalPrice) * 100))
	}
	return int(math.Round(p.DiscountPercent))
}

// FormatPrice renders a price in dong with dot-grouped thousands
func FormatPrice(price float64) string {
	if price <= 0 {
		return priceOnRequest
	}

	digits := strconv.FormatInt(int64(math.Round(price)), 10)

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteString(" VND")
	return b.String()
}
