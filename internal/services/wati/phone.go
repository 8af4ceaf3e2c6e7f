package wati

import (
	"strings"
	"unicode"
)

// DefaultCountryCode is applied to bare 10-digit numbers.
const DefaultCountryCode = "91"

// FormatDestination normalises a phone number into "+<digits>". A number of
// exactly ten digits is treated as national and gets countryCode prepended.
// Only the shape is checked, not whether the number can be dialled.
// A ten-digit number already starting with the country code still gets it
// prepended: 9123456789 becomes +919123456789.
func FormatDestination(number, countryCode string) string {
	var b strings.Builder
	for _, r := range number {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		if countryCode == "" {
			countryCode = DefaultCountryCode
		}
		digits = strings.TrimPrefix(countryCode, "+") + digits
	}
	return "+" + digits
}
