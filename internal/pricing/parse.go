// Package pricing turns scraped price text into numbers and applies the markup policy.
package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingDecimal matches the longest decimal prefix left after stripping,
// so "10.008.00" (a regular and a sale price glued together) reads as 10.008
var leadingDecimal = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)

// ParsePrice converts raw price text ("$12.50", "From 9.99 USD") into a value.
// The second return is false when the text holds no positive number.
func ParsePrice(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)

	match := leadingDecimal.FindString(cleaned)
	if match == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if value <= 0 {
		return 0, false
	}
	return value, true
}
