// Package card validates client-supplied card data before any network call.
// Everything here is pure: no I/O, no clock access beyond the injected now,
// and no visibility of amounts or identifiers. The same checks run again
// server-side before an intent is opened; the client-side pass is a UX
// optimization, not a security boundary.
package card

import (
	"strconv"
	"strings"
	"time"
)

// Brand identifies a card network detected from the number prefix.
type Brand string

const (
	BrandVisa       Brand = "visa"
	BrandMastercard Brand = "mastercard"
	BrandAmex       Brand = "amex"
	BrandDiscover   Brand = "discover"
	BrandJCB        Brand = "jcb"
	BrandDiners     Brand = "diners"
	BrandUnknown    Brand = "unknown"
)

const (
	minPANLength = 12
	maxPANLength = 19
)

// NumberResult is the outcome of validating a card number.
type NumberResult struct {
	Valid    bool
	Brand    Brand
	LastFour string
}

// ValidateNumber strips non-digits, enforces the 12-19 digit length window,
// runs the Luhn checksum and detects the brand against the given table. An
// unknown prefix is not an error; the number is still Luhn-checked.
func ValidateNumber(raw string, table *BrandTable) NumberResult {
	digits := normalize(raw)
	if len(digits) < minPANLength || len(digits) > maxPANLength {
		return NumberResult{Brand: table.Detect(digits)}
	}
	res := NumberResult{
		Valid:    luhn(digits),
		Brand:    table.Detect(digits),
		LastFour: digits[len(digits)-4:],
	}
	return res
}

// ValidateExpiry reports whether month/year is the current calendar month or
// later. Two-digit years expand into the current century; a card expires at
// the end of its stated month.
func ValidateExpiry(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	if year < 100 {
		year += (now.Year() / 100) * 100
	}
	if year < now.Year() {
		return false
	}
	if year == now.Year() && time.Month(month) < now.Month() {
		return false
	}
	return true
}

// ValidateCVV enforces exactly 4 digits for amex and exactly 3 for every
// other brand, including unknown ones.
func ValidateCVV(value string, brand Brand) bool {
	want := 3
	if brand == BrandAmex {
		want = 4
	}
	if len(value) != want {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhn doubles every second digit from the right, subtracts 9 when the
// doubled value exceeds 9, and accepts when the sum is divisible by 10.
func luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// BrandRule maps number prefixes to a brand. Prefixes match literally;
// Ranges match when the leading digits of the number, taken at the range's
// width, fall inclusively between From and To.
type BrandRule struct {
	Brand    Brand       `json:"brand"`
	Prefixes []string    `json:"prefixes,omitempty"`
	Ranges   []PrefixRange `json:"ranges,omitempty"`
}

// PrefixRange is an inclusive numeric prefix interval, e.g. 2221-2720.
type PrefixRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// BrandTable is an ordered rule set; the first matching rule wins.
type BrandTable struct {
	rules []BrandRule
}

// NewBrandTable builds a table from explicit rules.
func NewBrandTable(rules []BrandRule) *BrandTable {
	return &BrandTable{rules: rules}
}

// DefaultBrandTable covers the majors. Deployments with regional brands load
// their own table from configuration instead.
func DefaultBrandTable() *BrandTable {
	return NewBrandTable([]BrandRule{
		{Brand: BrandMastercard, Prefixes: []string{"51", "52", "53", "54", "55"}, Ranges: []PrefixRange{{From: 2221, To: 2720}}},
		{Brand: BrandAmex, Prefixes: []string{"34", "37"}},
		{Brand: BrandDiscover, Prefixes: []string{"6011", "65"}, Ranges: []PrefixRange{{From: 644, To: 649}}},
		{Brand: BrandJCB, Ranges: []PrefixRange{{From: 3528, To: 3589}}},
		{Brand: BrandDiners, Prefixes: []string{"36", "38"}, Ranges: []PrefixRange{{From: 300, To: 305}}},
		{Brand: BrandVisa, Prefixes: []string{"4"}},
	})
}

// Detect returns the brand for the given digit string, or BrandUnknown.
func (t *BrandTable) Detect(digits string) Brand {
	if t == nil || digits == "" {
		return BrandUnknown
	}
	for _, rule := range t.rules {
		for _, p := range rule.Prefixes {
			if strings.HasPrefix(digits, p) {
				return rule.Brand
			}
		}
		for _, rng := range rule.Ranges {
			if matchRange(digits, rng) {
				return rule.Brand
			}
		}
	}
	return BrandUnknown
}

func matchRange(digits string, rng PrefixRange) bool {
	width := len(strconv.Itoa(rng.From))
	if len(digits) < width {
		return false
	}
	lead, err := strconv.Atoi(digits[:width])
	if err != nil {
		return false
	}
	return lead >= rng.From && lead <= rng.To
}
