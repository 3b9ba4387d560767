package domain

import (
	"fmt"
	"strings"
)

// Brand is a campaign brand code such as "MLB".
type Brand string

// DefaultBrands is the brand list used when configuration does not name one.
// Order matters: it is the assignment order and the display order.
var DefaultBrands = []Brand{"MLB", "DX", "DV", "ST"}

// QuotaColumn returns the roster column holding the contracted count for the brand.
func (b Brand) QuotaColumn() string {
	return strings.ToLower(string(b)) + "_qty"
}

func (b Brand) String() string { return string(b) }

// ParseBrand matches s case-insensitively against the known brands.
func ParseBrand(s string, known []Brand) (Brand, error) {
	s = strings.TrimSpace(s)
	for _, b := range known {
		if strings.EqualFold(string(b), s) {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBrand, s)
}

// ParseBrandList splits a comma separated cell ("MLB, DX") into known brands.
func ParseBrandList(s string, known []Brand) ([]Brand, error) {
	var out []Brand
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b, err := ParseBrand(part, known)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty brand", ErrUnknownBrand)
	}
	return out, nil
}

// BrandIndex returns the position of b in brands, or -1.
func BrandIndex(brands []Brand, b Brand) int {
	for i, x := range brands {
		if x == b {
			return i
		}
	}
	return -1
}
