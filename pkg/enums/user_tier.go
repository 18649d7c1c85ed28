package enums

import "fmt"

// UserTier classifies an account and decides which price list applies.
type UserTier string

const (
	// UserTierNatural is a retail customer charged the base price.
	UserTierNatural UserTier = "NATURAL"
	// UserTierEmpresa is a wholesale customer charged the wholesale price
	// when the product defines one.
	UserTierEmpresa UserTier = "EMPRESA"
)

var validUserTiers = []UserTier{
	UserTierNatural,
	UserTierEmpresa,
}

// String implements fmt.Stringer.
func (u UserTier) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserTier.
func (u UserTier) IsValid() bool {
	for _, candidate := range validUserTiers {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserTier converts raw input into a UserTier.
func ParseUserTier(value string) (UserTier, error) {
	for _, candidate := range validUserTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user tier %q", value)
}
