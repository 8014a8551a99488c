package fees

import "strings"

// DefaultReferralRate applies when a category is unknown or unmatched.
const DefaultReferralRate = 0.15

// referralRates maps Amazon root categories to referral fee percentages.
var referralRates = map[string]float64{
	"baby products":                 0.08,
	"beauty":                        0.08,
	"beauty & personal care":        0.08,
	"clothing & accessories":        0.17,
	"grocery & gourmet food":        0.08,
	"grocery":                       0.08,
	"health & household":            0.08,
	"health, household & baby care": 0.08,
	"home & kitchen":                0.15,
	"kitchen & dining":              0.15,
	"office products":               0.15,
	"pet supplies":                  0.15,
	"sports & outdoors":             0.15,
	"sports outdoors":               0.15,
	"tools & home improvement":      0.15,
	"toys & games":                  0.15,
	"arts & crafts":                 0.15,
	"automotive":                    0.12,
	"industrial & scientific":       0.12,
	"musical instruments":           0.15,
	"patio, lawn & garden":          0.15,
	"garden & outdoor":              0.15,
}

// ReferralRate looks up the fee percentage for a category name. Matching
// is case-insensitive and tolerant of partial names in either direction.
func ReferralRate(category string) float64 {
	if category == "" {
		return DefaultReferralRate
	}
	key := strings.ToLower(strings.TrimSpace(category))
	for name, rate := range referralRates {
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return rate
		}
	}
	return DefaultReferralRate
}
