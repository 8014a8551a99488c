package fees

import "testing"

func TestReferralRate(t *testing.T) {
	cases := []struct {
		category string
		want     float64
	}{
		{"", DefaultReferralRate},
		{"Beauty", 0.08},
		{"beauty & personal care", 0.08},
		{"Clothing & Accessories", 0.17},
		{"Automotive", 0.12},
		{"Toys & Games", 0.15},
		{"Some Unknown Category", DefaultReferralRate},
		{"  GROCERY  ", 0.08},
	}

	for _, tc := range cases {
		if got := ReferralRate(tc.category); got != tc.want {
			t.Errorf("ReferralRate(%q) = %v, want %v", tc.category, got, tc.want)
		}
	}
}
