package compare

import (
	"math"
	"testing"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "black leather wallet", "black leather wallet", 1},
		{"disjoint", "black wallet", "silver keys", 0},
		{"partial", "black wallet", "black purse", 1.0 / 3},
		{"case and punctuation", "Black, WALLET!", "black wallet", 1},
		{"short tokens dropped", "a an of wallet", "wallet", 1},
		{"only short tokens", "a an of", "is it", 0},
		{"empty", "", "black wallet", 0},
		{"unicode folding", "ÉCLAIR café", "éclair CAFÉ", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Jaccard(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestTokens_Distinct(t *testing.T) {
	got := Tokens("wallet wallet Wallet")
	if len(got) != 1 {
		t.Errorf("expected 1 distinct token, got %v", got)
	}
}
