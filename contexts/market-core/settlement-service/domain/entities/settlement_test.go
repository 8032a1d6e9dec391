package entities

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitAmountRoundsToCents(t *testing.T) {
	cases := []struct {
		amount string
		share  string
		want   string
	}{
		{"1000", "50", "500"},
		{"1000", "15", "150"},
		{"1000", "25", "250"},
		{"1000", "10", "100"},
		{"99.99", "33.333", "33.33"},
		{"0.01", "50", "0.01"},
		{"100", "0.005", "0.01"},
	}
	for _, tc := range cases {
		amount := decimal.RequireFromString(tc.amount)
		share := decimal.RequireFromString(tc.share)
		got := SplitAmount(amount, share)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("SplitAmount(%s, %s) = %s, want %s", tc.amount, tc.share, got, tc.want)
		}
	}
}

func TestSharesSumToHundredIsExact(t *testing.T) {
	wallets := []Wallet{
		{Share: decimal.RequireFromString("50")},
		{Share: decimal.RequireFromString("15")},
		{Share: decimal.RequireFromString("25")},
		{Share: decimal.RequireFromString("10")},
	}
	if !SharesSumToHundred(wallets) {
		t.Fatalf("expected 50+15+25+10 to sum to 100")
	}

	wallets[3].Share = decimal.RequireFromString("10.001")
	if SharesSumToHundred(wallets) {
		t.Fatalf("expected 100.001 to fail the exact-sum check")
	}

	if SharesSumToHundred(nil) {
		t.Fatalf("expected empty wallet set to fail the sum check")
	}
}

func TestResolveRolePrefersExplicitRole(t *testing.T) {
	wallet := Wallet{Role: RoleEnvironmentalPartner}
	if got := ResolveRole(wallet, "artist"); got != RoleEnvironmentalPartner {
		t.Fatalf("expected explicit role kept, got %s", got)
	}

	if got := ResolveRole(Wallet{}, "artist"); got != RoleCreator {
		t.Fatalf("expected artist account to map to creator, got %s", got)
	}
	if got := ResolveRole(Wallet{}, "gallery"); got != RolePlatform {
		t.Fatalf("expected gallery account to map to platform, got %s", got)
	}
	if got := ResolveRole(Wallet{}, "unknown"); got != RoleCollector {
		t.Fatalf("expected fallback to collector, got %s", got)
	}

	// An unrecognized explicit role falls through to account-type mapping.
	if got := ResolveRole(Wallet{Role: "misconfigured"}, "artist"); got != RoleCreator {
		t.Fatalf("expected unrecognized role to defer to account type, got %s", got)
	}
}
