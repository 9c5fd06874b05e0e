package services

import "encoding/json"

// Length buckets for the tier tables. Keys are the bucket labels used in the
// operator override JSON.
const (
	bucketTiny    = "1-2"
	bucketThree   = "3"
	bucketShort   = "4-5"
	bucketLong    = "6+"
	bucketPremium = "premium"
)

// PriceTable prices a canonical name for claim and renewal. It is a plain
// value built once from configuration and passed to whoever needs it; there
// is no package-level pricing state.
type PriceTable struct {
	claim   map[string]uint64
	renewal map[string]uint64
	premium map[string]bool
}

func defaultClaimPrices() map[string]uint64 {
	return map[string]uint64{
		bucketTiny:    10000,
		bucketThree:   5000,
		bucketShort:   2000,
		bucketLong:    1000,
		bucketPremium: 10000,
	}
}

// Renewal runs higher than claim on purpose, to make squatting on short
// names expensive to sustain.
func defaultRenewalPrices() map[string]uint64 {
	return map[string]uint64{
		bucketTiny:    20000,
		bucketThree:   10000,
		bucketShort:   4000,
		bucketLong:    2000,
		bucketPremium: 20000,
	}
}

// defaultPremiumWords is the curated dictionary priced at the premium tier
// regardless of length.
var defaultPremiumWords = []string{
	"bitcoin", "btc", "nostr", "satoshi", "lightning", "zap", "wallet",
	"mint", "relay", "admin", "pay", "cash", "money", "bank",
}

// NewPriceTable builds a table from the operator's override JSON (a map of
// bucket label to price) and extra premium words. A malformed override is
// ignored and the defaults stand; pricing must never fail a request.
func NewPriceTable(claimOverride, renewalOverride string, extraPremium []string) PriceTable {
	t := PriceTable{
		claim:   defaultClaimPrices(),
		renewal: defaultRenewalPrices(),
		premium: make(map[string]bool),
	}
	for _, w := range defaultPremiumWords {
		t.premium[w] = true
	}
	for _, w := range extraPremium {
		if w != "" {
			t.premium[w] = true
		}
	}
	applyOverride(t.claim, claimOverride)
	applyOverride(t.renewal, renewalOverride)
	return t
}

func applyOverride(table map[string]uint64, override string) {
	if override == "" {
		return
	}
	var parsed map[string]uint64
	if err := json.Unmarshal([]byte(override), &parsed); err != nil {
		return
	}
	for bucket, price := range parsed {
		if _, known := table[bucket]; known {
			table[bucket] = price
		}
	}
}

// Price returns the claim price for a canonical name.
func (t PriceTable) Price(canonical string) uint64 {
	return t.claim[bucketFor(canonical, t.premium)]
}

// RenewalPrice returns the yearly renewal price for a canonical name.
func (t PriceTable) RenewalPrice(canonical string) uint64 {
	return t.renewal[bucketFor(canonical, t.premium)]
}

func bucketFor(canonical string, premium map[string]bool) string {
	if premium[canonical] {
		return bucketPremium
	}
	switch n := len(canonical); {
	case n <= 2:
		return bucketTiny
	case n == 3:
		return bucketThree
	case n <= 5:
		return bucketShort
	default:
		return bucketLong
	}
}
