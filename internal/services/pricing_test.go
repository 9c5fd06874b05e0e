package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultClaimPrices(t *testing.T) {
	table := NewPriceTable("", "", nil)

	tests := []struct {
		name string
		want uint64
	}{
		{name: "ab", want: 10000},
		{name: "bob", want: 5000},
		{name: "alice", want: 2000},
		{name: "charlie", want: 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Price(tt.name), tt.name)
	}
}

func TestPremiumOverridesLength(t *testing.T) {
	table := NewPriceTable("", "", []string{"verylongpremium"})

	// Curated words cost the premium price no matter how long they are.
	assert.Equal(t, uint64(10000), table.Price("bitcoin"))
	assert.Equal(t, uint64(10000), table.Price("verylongpremium"))
	assert.Equal(t, uint64(20000), table.RenewalPrice("bitcoin"))
}

func TestRenewalRunsHigher(t *testing.T) {
	table := NewPriceTable("", "", nil)
	for _, name := range []string{"ab", "bob", "alice", "charlie"} {
		assert.Greater(t, table.RenewalPrice(name), table.Price(name), name)
	}
}

func TestPricingOverride(t *testing.T) {
	table := NewPriceTable(`{"3": 7777, "6+": 1}`, "", nil)

	assert.Equal(t, uint64(7777), table.Price("bob"))
	assert.Equal(t, uint64(1), table.Price("charlie"))
	// Untouched buckets keep their defaults.
	assert.Equal(t, uint64(10000), table.Price("ab"))
	assert.Equal(t, uint64(2000), table.Price("alice"))
}

func TestMalformedOverrideFallsBack(t *testing.T) {
	for _, override := range []string{"not json", `{"3": "cheap"}`, `[1,2,3]`} {
		table := NewPriceTable(override, override, nil)

		assert.Equal(t, uint64(10000), table.Price("ab"), override)
		assert.Equal(t, uint64(5000), table.Price("bob"), override)
		assert.Equal(t, uint64(2000), table.Price("alice"), override)
		assert.Equal(t, uint64(1000), table.Price("charlie"), override)
		assert.Equal(t, uint64(20000), table.RenewalPrice("ab"), override)
	}
}

func TestUnknownBucketInOverrideIgnored(t *testing.T) {
	table := NewPriceTable(`{"99+": 5}`, "", nil)
	assert.Equal(t, uint64(1000), table.Price("charlie"))
}
