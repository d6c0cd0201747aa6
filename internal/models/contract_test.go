package models

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewContractKeyNormalizesExpiration(t *testing.T) {
	noon := time.Date(2024, 3, 15, 12, 30, 45, 0, time.UTC)
	key := NewContractKey(150, noon, RightCall)

	if !key.Expiration.Equal(date(2024, 3, 15)) {
		t.Errorf("expiration not truncated to midnight: %v", key.Expiration)
	}

	// Keys built from different intraday times must compare equal.
	other := NewContractKey(150, date(2024, 3, 15).Add(8*time.Hour), RightCall)
	if key != other {
		t.Errorf("keys differ for same calendar date: %v vs %v", key, other)
	}
}

func TestContractKeyString(t *testing.T) {
	tests := []struct {
		key  ContractKey
		want string
	}{
		{NewContractKey(150, date(2024, 3, 15), RightCall), "150C 2024-03-15"},
		{NewContractKey(97.5, date(2024, 3, 15), RightPut), "97.5P 2024-03-15"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestOptionContractValidate(t *testing.T) {
	valid := OptionContract{
		Strike:     150,
		Expiration: date(2024, 3, 15),
		Right:      RightCall,
		Bid:        4.90,
		Ask:        5.10,
		Mid:        5.00,
	}

	tests := []struct {
		name    string
		mutate  func(c *OptionContract)
		wantErr bool
	}{
		{"valid", func(c *OptionContract) {}, false},
		{"bad right", func(c *OptionContract) { c.Right = "straddle" }, true},
		{"zero strike", func(c *OptionContract) { c.Strike = 0 }, true},
		{"negative strike", func(c *OptionContract) { c.Strike = -100 }, true},
		{"missing expiration", func(c *OptionContract) { c.Expiration = time.Time{} }, true},
		{"negative bid", func(c *OptionContract) { c.Bid = -0.05 }, true},
		{"crossed quote", func(c *OptionContract) { c.Bid = 5.20 }, true},
		{"zero ask allowed", func(c *OptionContract) { c.Ask = 0; c.Bid = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotOf(t *testing.T) {
	c := &OptionContract{
		Strike:          150,
		Expiration:      date(2024, 3, 15),
		Right:           RightCall,
		Mid:             5.00,
		Delta:           0.42,
		Theta:           -0.08,
		IV:              0.31,
		DTE:             35,
		UnderlyingPrice: 148.25,
	}

	snap := SnapshotOf(c, time.Date(2024, 2, 9, 16, 0, 0, 0, time.UTC))
	if !snap.Date.Equal(date(2024, 2, 9)) {
		t.Errorf("snapshot date not truncated: %v", snap.Date)
	}
	if snap.OptionPrice != 5.00 {
		t.Errorf("OptionPrice = %v, want mid 5.00", snap.OptionPrice)
	}
	if snap.Delta != 0.42 || snap.DTE != 35 {
		t.Errorf("greeks not carried over: %+v", snap)
	}
	if snap.Stale {
		t.Error("fresh snapshot must not be stale")
	}
}
