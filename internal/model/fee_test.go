package model

import (
	"testing"
	"time"
)

func TestFeeAvailableAt(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	fee := FeeCatalogEntry{ValidFrom: from, ValidTo: to, IsActive: true}

	tests := []struct {
		name   string
		at     time.Time
		active bool
		want   bool
	}{
		{"inside window", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), true, true},
		{"window start inclusive", from, true, true},
		{"window end inclusive", to, true, true},
		{"before window", from.Add(-time.Second), true, false},
		{"after window", to.Add(time.Second), true, false},
		{"inactive inside window", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee.IsActive = tt.active
			if got := fee.AvailableAt(tt.at); got != tt.want {
				t.Fatalf("AvailableAt = %v, want %v", got, tt.want)
			}
		})
	}
}
