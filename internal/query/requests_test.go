package query

import "testing"

func TestOrderClauseWhitelistsColumns(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"default", Filter{}, "r.created_at ASC"},
		{"created_at desc", Filter{SortBy: "created_at", SortDesc: true}, "r.created_at DESC"},
		{"total_amount", Filter{SortBy: "total_amount"}, "r.total_amount ASC"},
		{"status desc", Filter{SortBy: "status", SortDesc: true}, "r.status DESC"},
		{"unknown column falls back", Filter{SortBy: "wallet_balance; DROP TABLE alumni"}, "r.created_at ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := orderClause(tt.filter); got != tt.want {
				t.Fatalf("orderClause = %q, want %q", got, tt.want)
			}
		})
	}
}
