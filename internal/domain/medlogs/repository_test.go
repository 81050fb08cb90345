package medlogs

import "testing"

func TestListFilter_EffectiveLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{50, 50},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tc := range cases {
		if got := (ListFilter{Limit: tc.in}).EffectiveLimit(); got != tc.want {
			t.Fatalf("limit %d: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestListFilter_MatchesStatus(t *testing.T) {
	// Sin filtro: todos pasan.
	empty := ListFilter{}
	if !empty.MatchesStatus(StatusTaken) || !empty.MatchesStatus(StatusSkipped) {
		t.Fatalf("empty filter must match every status")
	}

	only := ListFilter{Statuses: []Status{StatusSkipped}}
	if only.MatchesStatus(StatusTaken) {
		t.Fatalf("filter must exclude statuses not listed")
	}
	if !only.MatchesStatus(StatusSkipped) {
		t.Fatalf("filter must include listed statuses")
	}
}
