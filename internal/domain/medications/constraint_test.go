package medications

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestConstraintValidate(t *testing.T) {
	cases := []struct {
		name string
		c    Constraint
		ok   bool
	}{
		{"min gap positive", MinTimeBetween{MinGap: 4 * time.Hour}, true},
		{"min gap zero", MinTimeBetween{}, false},
		{"min gap negative", MinTimeBetween{MinGap: -time.Hour}, false},

		{"max per period ok", MaxPerPeriod{MaxCount: 3, Period: 24 * time.Hour}, true},
		{"max count zero", MaxPerPeriod{Period: 24 * time.Hour}, false},
		{"period zero", MaxPerPeriod{MaxCount: 3}, false},

		{"cumulative ok", MaxCumulativeAmount{MaxAmount: 3200, Unit: "mg", Period: 24 * time.Hour}, true},
		{"cumulative no unit", MaxCumulativeAmount{MaxAmount: 3200, Period: 24 * time.Hour}, false},
		{"cumulative zero amount", MaxCumulativeAmount{Unit: "mg", Period: 24 * time.Hour}, false},

		{"window both bounds", TimeWindow{NotBefore: &TimeOfDay{Hour: 6}, NotAfter: &TimeOfDay{Hour: 22}}, true},
		{"window only not_before", TimeWindow{NotBefore: &TimeOfDay{Hour: 6}}, true},
		{"window only not_after", TimeWindow{NotAfter: &TimeOfDay{Hour: 22}}, true},
		{"window no bounds", TimeWindow{}, false},
		{"window inverted", TimeWindow{NotBefore: &TimeOfDay{Hour: 22}, NotAfter: &TimeOfDay{Hour: 6}}, false},
		{"window out of range", TimeWindow{NotBefore: &TimeOfDay{Hour: 25}}, false},

		{"custom ok", Custom{Description: "tomar con comida"}, true},
		{"custom empty", Custom{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConstraint) {
					t.Fatalf("expected ErrInvalidConstraint, got %v", err)
				}
			}
		})
	}
}

func TestConstraintList_JSONRoundTrip(t *testing.T) {
	in := ConstraintList{
		MinTimeBetween{MinGap: 4 * time.Hour},
		MaxPerPeriod{MaxCount: 3, Period: 24 * time.Hour},
		MaxCumulativeAmount{MaxAmount: 3200, Unit: "mg", Period: 24 * time.Hour},
		TimeWindow{NotBefore: &TimeOfDay{Hour: 6}, NotAfter: &TimeOfDay{Hour: 22, Minute: 30}},
		Custom{Description: "tomar con comida"},
	}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var out ConstraintList
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d constraints, got %d", len(in), len(out))
	}

	// Round-trip sin pérdida: cada variante conserva sus campos.
	if got := out[0].(MinTimeBetween); got.MinGap != 4*time.Hour {
		t.Fatalf("min_time_between lost its gap: %+v", got)
	}
	if got := out[1].(MaxPerPeriod); got.MaxCount != 3 || got.Period != 24*time.Hour {
		t.Fatalf("max_per_period lost fields: %+v", got)
	}
	if got := out[2].(MaxCumulativeAmount); got.MaxAmount != 3200 || got.Unit != "mg" || got.Period != 24*time.Hour {
		t.Fatalf("max_cumulative_amount lost fields: %+v", got)
	}
	if got := out[3].(TimeWindow); got.NotBefore.Hour != 6 || got.NotAfter.Minute != 30 {
		t.Fatalf("time_window lost bounds: %+v", got)
	}
	if got := out[4].(Custom); got.Description != "tomar con comida" {
		t.Fatalf("custom lost description: %+v", got)
	}
}

func TestUnmarshalConstraint_UnknownType(t *testing.T) {
	_, err := UnmarshalConstraint([]byte(`{"type":"phase_of_moon"}`))
	if err == nil {
		t.Fatalf("expected error for unknown constraint type")
	}
}

func TestConstraintList_Validate_ReportsIndex(t *testing.T) {
	l := ConstraintList{
		MinTimeBetween{MinGap: time.Hour},
		MaxPerPeriod{}, // inválida
	}
	err := l.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrInvalidConstraint) {
		t.Fatalf("expected ErrInvalidConstraint, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("08:30")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got.Hour != 8 || got.Minute != 30 {
		t.Fatalf("expected 08:30, got %+v", got)
	}

	for _, bad := range []string{"25:00", "10:75", "nope", ""} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
