package core

import "testing"

func TestNewBudgetStatus(t *testing.T) {
	cases := []struct {
		name     string
		amount   float64
		spent    float64
		percent  float64
		progress float64
		exceeded bool
		level    string
	}{
		{"untouched", 100, 0, 0, 0, false, LevelOK},
		{"partial", 100, 42.5, 43, 43, false, LevelOK},
		{"warning", 100, 85, 85, 85, false, LevelWarning},
		{"exactly spent", 100, 100, 100, 100, false, LevelWarning},
		{"over", 30, 42.5, 142, 100, true, LevelExceeded},
		{"zero budget unused", 0, 0, 0, 0, false, LevelOK},
		{"zero budget used", 0, 5, 100, 100, true, LevelExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := NewBudgetStatus(Budget{Amount: tc.amount}, tc.spent)
			if st.Percent != tc.percent || st.Progress != tc.progress {
				t.Fatalf("percent=%v progress=%v, want %v %v", st.Percent, st.Progress, tc.percent, tc.progress)
			}
			if st.Exceeded != tc.exceeded || st.Level != tc.level {
				t.Fatalf("exceeded=%v level=%s, want %v %s", st.Exceeded, st.Level, tc.exceeded, tc.level)
			}
		})
	}
}

func TestNewSummary(t *testing.T) {
	s := NewSummary(Totals{Total: 90, Count: 3}, Totals{Total: 1000, Count: 1})
	if s.ExpenseAverage != 30 || s.Balance != 910 {
		t.Fatalf("unexpected summary %+v", s)
	}
	empty := NewSummary(Totals{}, Totals{})
	if empty.ExpenseAverage != 0 {
		t.Fatalf("average of no expenses should be 0, got %v", empty.ExpenseAverage)
	}
}
