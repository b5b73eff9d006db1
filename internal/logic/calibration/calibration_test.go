package calibration

import (
	"math"
	"testing"
)

func TestNormalize_Bounds(t *testing.T) {
	cases := []struct {
		name              string
		raw, black, white int
		want              float64
	}{
		{"at_black", 8, 8, 70, 0},
		{"below_black", 2, 8, 70, 0},
		{"at_white", 70, 8, 70, 100},
		{"above_white", 95, 8, 70, 100},
		{"midpoint", 39, 8, 70, 50},
		{"quarter", 25, 0, 100, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.raw, tc.black, tc.white)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Normalize(%d, %d, %d) = %v, want %v", tc.raw, tc.black, tc.white, got, tc.want)
			}
		})
	}
}

func TestNormalize_DegenerateReturnsZero(t *testing.T) {
	for _, raw := range []int{-100, 0, 10, 50, 1000} {
		if got := Normalize(raw, 42, 42); got != 0 {
			t.Errorf("Normalize(%d, 42, 42) = %v, want 0", raw, got)
		}
	}
}

func TestNormalize_RangeAndMonotonic(t *testing.T) {
	pairs := [][2]int{{0, 100}, {8, 70}, {10, 90}, {50, 51}, {-20, 20}}
	for _, p := range pairs {
		black, white := p[0], p[1]
		prev := -1.0
		for raw := black - 30; raw <= white+30; raw++ {
			v := Normalize(raw, black, white)
			if v < 0 || v > 100 {
				t.Fatalf("Normalize(%d, %d, %d) = %v out of [0,100]", raw, black, white, v)
			}
			if v < prev {
				t.Fatalf("Normalize not monotonic at raw=%d (%v < %v)", raw, v, prev)
			}
			if raw <= black && v != 0 {
				t.Fatalf("Normalize(%d) = %v, want 0 at or below black", raw, v)
			}
			if raw >= white && v != 100 {
				t.Fatalf("Normalize(%d) = %v, want 100 at or above white", raw, v)
			}
			prev = v
		}
	}
}

func TestNewBounds_SwapsReversed(t *testing.T) {
	b := NewBounds(70, 8)
	if b.Black != 8 || b.White != 70 {
		t.Errorf("NewBounds(70, 8) = %+v, want {Black:8 White:70}", b)
	}
}

func TestCapture_SwapInvariant(t *testing.T) {
	ordered := Capture(70, 8)
	reversed := Capture(8, 70)
	if ordered != reversed {
		t.Errorf("Capture ordered = %+v, reversed = %+v; want equal", ordered, reversed)
	}
	if ordered.Black > ordered.White {
		t.Errorf("black > white after capture: %+v", ordered)
	}
}

func TestBounds_ThresholdAndIsDark(t *testing.T) {
	b := NewBounds(10, 90)
	if got := b.Threshold(); got != 50 {
		t.Errorf("Threshold = %v, want 50", got)
	}
	if !b.IsDark(49) {
		t.Error("49 should be dark")
	}
	if b.IsDark(50) {
		t.Error("50 is at threshold, should not be dark")
	}
}

func TestBounds_Degenerate(t *testing.T) {
	if !NewBounds(5, 5).Degenerate() {
		t.Error("equal bounds should be degenerate")
	}
	if NewBounds(5, 6).Degenerate() {
		t.Error("distinct bounds should not be degenerate")
	}
}

func TestAverage(t *testing.T) {
	cases := []struct {
		name    string
		samples []int
		want    int
	}{
		{"empty", nil, 0},
		{"single", []int{42}, 42},
		{"rounds_half_up", []int{1, 2}, 2},
		{"mean", []int{60, 70, 80}, 70},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Average(tc.samples); got != tc.want {
				t.Errorf("Average(%v) = %d, want %d", tc.samples, got, tc.want)
			}
		})
	}
}
