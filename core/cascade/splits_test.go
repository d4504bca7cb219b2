// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cascade

import (
	"math"
	"testing"
)

func TestSplitFractions(t *testing.T) {
	lambdas := []float32{0, 0.25, 0.5, 0.75, 0.95, 1}
	for count := 1; count <= 6; count++ {
		for _, lambda := range lambdas {
			fractions := splitFractions(count, 0.5, 48, lambda)
			if len(fractions) != count {
				t.Fatalf("expected %d fractions, got %d", count, len(fractions))
			}
			last := float32(0)
			for i, f := range fractions {
				if !(f > 0 && f <= 1) {
					t.Errorf("count %d lambda %.2f: fraction %d out of range: %f", count, lambda, i, f)
				}
				if f <= last {
					t.Errorf("count %d lambda %.2f: fraction %d not increasing: %f <= %f", count, lambda, i, f, last)
				}
				last = f
			}
			if math.Abs(float64(last-1)) > 1e-5 {
				t.Errorf("count %d lambda %.2f: final fraction %f does not reach the far plane", count, lambda, last)
			}
		}
	}
}

func TestSplitFractionBlend(t *testing.T) {
	const (
		near = 0.5
		far  = 48
	)
	clipRange := float32(far - near)

	uniform := splitFractions(Count, near, far, 0)
	for i, f := range uniform {
		want := float32(i+1) / Count
		if math.Abs(float64(f-want)) > 1e-6 {
			t.Errorf("lambda 0 fraction %d: got %f, want uniform %f", i, f, want)
		}
	}

	logarithmic := splitFractions(Count, near, far, 1)
	for i, f := range logarithmic {
		p := float64(i+1) / Count
		d := near * float32(math.Pow(far/near, p))
		want := (d - near) / clipRange
		if math.Abs(float64(f-want)) > 1e-6 {
			t.Errorf("lambda 1 fraction %d: got %f, want logarithmic %f", i, f, want)
		}
	}

	blended := splitFractions(Count, near, far, 0.5)
	for i := range blended {
		lo, hi := logarithmic[i], uniform[i]
		if lo > hi {
			lo, hi = hi, lo
		}
		if blended[i] < lo-1e-6 || blended[i] > hi+1e-6 {
			t.Errorf("lambda 0.5 fraction %d: %f outside [%f, %f]", i, blended[i], lo, hi)
		}
	}
}

func TestSplitsN(t *testing.T) {
	fixed := Splits(0.5, 48, 0.95)
	general := SplitsN(Count, 0.5, 48, 0.95)
	if len(general) != Count {
		t.Fatalf("expected %d fractions, got %d", Count, len(general))
	}
	for i := range fixed {
		if fixed[i] != general[i] {
			t.Errorf("fraction %d differs: %f != %f", i, fixed[i], general[i])
		}
	}
	if SplitsN(0, 0.5, 48, 0.95) != nil {
		t.Error("expected nil schedule for zero cascades")
	}
}
