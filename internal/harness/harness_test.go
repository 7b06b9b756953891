package harness

import (
	"testing"

	"github.com/sunyans/back40computing/pkg/scan"
)

func TestValuesReproducible(t *testing.T) {
	a := Values(100, 7, 1000)
	b := Values(100, 7, 1000)
	if err := Compare(a, b); err != nil {
		t.Fatalf("same seed diverged: %v", err)
	}
	for i, v := range a {
		if v >= 1000 {
			t.Fatalf("index %d: value %d outside limit", i, v)
		}
	}
	c := Values(100, 8, 1000)
	if err := Compare(a, c); err == nil {
		t.Fatal("different seeds produced identical problems")
	}
}

func TestPeriodicFlags(t *testing.T) {
	flags := PeriodicFlags(23, 7)
	for i, f := range flags {
		if want := i%7 == 0; f != want {
			t.Fatalf("index %d: flag %v, want %v", i, f, want)
		}
	}
	for _, f := range PeriodicFlags(10, 0) {
		if f {
			t.Fatal("period 0 produced a head")
		}
	}
}

func TestScanReferences(t *testing.T) {
	op := scan.Sum[uint32]()
	in := []uint32{3, 1, 4, 1, 5}

	excl := Scan(op, in, false)
	if err := Compare(excl, []uint32{0, 3, 4, 8, 9}); err != nil {
		t.Fatalf("exclusive: %v", err)
	}
	incl := Scan(op, in, true)
	if err := Compare(incl, []uint32{3, 4, 8, 9, 14}); err != nil {
		t.Fatalf("inclusive: %v", err)
	}

	flags := []bool{true, false, false, true, false}
	seg := SegmentedScan(op, in, flags, false)
	if err := Compare(seg, []uint32{0, 3, 4, 0, 1}); err != nil {
		t.Fatalf("segmented exclusive: %v", err)
	}
	seg = SegmentedScan(op, in, flags, true)
	if err := Compare(seg, []uint32{3, 4, 8, 1, 6}); err != nil {
		t.Fatalf("segmented inclusive: %v", err)
	}
}

func TestCompareReportsFirstMismatch(t *testing.T) {
	if err := Compare([]int{1, 2}, []int{1, 2, 3}); err == nil {
		t.Fatal("length mismatch not reported")
	}
	if err := Compare([]int{1, 9, 3}, []int{1, 2, 3}); err == nil {
		t.Fatal("value mismatch not reported")
	}
}
