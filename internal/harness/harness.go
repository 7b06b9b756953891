// Package harness generates scan problems and sequential reference
// results for tests and benchmarks. It is host-side tooling: nothing here
// runs on the device path.
package harness

import (
	"fmt"
	"math/rand"

	"github.com/sunyans/back40computing/pkg/scan"
)

// Values returns n reproducible pseudo-random values in [0, limit). The
// same seed always produces the same problem.
func Values(n int, seed int64, limit uint32) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]uint32, n)
	for i := range out {
		out[i] = rng.Uint32() % limit
	}
	return out
}

// PeriodicFlags marks every period-th position as a segment head,
// starting at index zero. period < 1 yields no heads.
func PeriodicFlags(n, period int) []bool {
	flags := make([]bool, n)
	if period < 1 {
		return flags
	}
	for i := 0; i < n; i += period {
		flags[i] = true
	}
	return flags
}

// BernoulliFlags marks each position a head with probability p.
func BernoulliFlags(n int, seed int64, p float64) []bool {
	rng := rand.New(rand.NewSource(seed))
	flags := make([]bool, n)
	for i := range flags {
		flags[i] = rng.Float64() < p
	}
	return flags
}

// Scan computes the sequential reference prefix scan.
func Scan[T any](op scan.Op[T], in []T, inclusive bool) []T {
	out := make([]T, len(in))
	acc := op.Identity
	for i, x := range in {
		if inclusive {
			acc = op.Combine(acc, x)
			out[i] = acc
		} else {
			out[i] = acc
			acc = op.Combine(acc, x)
		}
	}
	return out
}

// SegmentedScan computes the sequential reference segmented scan: the
// running aggregate restarts from the identity at every head.
func SegmentedScan[T any](op scan.Op[T], in []T, flags []bool, inclusive bool) []T {
	out := make([]T, len(in))
	acc := op.Identity
	for i, x := range in {
		if flags[i] {
			acc = op.Identity
		}
		if inclusive {
			acc = op.Combine(acc, x)
			out[i] = acc
		} else {
			out[i] = acc
			acc = op.Combine(acc, x)
		}
	}
	return out
}

// Compare reports the first index where got and want differ.
func Compare[T comparable](got, want []T) error {
	if len(got) != len(want) {
		return fmt.Errorf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("mismatch at index %d: got %v, want %v", i, got[i], want[i])
		}
	}
	return nil
}
