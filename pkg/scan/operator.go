// Package scan implements hierarchical prefix scan, plain and segmented,
// over device-resident arrays: lock-step subgroup scan, block-level raking
// scan, and the upsweep/spine/downsweep pipeline that carries partials
// across blocks.
package scan

// Op is the binary-operator strategy a scan is configured with. Combine
// must be associative. It is never assumed commutative: every fold in this
// package runs in index order. Identity must satisfy
// Combine(Identity, v) == Combine(v, Identity) == v.
type Op[T any] struct {
	Combine  func(a, b T) T
	Identity T
}

// Number covers the element types the stock arithmetic operators accept.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Sum is addition with identity zero.
func Sum[T Number]() Op[T] {
	return Op[T]{Combine: func(a, b T) T { return a + b }}
}

// Mul is multiplication with identity one.
func Mul[T Number]() Op[T] {
	return Op[T]{Combine: func(a, b T) T { return a * b }, Identity: 1}
}

// Max takes the larger value; floor is the identity and must compare below
// every input.
func Max[T Number](floor T) Op[T] {
	return Op[T]{
		Combine: func(a, b T) T {
			if b > a {
				return b
			}
			return a
		},
		Identity: floor,
	}
}

// Min takes the smaller value; ceil is the identity and must compare above
// every input.
func Min[T Number](ceil T) Op[T] {
	return Op[T]{
		Combine: func(a, b T) T {
			if b < a {
				return b
			}
			return a
		},
		Identity: ceil,
	}
}

// flagged pairs an element with its segment-head flag for segmented scans.
type flagged[T any] struct {
	val  T
	head bool
}

// liftSegmented turns op into the segmented-scan operator over
// (value, head) pairs: a head on the right operand discards everything
// accumulated to its left. The lifted operator stays associative and
// order-preserving, so the plain pipeline machinery runs it unchanged.
func liftSegmented[T any](op Op[T]) Op[flagged[T]] {
	return Op[flagged[T]]{
		Combine: func(a, b flagged[T]) flagged[T] {
			if b.head {
				return b
			}
			return flagged[T]{val: op.Combine(a.val, b.val), head: a.head}
		},
		Identity: flagged[T]{val: op.Identity},
	}
}
