package scan

// SerialReduce folds xs in index order, starting from the identity.
// This is the per-thread sequential reduction over a private segment.
func SerialReduce[T any](op Op[T], xs []T) T {
	acc := op.Identity
	for _, x := range xs {
		acc = op.Combine(acc, x)
	}
	return acc
}

// SerialScan writes the exclusive prefix of every element of xs into out,
// seeded by seed, and returns the inclusive total. out may alias xs.
func SerialScan[T any](op Op[T], xs, out []T, seed T) T {
	acc := seed
	for i, x := range xs {
		out[i] = acc
		acc = op.Combine(acc, x)
	}
	return acc
}

// SerialScanInclusive is SerialScan's inclusive counterpart: out[i]
// includes xs[i]. Returns the inclusive total. out may alias xs.
func SerialScanInclusive[T any](op Op[T], xs, out []T, seed T) T {
	acc := seed
	for i, x := range xs {
		acc = op.Combine(acc, x)
		out[i] = acc
	}
	return acc
}
