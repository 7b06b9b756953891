package scan

// SubgroupScan computes an inclusive prefix scan across the lanes of one
// lock-step subgroup: log2(len(row)) doubling steps, where at step k each
// lane folds in the partial held 1<<k lanes to its left and lanes without
// a left partner keep their value.
//
// The loop body visits lanes in descending order within a step, so every
// left partner is read before its own update, the same ordered-write
// visibility a hardware lock-step group provides. That is the whole
// concurrency contract here: no barrier, no double buffer, but row must be
// private to the executing subgroup. It is not safe to run one step of
// this scan from independently scheduled threads.
func SubgroupScan[T any](op Op[T], row []T) {
	for offset := 1; offset < len(row); offset <<= 1 {
		for lane := len(row) - 1; lane >= offset; lane-- {
			row[lane] = op.Combine(row[lane-offset], row[lane])
		}
	}
}

// SubgroupScanExclusive scans row in place to exclusive prefixes and
// returns the subgroup aggregate (the last lane's inclusive value).
func SubgroupScanExclusive[T any](op Op[T], row []T) T {
	if len(row) == 0 {
		return op.Identity
	}
	SubgroupScan(op, row)
	total := row[len(row)-1]
	copy(row[1:], row[:len(row)-1])
	row[0] = op.Identity
	return total
}
