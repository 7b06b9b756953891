package scan

import (
	"fmt"

	"github.com/sunyans/back40computing/pkg/device"
)

// RakingLayout maps raking threads onto contiguous segments of a block's
// partial grid. Each raking thread owns exactly one segment; the segment
// count never exceeds the lock-step width, so the cross-segment scan fits
// in a single subgroup.
type RakingLayout struct {
	RakingThreads int
	SegLength     int
}

// NewRakingLayout sizes the raking stage for a block. threadsPerBlock
// partials are raked by at most lockStepWidth threads; a thread count that
// cannot be divided into lock-step-many equal segments is a configuration
// violation, caught here rather than at launch.
func NewRakingLayout(threadsPerBlock, lockStepWidth int) (RakingLayout, error) {
	if threadsPerBlock < 1 || lockStepWidth < 1 {
		return RakingLayout{}, fmt.Errorf("%w: raking layout over %d threads, width %d",
			device.ErrConfigViolation, threadsPerBlock, lockStepWidth)
	}
	if threadsPerBlock <= lockStepWidth {
		return RakingLayout{RakingThreads: threadsPerBlock, SegLength: 1}, nil
	}
	if threadsPerBlock%lockStepWidth != 0 {
		return RakingLayout{}, fmt.Errorf("%w: %d threads not divisible into %d raking segments",
			device.ErrConfigViolation, threadsPerBlock, lockStepWidth)
	}
	return RakingLayout{RakingThreads: lockStepWidth, SegLength: threadsPerBlock / lockStepWidth}, nil
}

// Partials returns the size of the partial grid this layout rakes.
func (l RakingLayout) Partials() int { return l.RakingThreads * l.SegLength }

func rakingSegment[T any](l RakingLayout, grid []T, r int) []T {
	return grid[r*l.SegLength : (r+1)*l.SegLength]
}

// RakingReduce folds the whole partial grid in index order: each raking
// thread serially reduces its segment into row, then the segment totals
// are folded across the subgroup. Used by the upsweep pass, which needs
// aggregates but no per-partial prefixes.
// Must be executed by the raking subgroup only.
func RakingReduce[T any](op Op[T], l RakingLayout, grid, row []T) T {
	row = row[:l.RakingThreads]
	for r := range row {
		row[r] = SerialReduce(op, rakingSegment(l, grid, r))
	}
	return SerialReduce(op, row)
}

// RakingScanSeeded converts the partial grid to exclusive prefixes in
// three steps: serial-reduce each raking segment, subgroup-scan the
// segment totals, then serially re-walk each segment seeded by its
// scanned total folded with carry. row is the subgroup scratch row for
// step two (len >= l.RakingThreads). Returns the updated carry (carry
// folded with the grid aggregate), which chains tile to tile without
// repeating the reduce step on earlier data.
// Must be executed by the raking subgroup only.
func RakingScanSeeded[T any](op Op[T], l RakingLayout, grid, row []T, carry T) T {
	row = row[:l.RakingThreads]
	for r := range row {
		row[r] = SerialReduce(op, rakingSegment(l, grid, r))
	}
	total := SubgroupScanExclusive(op, row)
	for r := range row {
		seg := rakingSegment(l, grid, r)
		SerialScan(op, seg, seg, op.Combine(carry, row[r]))
	}
	return op.Combine(carry, total)
}

// RakingScan is RakingScanSeeded without an incoming carry.
func RakingScan[T any](op Op[T], l RakingLayout, grid, row []T) T {
	return RakingScanSeeded(op, l, grid, row, op.Identity)
}
