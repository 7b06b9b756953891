package scan

import "testing"

// checkPartition asserts the defining property of a decomposition: block
// ranges tile [0, n) contiguously, exactly once, with every guarded
// region strictly shorter than one tile.
func checkPartition(t *testing.T, n, grainLog2, grid, tileLog2 int) {
	t.Helper()
	d := Decompose(n, grainLog2, grid)
	next := 0
	for b := 0; b < grid; b++ {
		lim := d.BlockLimits(tileLog2, b)
		if lim.Offset != next {
			t.Fatalf("n=%d grid=%d block=%d: offset %d, want %d", n, grid, b, lim.Offset, next)
		}
		if lim.Elements < 0 {
			t.Fatalf("n=%d grid=%d block=%d: negative element count %d", n, grid, b, lim.Elements)
		}
		if lim.GuardedElements >= 1<<tileLog2 {
			t.Fatalf("n=%d grid=%d block=%d: guarded region %d not shorter than a tile", n, grid, b, lim.GuardedElements)
		}
		if lim.GuardedOffset != lim.Offset+lim.Elements-lim.GuardedElements {
			t.Fatalf("n=%d grid=%d block=%d: guarded offset %d inconsistent with %+v", n, grid, b, lim.GuardedOffset, lim)
		}
		unguarded := lim.GuardedOffset - lim.Offset
		if unguarded%(1<<tileLog2) != 0 {
			t.Fatalf("n=%d grid=%d block=%d: unguarded span %d not whole tiles", n, grid, b, unguarded)
		}
		next = lim.Offset + lim.Elements
	}
	if next != n {
		t.Fatalf("n=%d grid=%d: blocks cover [0, %d), want [0, %d)", n, grid, next, n)
	}
}

func TestBlockLimitsPartition(t *testing.T) {
	const tileLog2 = 4 // 16-element tiles
	for _, n := range []int{1, 15, 16, 17, 64, 100, 1000, 4096, 4097} {
		for _, grid := range []int{1, 2, 3, 7, 16} {
			d := Decompose(n, tileLog2, grid)
			if grid > d.TotalGrains() {
				continue
			}
			checkPartition(t, n, tileLog2, grid, tileLog2)
		}
	}
}

func TestBlockLimitsLowerBlocksAbsorbRemainder(t *testing.T) {
	// 10 grains of 16 over 4 blocks: 2 extra grains go to blocks 0 and 1.
	d := Decompose(160, 4, 4)
	wants := []int{48, 48, 32, 32}
	for b, want := range wants {
		if lim := d.BlockLimits(4, b); lim.Elements != want {
			t.Fatalf("block %d: %d elements, want %d", b, lim.Elements, want)
		}
	}
}

func TestBlockLimitsGuardedOnlyTrailing(t *testing.T) {
	// Granularity equals the tile: only the last block sees a partial
	// tile.
	const tileLog2 = 4
	d := Decompose(100, tileLog2, 3)
	for b := 0; b < 3; b++ {
		lim := d.BlockLimits(tileLog2, b)
		if b < 2 && lim.GuardedElements != 0 {
			t.Fatalf("block %d: unexpected guarded region %d", b, lim.GuardedElements)
		}
	}
	last := d.BlockLimits(tileLog2, 2)
	if last.GuardedElements != 100%16 {
		t.Fatalf("last block guarded %d, want %d", last.GuardedElements, 100%16)
	}
}

func TestBlockLimitsShrinkingSweep(t *testing.T) {
	// Repeatedly shrinking the problem by one grain must preserve the
	// partition at every size, down through sub-tile problems.
	const tileLog2 = 4
	for n := 4096; n >= 0; n -= 16 {
		if n == 0 {
			continue
		}
		d := Decompose(n, tileLog2, 8)
		grid := 8
		if grid > d.TotalGrains() {
			grid = d.TotalGrains()
		}
		checkPartition(t, n, tileLog2, grid, tileLog2)
	}
}
