package scan

import (
	"github.com/sunyans/back40computing/pkg/device"
)

// Kernel bodies for the three pipeline stages. They are generic over the
// element so the segmented pipeline can run them over (value, head) pairs.
// Elements enter through fetch and leave through emit; the adapters also
// absorb the inclusive/exclusive and flag-select differences, keeping the
// tile machinery identical across modes.
//
// Scratch layout per block: layout.Partials() elements of partial grid,
// then layout.RakingThreads elements of subgroup row.

func scratchViews[E any](g *device.Group, layout RakingLayout) (grid, row []E) {
	all := device.ViewBytes[E](g.Scratch())
	return all[:layout.Partials()], all[layout.Partials() : layout.Partials()+layout.RakingThreads]
}

// upsweepKernel reduces each block's range to a single partial in
// spine[block]. Tiles are folded strictly in index order (per-thread
// serial reduction of a contiguous run, then the raking fold across the
// partial grid) so non-commutative operators see the sequential order.
// The guarded remainder is folded in with bounds checks.
func upsweepKernel[E any](op Op[E], layout RakingLayout, d Decomposition, tileLog2, ept int, fetch func(int) E, spine []E) device.BlockFunc {
	tile := 1 << tileLog2
	return func(g *device.Group) {
		grid, row := scratchViews[E](g, layout)
		lim := d.BlockLimits(tileLog2, g.Block())
		carry := op.Identity

		for off := lim.Offset; off < lim.GuardedOffset; off += tile {
			for lane := 0; lane < g.Width(); lane++ {
				t := g.Subgroup()*g.Width() + lane
				base := off + t*ept
				acc := op.Identity
				for j := 0; j < ept; j++ {
					acc = op.Combine(acc, fetch(base+j))
				}
				grid[t] = acc
			}
			g.Barrier()
			if g.Subgroup() == 0 {
				carry = op.Combine(carry, RakingReduce(op, layout, grid, row))
			}
			g.Barrier()
		}

		if lim.GuardedElements > 0 {
			end := lim.GuardedOffset + lim.GuardedElements
			for lane := 0; lane < g.Width(); lane++ {
				t := g.Subgroup()*g.Width() + lane
				base := lim.GuardedOffset + t*ept
				acc := op.Identity
				for j := 0; j < ept && base+j < end; j++ {
					acc = op.Combine(acc, fetch(base+j))
				}
				grid[t] = acc
			}
			g.Barrier()
			if g.Subgroup() == 0 {
				carry = op.Combine(carry, RakingReduce(op, layout, grid, row))
			}
		}

		if g.Subgroup() == 0 {
			spine[g.Block()] = carry
		}
	}
}

// downsweepKernel re-reads the block's range and emits each element's
// exclusive prefix, seeded by carries[block] (identity when carries is
// nil). Per tile: threads stage their run in registers and drop one
// partial each into the grid, the raking subgroup converts the grid to
// seeded prefixes, then every thread re-walks its registers emitting
// per-element prefixes. The carry chains tile to tile inside the raking
// subgroup.
func downsweepKernel[E any](op Op[E], layout RakingLayout, d Decomposition, tileLog2, ept int, carries []E, fetch func(int) E, emit func(i int, exclusive E)) device.BlockFunc {
	tile := 1 << tileLog2
	return func(g *device.Group) {
		grid, row := scratchViews[E](g, layout)
		lim := d.BlockLimits(tileLog2, g.Block())
		regs := make([]E, g.Width()*ept)

		carry := op.Identity
		if carries != nil {
			carry = carries[g.Block()]
		}

		for off := lim.Offset; off < lim.GuardedOffset; off += tile {
			for lane := 0; lane < g.Width(); lane++ {
				t := g.Subgroup()*g.Width() + lane
				base := off + t*ept
				seg := regs[lane*ept : (lane+1)*ept]
				for j := range seg {
					seg[j] = fetch(base + j)
				}
				grid[t] = SerialReduce(op, seg)
			}
			g.Barrier()
			if g.Subgroup() == 0 {
				carry = RakingScanSeeded(op, layout, grid, row, carry)
			}
			g.Barrier()
			for lane := 0; lane < g.Width(); lane++ {
				t := g.Subgroup()*g.Width() + lane
				base := off + t*ept
				seg := regs[lane*ept : (lane+1)*ept]
				acc := grid[t]
				for j, x := range seg {
					emit(base+j, acc)
					acc = op.Combine(acc, x)
				}
			}
			g.Barrier()
		}

		if lim.GuardedElements > 0 {
			end := lim.GuardedOffset + lim.GuardedElements
			for lane := 0; lane < g.Width(); lane++ {
				t := g.Subgroup()*g.Width() + lane
				base := lim.GuardedOffset + t*ept
				seg := regs[lane*ept : (lane+1)*ept]
				for j := range seg {
					if base+j < end {
						seg[j] = fetch(base + j)
					} else {
						seg[j] = op.Identity
					}
				}
				grid[t] = SerialReduce(op, seg)
			}
			g.Barrier()
			if g.Subgroup() == 0 {
				carry = RakingScanSeeded(op, layout, grid, row, carry)
			}
			g.Barrier()
			for lane := 0; lane < g.Width(); lane++ {
				t := g.Subgroup()*g.Width() + lane
				base := lim.GuardedOffset + t*ept
				acc := grid[t]
				for j := 0; j < ept && base+j < end; j++ {
					emit(base+j, acc)
					acc = op.Combine(acc, regs[lane*ept+j])
				}
			}
		}
	}
}

// spineKernel scans the spine buffer in place, exclusively, with a single
// block: spine[b] becomes the exclusive carry for block b of the
// downsweep. The in-place aliasing is safe because each tile is staged
// into registers before anything is emitted.
func spineKernel[E any](op Op[E], layout RakingLayout, tileLog2, ept int, spine []E) device.BlockFunc {
	d := Decompose(len(spine), tileLog2, 1)
	fetch := func(i int) E { return spine[i] }
	emit := func(i int, exclusive E) { spine[i] = exclusive }
	return downsweepKernel(op, layout, d, tileLog2, ept, nil, fetch, emit)
}
