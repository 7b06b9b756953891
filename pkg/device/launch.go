package device

import (
	"errors"
	"fmt"
	"sync"
)

// Group is the handle a kernel body receives for one subgroup of one
// block. The body advances its subgroup's lanes itself, in lane order, one
// instruction step at a time: that in-order iteration is the emulation of
// hardware lock-step execution, and it is why subgroup-internal exchanges
// need no barrier. Anything crossing subgroups goes through Scratch around
// a Barrier.
type Group struct {
	block     int
	grid      int
	subgroup  int
	subgroups int
	width     int
	scratch   []byte
	bar       *barrier
}

// Block returns the block index within the grid.
func (g *Group) Block() int { return g.block }

// GridSize returns the number of blocks in the launch.
func (g *Group) GridSize() int { return g.grid }

// Subgroup returns this subgroup's index within the block.
func (g *Group) Subgroup() int { return g.subgroup }

// Subgroups returns the number of subgroups in the block.
func (g *Group) Subgroups() int { return g.subgroups }

// Width returns the lock-step width (lanes per subgroup).
func (g *Group) Width() int { return g.width }

// Threads returns the thread count of the block.
func (g *Group) Threads() int { return g.subgroups * g.width }

// Scratch returns the block's shared scratch slab. Contents persist across
// barriers within one block and are gone when the block retires.
func (g *Group) Scratch() []byte { return g.scratch }

// Barrier blocks until every subgroup of the block has arrived.
func (g *Group) Barrier() { g.bar.await() }

// BlockFunc is a kernel body. It is invoked once per subgroup per block,
// concurrently within the block.
type BlockFunc func(g *Group)

// Launch runs grid blocks of the kernel across the device's compute units
// and returns after the last block retires, which is the host-side
// pipeline barrier between dependent launches. scratchBytes is the total
// per-block scratch footprint, static plus any planner padding.
//
// Blocks execute independently and in no guaranteed order. A panic inside
// a kernel body is converted to an error and fails the whole launch.
func (d *Device) Launch(spec KernelSpec, grid, scratchBytes int, body BlockFunc) error {
	if err := spec.Validate(d.caps); err != nil {
		return err
	}
	if grid < 1 {
		return fmt.Errorf("%w: kernel %s: grid size %d", ErrConfigViolation, spec.Name, grid)
	}
	if scratchBytes < spec.StaticScratchBytes || scratchBytes > d.caps.MaxScratchPerBlock {
		return fmt.Errorf("%w: kernel %s: %d scratch bytes outside [%d, %d]",
			ErrConfigViolation, spec.Name, scratchBytes, spec.StaticScratchBytes, d.caps.MaxScratchPerBlock)
	}

	subgroups := spec.ThreadsPerBlock / d.caps.LockStepWidth
	workers := d.caps.ComputeUnits
	if workers > grid {
		workers = grid
	}

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		lastErr error
	)
	blocks := make(chan int)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for blk := range blocks {
				if err := d.runBlock(spec, blk, grid, subgroups, scratchBytes, body); err != nil {
					errOnce.Do(func() { lastErr = err })
				}
			}
		}()
	}
	for blk := 0; blk < grid; blk++ {
		blocks <- blk
	}
	close(blocks)
	wg.Wait()
	if lastErr != nil {
		return fmt.Errorf("kernel %s: block failed: %w", spec.Name, lastErr)
	}
	return nil
}

// runBlock executes one block: its subgroups run as goroutines sharing a
// scratch slab and a cyclic barrier.
func (d *Device) runBlock(spec KernelSpec, block, grid, subgroups, scratchBytes int, body BlockFunc) error {
	scratch := make([]byte, scratchBytes)
	bar := newBarrier(subgroups)
	errc := make(chan error, subgroups)

	var wg sync.WaitGroup
	wg.Add(subgroups)
	for sg := 0; sg < subgroups; sg++ {
		go func(sg int) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					bar.poison()
					errc <- executionError(rec)
				}
			}()
			body(&Group{
				block:     block,
				grid:      grid,
				subgroup:  sg,
				subgroups: subgroups,
				width:     d.caps.LockStepWidth,
				scratch:   scratch,
				bar:       bar,
			})
		}(sg)
	}
	wg.Wait()
	close(errc)

	// Prefer the root cause over barrier-poison fallout.
	var first error
	for err := range errc {
		if !errors.Is(err, errBarrierPoisoned) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func executionError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("kernel execution failed: %w", err)
	}
	return fmt.Errorf("kernel execution failed: %v", rec)
}
