package device

import "fmt"

// KernelSpec is the resource footprint record for one compiled kernel
// variant. The values come from whoever "compiled" the kernel; the device
// and planner layers only consume them, they never derive footprints
// themselves.
type KernelSpec struct {
	Name            string
	ThreadsPerBlock int

	// StaticScratchBytes is the scratch the kernel declares for itself,
	// before any planner padding.
	StaticScratchBytes int
	// RegistersPerThread models the register file share one thread holds.
	RegistersPerThread int
}

// Validate reports ErrConfigViolation if the kernel cannot run on the
// device at all, independent of grid size.
func (k KernelSpec) Validate(caps Capabilities) error {
	switch {
	case k.ThreadsPerBlock < 1:
		return fmt.Errorf("%w: kernel %s: threads per block %d", ErrConfigViolation, k.Name, k.ThreadsPerBlock)
	case k.ThreadsPerBlock%caps.LockStepWidth != 0:
		return fmt.Errorf("%w: kernel %s: %d threads not a multiple of lock-step width %d",
			ErrConfigViolation, k.Name, k.ThreadsPerBlock, caps.LockStepWidth)
	case k.StaticScratchBytes < 0 || k.StaticScratchBytes > caps.MaxScratchPerBlock:
		return fmt.Errorf("%w: kernel %s: %d scratch bytes exceed block limit %d",
			ErrConfigViolation, k.Name, k.StaticScratchBytes, caps.MaxScratchPerBlock)
	case k.RegistersPerThread < 0 || k.RegistersPerThread*k.ThreadsPerBlock > caps.MaxRegistersPerBlock:
		return fmt.Errorf("%w: kernel %s: %d registers x %d threads exceed block limit %d",
			ErrConfigViolation, k.Name, k.RegistersPerThread, k.ThreadsPerBlock, caps.MaxRegistersPerBlock)
	}
	return nil
}
