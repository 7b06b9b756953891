package device

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"
)

// Capabilities describes the execution resources of one device. It is built
// once, either by Detect or literally in tests, and treated as immutable:
// planners and engines receive it by value and never mutate it.
type Capabilities struct {
	Name string

	// ComputeUnits is the number of independent block schedulers.
	ComputeUnits int
	// LockStepWidth is the subgroup width: the number of lanes that
	// execute each instruction simultaneously. Always a power of two.
	LockStepWidth int

	// Per-block residency limits.
	MaxScratchPerBlock       int
	MaxRegistersPerBlock     int
	MaxResidentBlocksPerUnit int

	// ScratchAllocUnit is the granularity scratch allocations are rounded
	// up to when computing occupancy.
	ScratchAllocUnit int

	// MemoryBytes is the global allocation budget.
	MemoryBytes int64

	// Generation is an ordinal for heuristic selection; higher is newer.
	Generation int
	// Features lists the ISA features the host exposes, informational only.
	Features []string
}

// Emulated-device defaults, sized like a mid-range discrete part.
const (
	defaultMaxScratchPerBlock   = 48 << 10
	defaultMaxRegistersPerBlock = 64 << 10
	defaultMaxResidentBlocks    = 8
	defaultScratchAllocUnit     = 256
	defaultMemoryBytes          = 1 << 30
)

// Detect queries the host once and builds the emulated device's
// capabilities. Compute units map to CPUs and the lock-step width to the
// widest 32-bit vector the host can retire per instruction.
func Detect() (Capabilities, error) {
	width, gen := lockStepWidth()
	caps := Capabilities{
		Name:                     runtime.GOOS + "/" + runtime.GOARCH,
		ComputeUnits:             runtime.NumCPU(),
		LockStepWidth:            width,
		MaxScratchPerBlock:       defaultMaxScratchPerBlock,
		MaxRegistersPerBlock:     defaultMaxRegistersPerBlock,
		MaxResidentBlocksPerUnit: defaultMaxResidentBlocks,
		ScratchAllocUnit:         defaultScratchAllocUnit,
		MemoryBytes:              defaultMemoryBytes,
		Generation:               gen,
		Features:                 hostFeatures(),
	}
	if err := caps.Validate(); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

// Validate reports ErrDeviceQuery if the capability values are unusable.
// Everything downstream assumes a validated Capabilities value.
func (c Capabilities) Validate() error {
	switch {
	case c.ComputeUnits < 1:
		return fmt.Errorf("%w: compute units %d", ErrDeviceQuery, c.ComputeUnits)
	case c.LockStepWidth < 1 || c.LockStepWidth&(c.LockStepWidth-1) != 0:
		return fmt.Errorf("%w: lock-step width %d is not a power of two", ErrDeviceQuery, c.LockStepWidth)
	case c.MaxScratchPerBlock < 1:
		return fmt.Errorf("%w: max scratch per block %d", ErrDeviceQuery, c.MaxScratchPerBlock)
	case c.MaxRegistersPerBlock < 1:
		return fmt.Errorf("%w: max registers per block %d", ErrDeviceQuery, c.MaxRegistersPerBlock)
	case c.MaxResidentBlocksPerUnit < 1:
		return fmt.Errorf("%w: max resident blocks per unit %d", ErrDeviceQuery, c.MaxResidentBlocksPerUnit)
	case c.ScratchAllocUnit < 1:
		return fmt.Errorf("%w: scratch allocation unit %d", ErrDeviceQuery, c.ScratchAllocUnit)
	case c.MemoryBytes < 0:
		return fmt.Errorf("%w: memory budget %d", ErrDeviceQuery, c.MemoryBytes)
	}
	return nil
}

func lockStepWidth() (width, generation int) {
	switch {
	case cpu.X86.HasAVX512F:
		return 16, 3
	case cpu.X86.HasAVX2:
		return 8, 2
	case cpu.ARM64.HasASIMD:
		return 4, 2
	default:
		return 4, 1
	}
}

func hostFeatures() []string {
	var out []string
	for _, f := range []struct {
		name string
		on   bool
	}{
		{"avx", cpu.X86.HasAVX},
		{"avx2", cpu.X86.HasAVX2},
		{"avx512f", cpu.X86.HasAVX512F},
		{"fma", cpu.X86.HasFMA},
		{"sse42", cpu.X86.HasSSE42},
		{"asimd", cpu.ARM64.HasASIMD},
		{"sve", cpu.ARM64.HasSVE},
	} {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}
