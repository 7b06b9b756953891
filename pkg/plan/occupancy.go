// Package plan sizes kernel launches: per-kernel occupancy, uniform
// scratch padding across pipeline stages, and grid-size policies. All
// inputs are immutable capability and footprint values; a query that
// produced unusable values aborts planning, nothing is retried or
// approximated here.
package plan

import (
	"fmt"

	"github.com/sunyans/back40computing/pkg/device"
)

// Occupancy returns how many blocks of the kernel can be simultaneously
// resident on one compute unit. dynamicScratch is added to the kernel's
// static footprint and the sum rounded up to the device's allocation unit
// before dividing into the block limit. An occupancy of zero means the
// kernel cannot run at all and is reported as a configuration violation;
// it is never rounded up to one.
func Occupancy(caps device.Capabilities, spec device.KernelSpec, dynamicScratch int) (int, error) {
	if err := caps.Validate(); err != nil {
		return 0, err
	}
	if err := spec.Validate(caps); err != nil {
		return 0, err
	}
	if dynamicScratch < 0 {
		return 0, fmt.Errorf("%w: kernel %s: negative dynamic scratch %d",
			device.ErrConfigViolation, spec.Name, dynamicScratch)
	}

	occ := caps.MaxResidentBlocksPerUnit
	if scratch := roundScratch(caps, spec.StaticScratchBytes+dynamicScratch); scratch > 0 {
		if by := caps.MaxScratchPerBlock / scratch; by < occ {
			occ = by
		}
	}
	if regs := spec.RegistersPerThread * spec.ThreadsPerBlock; regs > 0 {
		if by := caps.MaxRegistersPerBlock / regs; by < occ {
			occ = by
		}
	}
	if occ < 1 {
		return 0, fmt.Errorf("%w: kernel %s fits zero blocks per compute unit",
			device.ErrConfigViolation, spec.Name)
	}
	return occ, nil
}

// PadUniformScratch returns, aligned with specs, the dynamic padding that
// brings every kernel of a pipeline to one identical total per-block
// scratch footprint. Uneven static footprints would otherwise silently
// skew relative occupancy, and with it scheduling, between stages.
func PadUniformScratch(caps device.Capabilities, specs ...device.KernelSpec) ([]int, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	target := 0
	for _, spec := range specs {
		if err := spec.Validate(caps); err != nil {
			return nil, err
		}
		if r := roundScratch(caps, spec.StaticScratchBytes); r > target {
			target = r
		}
	}
	if target > caps.MaxScratchPerBlock {
		return nil, fmt.Errorf("%w: uniform scratch footprint %d exceeds block limit %d",
			device.ErrConfigViolation, target, caps.MaxScratchPerBlock)
	}
	pads := make([]int, len(specs))
	for i, spec := range specs {
		pads[i] = target - spec.StaticScratchBytes
	}
	return pads, nil
}

func roundScratch(caps device.Capabilities, n int) int {
	unit := caps.ScratchAllocUnit
	if unit <= 1 {
		return n
	}
	return (n + unit - 1) / unit * unit
}
