package plan

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sunyans/back40computing/internal/logger"
	"github.com/sunyans/back40computing/pkg/device"
)

// GridPolicy selects how many blocks a pipeline launches relative to what
// the device can keep resident.
type GridPolicy int

const (
	// Oversubscribed launches up to one block short of full residency
	// times the unit count, trading per-block fixed overhead against
	// under-utilization on the final wave. The default.
	Oversubscribed GridPolicy = iota
	// Occupied launches no more blocks than can be simultaneously
	// resident. Required by designs with internal work-stealing or
	// device-wide synchronization, where oversubscription deadlocks or
	// thrashes.
	Occupied
)

func (p GridPolicy) String() string {
	switch p {
	case Occupied:
		return "occupied"
	case Oversubscribed:
		return "oversubscribed"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a flag/config string to a GridPolicy.
func ParsePolicy(s string) (GridPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "oversubscribed":
		return Oversubscribed, nil
	case "occupied":
		return Occupied, nil
	}
	return 0, fmt.Errorf("unknown grid policy %q (expected occupied or oversubscribed)", s)
}

// GridSize applies a policy: the residency-derived bound (or the explicit
// override, when positive) clamped so the grid never exceeds
// ceil(numElements/grain). Zero elements need zero blocks.
func GridSize(policy GridPolicy, caps device.Capabilities, occupancy, numElements, grainLog2, override int) int {
	grains := (numElements + (1 << grainLog2) - 1) >> grainLog2
	if grains < 1 {
		return 0
	}
	bound := caps.ComputeUnits * occupancy
	if policy == Oversubscribed && bound > 1 {
		bound--
	}
	if override > 0 {
		bound = override
	}
	if bound > grains {
		bound = grains
	}
	if bound < 1 {
		bound = 1
	}
	return bound
}

// LaunchConfig is the cached planning product for one kernel of a
// pipeline on one device: everything except the final problem-size clamp,
// which Grid applies per invocation.
type LaunchConfig struct {
	ThreadsPerBlock int
	// ScratchBytes is the uniform total footprint: static plus padding.
	ScratchBytes int
	Occupancy    int
	// GridLimit is the policy bound before the problem-size clamp. All
	// kernels of one pipeline share it.
	GridLimit int
}

// Planner computes and caches pipeline launch configurations for one
// device. Safe for concurrent use; entries are keyed by the kernel
// signatures, policy, and override, so problems of any size reuse them.
type Planner struct {
	caps device.Capabilities
	log  logger.Logger

	mu    sync.RWMutex
	cache map[string][]LaunchConfig
}

// NewPlanner validates the capability set once and wraps it.
func NewPlanner(caps device.Capabilities, log logger.Logger) (*Planner, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Planner{
		caps:  caps,
		log:   log,
		cache: make(map[string][]LaunchConfig),
	}, nil
}

// Caps returns the device capabilities the planner was built for.
func (p *Planner) Caps() device.Capabilities { return p.caps }

// Pipeline plans a set of kernels that run as stages of one pipeline:
// scratch footprints are padded to a uniform total, per-kernel occupancy
// computed on the padded footprint, and a shared grid limit derived from
// the lowest occupancy of the set. Any failure aborts the whole pipeline
// plan; there is no partial result.
func (p *Planner) Pipeline(policy GridPolicy, override int, specs ...device.KernelSpec) ([]LaunchConfig, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: empty pipeline", device.ErrConfigViolation)
	}
	key := pipelineKey(policy, override, specs)

	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	pads, err := PadUniformScratch(p.caps, specs...)
	if err != nil {
		return nil, err
	}

	cfgs := make([]LaunchConfig, len(specs))
	minOcc := 0
	for i, spec := range specs {
		occ, err := Occupancy(p.caps, spec, pads[i])
		if err != nil {
			return nil, err
		}
		cfgs[i] = LaunchConfig{
			ThreadsPerBlock: spec.ThreadsPerBlock,
			ScratchBytes:    spec.StaticScratchBytes + pads[i],
			Occupancy:       occ,
		}
		if minOcc == 0 || occ < minOcc {
			minOcc = occ
		}
	}

	bound := p.caps.ComputeUnits * minOcc
	if policy == Oversubscribed && bound > 1 {
		bound--
	}
	if override > 0 {
		bound = override
	}
	for i := range cfgs {
		cfgs[i].GridLimit = bound
	}

	p.log.Debug("planned pipeline",
		"kernels", len(specs),
		"policy", policy.String(),
		"occupancy", minOcc,
		"grid_limit", bound,
		"scratch_bytes", cfgs[0].ScratchBytes,
	)

	p.mu.Lock()
	p.cache[key] = cfgs
	p.mu.Unlock()
	return cfgs, nil
}

// Grid clamps a pipeline's grid limit to the problem: never beyond
// ceil(numElements/grain), zero for an empty problem.
func (p *Planner) Grid(cfg LaunchConfig, numElements, grainLog2 int) int {
	grains := (numElements + (1 << grainLog2) - 1) >> grainLog2
	if grains < 1 {
		return 0
	}
	g := cfg.GridLimit
	if g > grains {
		g = grains
	}
	if g < 1 {
		g = 1
	}
	return g
}

func pipelineKey(policy GridPolicy, override int, specs []device.KernelSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d", policy, override)
	for _, s := range specs {
		fmt.Fprintf(&b, "|%s:%d:%d:%d", s.Name, s.ThreadsPerBlock, s.StaticScratchBytes, s.RegistersPerThread)
	}
	return b.String()
}
