package scan

import (
	"context"
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/sunyans/back40computing/internal/logger"
	"github.com/sunyans/back40computing/pkg/device"
	"github.com/sunyans/back40computing/pkg/plan"
)

// Config shapes an engine. Zero values take defaults.
type Config struct {
	// ThreadsPerBlock and ElementsPerThread size the tile
	// (threads x elements). Both must be powers of two, and the thread
	// count a multiple of the device's lock-step width.
	ThreadsPerBlock   int
	ElementsPerThread int

	// MaxGridSize is an explicit grid override; 0 lets the planner
	// decide from occupancy.
	MaxGridSize int
	// Policy selects the grid-size policy; Oversubscribed is what the
	// scan pipeline wants, there is no internal cross-block
	// synchronization to deadlock.
	Policy plan.GridPolicy

	Logger logger.Logger
}

const (
	defaultThreadsPerBlock   = 128
	defaultElementsPerThread = 4
)

func (c Config) withDefaults() Config {
	if c.ThreadsPerBlock == 0 {
		c.ThreadsPerBlock = defaultThreadsPerBlock
	}
	if c.ElementsPerThread == 0 {
		c.ElementsPerThread = defaultElementsPerThread
	}
	if c.Logger == nil {
		c.Logger = logger.Discard()
	}
	return c
}

// Engine runs plain and segmented prefix scans of T over one device. An
// engine is immutable after New and safe for concurrent use; each
// invocation gets its own decomposition and spine.
type Engine[T any] struct {
	dev *device.Device
	op  Op[T]
	cfg Config

	plain pipeline[T]
	seg   pipeline[flagged[T]]
}

// New validates the configuration against the device and builds an
// engine. Violations (tile shape, raking width, scratch, registers) are
// reported here, before anything launches.
func New[T any](dev *device.Device, op Op[T], cfg Config) (*Engine[T], error) {
	if op.Combine == nil {
		return nil, fmt.Errorf("%w: operator without a combine function", device.ErrConfigViolation)
	}
	cfg = cfg.withDefaults()
	caps := dev.Caps()

	if !isPow2(cfg.ThreadsPerBlock) || !isPow2(cfg.ElementsPerThread) {
		return nil, fmt.Errorf("%w: tile shape %dx%d must be powers of two",
			device.ErrConfigViolation, cfg.ThreadsPerBlock, cfg.ElementsPerThread)
	}
	layout, err := NewRakingLayout(cfg.ThreadsPerBlock, caps.LockStepWidth)
	if err != nil {
		return nil, err
	}
	planner, err := plan.NewPlanner(caps, cfg.Logger)
	if err != nil {
		return nil, err
	}

	tileLog2 := bits.TrailingZeros(uint(cfg.ThreadsPerBlock * cfg.ElementsPerThread))
	e := &Engine[T]{dev: dev, op: op, cfg: cfg}
	e.plain = newPipeline(dev, planner, cfg, layout, tileLog2, op,
		int(unsafe.Sizeof(*new(T))), "")
	e.seg = newPipeline(dev, planner, cfg, layout, tileLog2, liftSegmented(op),
		int(unsafe.Sizeof(*new(flagged[T]))), ".seg")

	// Reject configurations the device can never satisfy up front.
	for _, spec := range e.plain.specs {
		if err := spec.Validate(caps); err != nil {
			return nil, err
		}
	}
	for _, spec := range e.seg.specs {
		if err := spec.Validate(caps); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// TileElements returns the elements one block consumes per tile
// iteration, which is also the scheduling granularity.
func (e *Engine[T]) TileElements() int {
	return e.cfg.ThreadsPerBlock * e.cfg.ElementsPerThread
}

// Exclusive scans in into out: out[i] = fold of in[0..i). len(in) == 0 is
// a no-op. out may not alias in.
func (e *Engine[T]) Exclusive(ctx context.Context, in, out []T) error {
	return e.scan(ctx, in, out, false)
}

// Inclusive scans in into out: out[i] = fold of in[0..i].
func (e *Engine[T]) Inclusive(ctx context.Context, in, out []T) error {
	return e.scan(ctx, in, out, true)
}

// SegmentedExclusive scans in into out with segment resets: a true flag
// marks a segment head, where the running aggregate restarts from the
// identity regardless of any incoming carry. out[i] folds the values of
// in[i]'s segment strictly before i; at a head out[i] is the identity.
func (e *Engine[T]) SegmentedExclusive(ctx context.Context, in []T, flags []bool, out []T) error {
	return e.segmented(ctx, in, flags, out, false)
}

// SegmentedInclusive is the inclusive variant: at a head out[i] == in[i].
func (e *Engine[T]) SegmentedInclusive(ctx context.Context, in []T, flags []bool, out []T) error {
	return e.segmented(ctx, in, flags, out, true)
}

func (e *Engine[T]) scan(ctx context.Context, in, out []T, inclusive bool) error {
	if len(out) < len(in) {
		return fmt.Errorf("%w: output length %d below input length %d",
			device.ErrConfigViolation, len(out), len(in))
	}
	if len(in) == 0 {
		return nil
	}
	op := e.op
	fetch := func(i int) T { return in[i] }
	emit := func(i int, exclusive T) { out[i] = exclusive }
	if inclusive {
		emit = func(i int, exclusive T) { out[i] = op.Combine(exclusive, in[i]) }
	}
	return e.plain.run(ctx, len(in), fetch, emit)
}

func (e *Engine[T]) segmented(ctx context.Context, in []T, flags []bool, out []T, inclusive bool) error {
	if len(out) < len(in) {
		return fmt.Errorf("%w: output length %d below input length %d",
			device.ErrConfigViolation, len(out), len(in))
	}
	if len(flags) < len(in) {
		return fmt.Errorf("%w: flag length %d below input length %d",
			device.ErrConfigViolation, len(flags), len(in))
	}
	if len(in) == 0 {
		return nil
	}
	op := e.op
	fetch := func(i int) flagged[T] { return flagged[T]{val: in[i], head: flags[i]} }
	var emit func(int, flagged[T])
	if inclusive {
		emit = func(i int, exclusive flagged[T]) {
			if flags[i] {
				out[i] = in[i]
			} else {
				out[i] = op.Combine(exclusive.val, in[i])
			}
		}
	} else {
		emit = func(i int, exclusive flagged[T]) {
			if flags[i] {
				out[i] = op.Identity
			} else {
				out[i] = exclusive.val
			}
		}
	}
	return e.seg.run(ctx, len(in), fetch, emit)
}

// PlanStage reports one launch of a planned invocation.
type PlanStage struct {
	Name string
	Grid int
}

// PlanReport describes the launches an invocation over numElements would
// perform, without running anything.
type PlanReport struct {
	Grid         int
	Occupancy    int
	ScratchBytes int
	Stages       []PlanStage
}

// Plan reports the launch plan for a plain scan over numElements.
func (e *Engine[T]) Plan(numElements int) (PlanReport, error) {
	return e.plain.plan(numElements)
}

func isPow2(n int) bool { return n > 0 && n&(n-1) == 0 }
