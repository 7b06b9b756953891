package scan

import (
	"context"

	"github.com/sunyans/back40computing/internal/logger"
	"github.com/sunyans/back40computing/pkg/device"
	"github.com/sunyans/back40computing/pkg/plan"
)

// Register-footprint model for the kernel variants, standing in for the
// compiler's resource report on a real target. The planner only consumes
// the numbers, it never cares where they came from.
const (
	upsweepRegisters  = 10
	sweepRegistersFix = 12
)

// pipeline binds one element type's three kernels to a device and
// planner. Built once per engine; run per invocation.
type pipeline[E any] struct {
	dev     *device.Device
	planner *plan.Planner
	log     logger.Logger

	op       Op[E]
	layout   RakingLayout
	tileLog2 int
	ept      int
	policy   plan.GridPolicy
	maxGrid  int

	// specs: [0] upsweep, [1] spine, [2] downsweep.
	specs [3]device.KernelSpec
}

func newPipeline[E any](dev *device.Device, planner *plan.Planner, cfg Config, layout RakingLayout, tileLog2 int, op Op[E], elemSize int, tag string) pipeline[E] {
	scratch := (layout.Partials() + layout.RakingThreads) * elemSize
	sweepRegs := sweepRegistersFix + 2*cfg.ElementsPerThread
	return pipeline[E]{
		dev:      dev,
		planner:  planner,
		log:      cfg.Logger,
		op:       op,
		layout:   layout,
		tileLog2: tileLog2,
		ept:      cfg.ElementsPerThread,
		policy:   cfg.Policy,
		maxGrid:  cfg.MaxGridSize,
		specs: [3]device.KernelSpec{
			{
				Name:               "scan.upsweep" + tag,
				ThreadsPerBlock:    cfg.ThreadsPerBlock,
				StaticScratchBytes: scratch,
				RegistersPerThread: upsweepRegisters,
			},
			{
				Name:               "scan.spine" + tag,
				ThreadsPerBlock:    cfg.ThreadsPerBlock,
				StaticScratchBytes: scratch,
				RegistersPerThread: sweepRegs,
			},
			{
				Name:               "scan.downsweep" + tag,
				ThreadsPerBlock:    cfg.ThreadsPerBlock,
				StaticScratchBytes: scratch,
				RegistersPerThread: sweepRegs,
			},
		},
	}
}

// plan reports the launches a run over n elements would perform.
func (p *pipeline[E]) plan(n int) (PlanReport, error) {
	cfgs, err := p.planner.Pipeline(p.policy, p.maxGrid, p.specs[:]...)
	if err != nil {
		return PlanReport{}, err
	}
	grid := p.planner.Grid(cfgs[2], n, p.tileLog2)
	occ := cfgs[0].Occupancy
	for _, cfg := range cfgs {
		if cfg.Occupancy < occ {
			occ = cfg.Occupancy
		}
	}
	spineGrid := 1
	if grid == 0 {
		spineGrid = 0
	}
	return PlanReport{
		Grid:         grid,
		Occupancy:    occ,
		ScratchBytes: cfgs[0].ScratchBytes,
		Stages: []PlanStage{
			{Name: p.specs[0].Name, Grid: grid},
			{Name: p.specs[1].Name, Grid: spineGrid},
			{Name: p.specs[2].Name, Grid: grid},
		},
	}, nil
}

// run executes one full upsweep -> spine -> downsweep invocation over n
// elements. Each stage runs to completion before the next starts: Launch
// returning is the pipeline barrier that makes the spine safe to read.
// The context is consulted only between stages; a started stage is never
// interrupted.
func (p *pipeline[E]) run(ctx context.Context, n int, fetch func(int) E, emit func(int, E)) error {
	cfgs, err := p.planner.Pipeline(p.policy, p.maxGrid, p.specs[:]...)
	if err != nil {
		return err
	}
	grid := p.planner.Grid(cfgs[2], n, p.tileLog2)
	d := Decompose(n, p.tileLog2, grid)

	spineBuf, err := device.AllocOf[E](p.dev, grid)
	if err != nil {
		return err
	}
	defer spineBuf.Free()
	spine := device.View[E](spineBuf)

	stages := [3]struct {
		grid int
		body device.BlockFunc
	}{
		{grid, upsweepKernel(p.op, p.layout, d, p.tileLog2, p.ept, fetch, spine)},
		{1, spineKernel(p.op, p.layout, p.tileLog2, p.ept, spine)},
		{grid, downsweepKernel(p.op, p.layout, d, p.tileLog2, p.ept, spine, fetch, emit)},
	}
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.log.Debug("launching pass",
			"kernel", p.specs[i].Name,
			"grid", stage.grid,
			"elements", n,
			"scratch_bytes", cfgs[i].ScratchBytes,
		)
		if err := p.dev.Launch(p.specs[i], stage.grid, cfgs[i].ScratchBytes, stage.body); err != nil {
			return err
		}
	}
	return nil
}
