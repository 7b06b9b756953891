package plan

import (
	"errors"
	"testing"

	"github.com/sunyans/back40computing/pkg/device"
)

func testCaps() device.Capabilities {
	return device.Capabilities{
		Name:                     "test",
		ComputeUnits:             4,
		LockStepWidth:            4,
		MaxScratchPerBlock:       16 << 10,
		MaxRegistersPerBlock:     8 << 10,
		MaxResidentBlocksPerUnit: 8,
		ScratchAllocUnit:         256,
		MemoryBytes:              1 << 20,
	}
}

func spec(name string, threads, scratch, regs int) device.KernelSpec {
	return device.KernelSpec{
		Name:               name,
		ThreadsPerBlock:    threads,
		StaticScratchBytes: scratch,
		RegistersPerThread: regs,
	}
}

func TestOccupancy(t *testing.T) {
	caps := testCaps()
	cases := []struct {
		name    string
		spec    device.KernelSpec
		dynamic int
		want    int
	}{
		// No scratch, no registers: residency limit decides.
		{"residency bound", spec("k", 8, 0, 0), 0, 8},
		// 4KiB rounded scratch in a 16KiB block: 4 blocks fit.
		{"scratch bound", spec("k", 8, 4096, 0), 0, 4},
		// Scratch rounds up to the allocation unit before dividing.
		{"scratch rounding", spec("k", 8, 4097, 0), 0, 3},
		// Dynamic scratch joins the static footprint.
		{"dynamic scratch", spec("k", 8, 2048, 0), 2048, 4},
		// 8 threads x 256 registers = 2048 of 8192: 4 blocks fit.
		{"register bound", spec("k", 8, 0, 256), 0, 4},
		// Lowest constraint wins.
		{"combined", spec("k", 8, 8192, 256), 0, 2},
	}
	for _, tc := range cases {
		got, err := Occupancy(caps, tc.spec, tc.dynamic)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: occupancy %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestOccupancyMonotone(t *testing.T) {
	// Growing either footprint never increases occupancy.
	caps := testCaps()
	prev := caps.MaxResidentBlocksPerUnit + 1
	for scratch := 0; scratch <= caps.MaxScratchPerBlock; scratch += 1024 {
		occ, err := Occupancy(caps, spec("k", 8, scratch, 0), 0)
		if err != nil {
			t.Fatalf("scratch %d: %v", scratch, err)
		}
		if occ > prev {
			t.Fatalf("scratch %d: occupancy rose from %d to %d", scratch, prev, occ)
		}
		prev = occ
	}
	prev = caps.MaxResidentBlocksPerUnit + 1
	for regs := 0; regs <= caps.MaxRegistersPerBlock/8; regs += 64 {
		occ, err := Occupancy(caps, spec("k", 8, 0, regs), 0)
		if err != nil {
			t.Fatalf("regs %d: %v", regs, err)
		}
		if occ > prev {
			t.Fatalf("regs %d: occupancy rose from %d to %d", regs, prev, occ)
		}
		prev = occ
	}
}

func TestOccupancyZeroIsError(t *testing.T) {
	caps := testCaps()
	// Static footprint fits the block but leaves no room once the dynamic
	// share is added.
	_, err := Occupancy(caps, spec("k", 8, caps.MaxScratchPerBlock, 0), caps.ScratchAllocUnit)
	if !errors.Is(err, device.ErrConfigViolation) {
		t.Fatalf("got %v, want ErrConfigViolation", err)
	}
}

func TestPadUniformScratch(t *testing.T) {
	caps := testCaps()
	specs := []device.KernelSpec{
		spec("a", 8, 1000, 0),
		spec("b", 8, 4000, 0),
		spec("c", 8, 0, 0),
	}
	pads, err := PadUniformScratch(caps, specs...)
	if err != nil {
		t.Fatal(err)
	}
	if len(pads) != len(specs) {
		t.Fatalf("got %d pads, want %d", len(pads), len(specs))
	}
	total := specs[0].StaticScratchBytes + pads[0]
	if total%caps.ScratchAllocUnit != 0 {
		t.Errorf("uniform footprint %d not aligned to allocation unit", total)
	}
	for i := range specs {
		if got := specs[i].StaticScratchBytes + pads[i]; got != total {
			t.Errorf("kernel %s: footprint %d, want %d", specs[i].Name, got, total)
		}
		if pads[i] < 0 {
			t.Errorf("kernel %s: negative pad %d", specs[i].Name, pads[i])
		}
	}

	over := spec("d", 8, caps.MaxScratchPerBlock, 0)
	if _, err := PadUniformScratch(caps, over); err == nil {
		// Exactly at the limit is fine; one unit beyond is not.
		over.StaticScratchBytes++
		if _, err := PadUniformScratch(caps, over); !errors.Is(err, device.ErrConfigViolation) {
			t.Fatalf("over-limit target: got %v", err)
		}
	}
}

func TestGridSize(t *testing.T) {
	caps := testCaps() // 4 units
	const grainLog2 = 4 // 16-element grains
	cases := []struct {
		name      string
		policy    GridPolicy
		occupancy int
		elements  int
		override  int
		want      int
	}{
		{"empty problem", Occupied, 4, 0, 0, 0},
		{"occupied bound", Occupied, 4, 1 << 20, 0, 16},
		{"oversubscribed drops one", Oversubscribed, 4, 1 << 20, 0, 15},
		{"oversubscribed floor", Oversubscribed, 1, 16, 0, 1},
		{"clamped to grains", Occupied, 4, 100, 0, 7},
		{"override replaces bound", Occupied, 4, 1 << 20, 3, 3},
		{"override still clamped", Occupied, 4, 32, 100, 2},
	}
	for _, tc := range cases {
		got := GridSize(tc.policy, caps, tc.occupancy, tc.elements, grainLog2, tc.override)
		if got != tc.want {
			t.Errorf("%s: grid %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]GridPolicy{
		"":               Oversubscribed,
		"oversubscribed": Oversubscribed,
		"occupied":       Occupied,
		" Occupied ":     Occupied,
	} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("greedy"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestPipelineSharedLimits(t *testing.T) {
	planner, err := NewPlanner(testCaps(), nil)
	if err != nil {
		t.Fatal(err)
	}
	specs := []device.KernelSpec{
		spec("up", 8, 512, 8),
		spec("spine", 8, 512, 16),
		spec("down", 8, 4096, 16),
	}
	cfgs, err := planner.Pipeline(Occupied, 0, specs...)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 3 {
		t.Fatalf("got %d configs", len(cfgs))
	}
	for i := 1; i < len(cfgs); i++ {
		if cfgs[i].ScratchBytes != cfgs[0].ScratchBytes {
			t.Errorf("stage %d scratch %d differs from %d", i, cfgs[i].ScratchBytes, cfgs[0].ScratchBytes)
		}
		if cfgs[i].GridLimit != cfgs[0].GridLimit {
			t.Errorf("stage %d grid limit %d differs from %d", i, cfgs[i].GridLimit, cfgs[0].GridLimit)
		}
	}
	// The shared limit follows the least occupied stage.
	minOcc := cfgs[0].Occupancy
	for _, cfg := range cfgs {
		if cfg.Occupancy < minOcc {
			minOcc = cfg.Occupancy
		}
	}
	if want := testCaps().ComputeUnits * minOcc; cfgs[0].GridLimit != want {
		t.Errorf("grid limit %d, want %d", cfgs[0].GridLimit, want)
	}

	// Same signature hits the cache and returns identical plans.
	again, err := planner.Pipeline(Occupied, 0, specs...)
	if err != nil {
		t.Fatal(err)
	}
	for i := range cfgs {
		if again[i] != cfgs[i] {
			t.Errorf("stage %d: cached plan %+v differs from %+v", i, again[i], cfgs[i])
		}
	}

	// A different policy is a different plan.
	over, err := planner.Pipeline(Oversubscribed, 0, specs...)
	if err != nil {
		t.Fatal(err)
	}
	if over[0].GridLimit != cfgs[0].GridLimit-1 {
		t.Errorf("oversubscribed limit %d, want %d", over[0].GridLimit, cfgs[0].GridLimit-1)
	}

	if _, err := planner.Pipeline(Occupied, 0); !errors.Is(err, device.ErrConfigViolation) {
		t.Fatalf("empty pipeline: got %v", err)
	}
}

func TestPlannerGridClamp(t *testing.T) {
	planner, err := NewPlanner(testCaps(), nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := LaunchConfig{GridLimit: 16}
	if got := planner.Grid(cfg, 0, 4); got != 0 {
		t.Errorf("empty problem: grid %d", got)
	}
	if got := planner.Grid(cfg, 33, 4); got != 3 {
		t.Errorf("33 elements: grid %d, want 3", got)
	}
	if got := planner.Grid(cfg, 1<<20, 4); got != 16 {
		t.Errorf("large problem: grid %d, want 16", got)
	}
}
