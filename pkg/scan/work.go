package scan

// Decomposition partitions the 1-D index range [0, NumElements) among
// GridSize blocks at grain granularity. It is computed fresh per pipeline
// invocation and read-only afterwards.
type Decomposition struct {
	NumElements int
	GrainLog2   int
	GridSize    int

	totalGrains    int
	grainsPerBlock int
	extraGrains    int
}

// Decompose divides ceil(numElements/grain) grains across gridSize blocks.
// Blocks with lower index absorb the remainder grains; deterministic, not
// balanced beyond grain granularity.
func Decompose(numElements, grainLog2, gridSize int) Decomposition {
	grain := 1 << grainLog2
	d := Decomposition{
		NumElements: numElements,
		GrainLog2:   grainLog2,
		GridSize:    gridSize,
		totalGrains: (numElements + grain - 1) >> grainLog2,
	}
	if gridSize > 0 {
		d.grainsPerBlock = d.totalGrains / gridSize
		d.extraGrains = d.totalGrains - d.grainsPerBlock*gridSize
	}
	return d
}

// TotalGrains returns the grain count covering the whole problem.
func (d Decomposition) TotalGrains() int { return d.totalGrains }

// BlockLimits is one block's slice of the problem. [Offset,
// Offset+Elements) is the full range; the trailing sub-tile remainder
// [GuardedOffset, GuardedOffset+GuardedElements) needs bounds-checked
// access, everything before it is whole tiles on the unchecked fast path.
type BlockLimits struct {
	Offset   int
	Elements int

	GuardedOffset   int
	GuardedElements int
}

// BlockLimits computes block's range. tileLog2 is the log2 tile element
// count used to split off the guarded remainder. The union of every
// block's range covers [0, NumElements) exactly once.
func (d Decomposition) BlockLimits(tileLog2, block int) BlockLimits {
	grains := d.grainsPerBlock
	offGrains := block * grains
	if block < d.extraGrains {
		grains++
		offGrains += block
	} else {
		offGrains += d.extraGrains
	}

	off := offGrains << d.GrainLog2
	end := (offGrains + grains) << d.GrainLog2
	if off > d.NumElements {
		off = d.NumElements
	}
	if end > d.NumElements {
		end = d.NumElements
	}

	n := end - off
	guarded := n & (1<<tileLog2 - 1)
	return BlockLimits{
		Offset:          off,
		Elements:        n,
		GuardedOffset:   off + n - guarded,
		GuardedElements: guarded,
	}
}
