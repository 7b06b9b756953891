package api

// ScanRequest submits one scan problem. Values are the input elements;
// Flags, when present, mark segment heads and select the segmented
// variant.
type ScanRequest struct {
	Values []uint32 `json:"values"`
	Flags  []bool   `json:"flags,omitempty"`

	// Op selects the combine operator: sum, mul, max or min. Defaults
	// to sum.
	Op        string `json:"op,omitempty"`
	Inclusive bool   `json:"inclusive,omitempty"`

	// Optional engine tuning. Zero values take the engine defaults.
	ThreadsPerBlock   int    `json:"threads_per_block,omitempty"`
	ElementsPerThread int    `json:"elements_per_thread,omitempty"`
	MaxGridSize       int    `json:"max_grid_size,omitempty"`
	Policy            string `json:"policy,omitempty"`
}

// ScanResponse is the stored record of one completed scan.
type ScanResponse struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
	Status    string `json:"status"`

	Op          string   `json:"op"`
	Inclusive   bool     `json:"inclusive"`
	Segmented   bool     `json:"segmented"`
	NumElements int      `json:"num_elements"`
	Results     []uint32 `json:"results"`

	DurationMicros int64 `json:"duration_us"`
}

// DeviceResponse reports the device the service scans on.
type DeviceResponse struct {
	Name                     string   `json:"name"`
	ComputeUnits             int      `json:"compute_units"`
	LockStepWidth            int      `json:"lock_step_width"`
	MaxScratchPerBlock       int      `json:"max_scratch_per_block"`
	MaxRegistersPerBlock     int      `json:"max_registers_per_block"`
	MaxResidentBlocksPerUnit int      `json:"max_resident_blocks_per_unit"`
	MemoryBytes              int64    `json:"memory_bytes"`
	AllocatedBytes           int64    `json:"allocated_bytes"`
	Generation               int      `json:"generation"`
	Features                 []string `json:"features,omitempty"`
}

// ResponseError is the error body shape shared by every endpoint.
type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
