package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/sunyans/back40computing/internal/logger"
	"github.com/sunyans/back40computing/pkg/device"
	"github.com/sunyans/back40computing/pkg/plan"
	"github.com/sunyans/back40computing/pkg/scan"
)

// Server exposes the scan service over HTTP: device inspection, scan
// submission, and retrieval of stored results.
type Server struct {
	dev   *device.Device
	store *ScanStore
	log   logger.Logger
	clock func() time.Time

	// Engines are cached per tuning signature; construction validates
	// the configuration against the device, which is worth reusing.
	mu      sync.RWMutex
	engines map[engineKey]*scan.Engine[uint32]
}

type engineKey struct {
	op      string
	threads int
	ept     int
	maxGrid int
	policy  plan.GridPolicy
}

func NewServer(dev *device.Device, store *ScanStore, log logger.Logger) *Server {
	if store == nil {
		store = NewScanStore()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		dev:     dev,
		store:   store,
		log:     log,
		clock:   time.Now,
		engines: make(map[engineKey]*scan.Engine[uint32]),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/device", s.handleDevice)
	e.POST("/v1/scans", s.handleCreateScan)
	e.GET("/v1/scans/:id", s.handleGetScan)
	e.DELETE("/v1/scans/:id", s.handleDeleteScan)
}

func (s *Server) handleDevice(c *echo.Context) error {
	caps := s.dev.Caps()
	return c.JSON(http.StatusOK, DeviceResponse{
		Name:                     caps.Name,
		ComputeUnits:             caps.ComputeUnits,
		LockStepWidth:            caps.LockStepWidth,
		MaxScratchPerBlock:       caps.MaxScratchPerBlock,
		MaxRegistersPerBlock:     caps.MaxRegistersPerBlock,
		MaxResidentBlocksPerUnit: caps.MaxResidentBlocksPerUnit,
		MemoryBytes:              caps.MemoryBytes,
		AllocatedBytes:           s.dev.Allocated(),
		Generation:               caps.Generation,
		Features:                 caps.Features,
	})
}

func (s *Server) handleCreateScan(c *echo.Context) error {
	req, err := decodeJSON[ScanRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Flags != nil && len(req.Flags) != len(req.Values) {
		return writeBadRequest(c, fmt.Sprintf("flags length %d does not match values length %d",
			len(req.Flags), len(req.Values)))
	}

	opName := req.Op
	if opName == "" {
		opName = "sum"
	}
	eng, err := s.engineFor(opName, req)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	out := make([]uint32, len(req.Values))
	start := s.clock()
	switch {
	case req.Flags != nil && req.Inclusive:
		err = eng.SegmentedInclusive(ctx, req.Values, req.Flags, out)
	case req.Flags != nil:
		err = eng.SegmentedExclusive(ctx, req.Values, req.Flags, out)
	case req.Inclusive:
		err = eng.Inclusive(ctx, req.Values, out)
	default:
		err = eng.Exclusive(ctx, req.Values, out)
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	elapsed := s.clock().Sub(start)

	resp := &ScanResponse{
		ID:             newScanID(),
		Object:         "scan",
		CreatedAt:      start.Unix(),
		Status:         "completed",
		Op:             opName,
		Inclusive:      req.Inclusive,
		Segmented:      req.Flags != nil,
		NumElements:    len(req.Values),
		Results:        out,
		DurationMicros: elapsed.Microseconds(),
	}
	s.store.Put(resp)
	s.log.Debug("scan completed",
		"id", resp.ID,
		"op", resp.Op,
		"elements", resp.NumElements,
		"duration_us", resp.DurationMicros,
	)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetScan(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "scan not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteScan(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "scan not found")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"object":  "scan.deleted",
		"deleted": true,
	})
}

func (s *Server) engineFor(opName string, req ScanRequest) (*scan.Engine[uint32], error) {
	op, err := parseOp(opName)
	if err != nil {
		return nil, err
	}
	policy, err := plan.ParsePolicy(req.Policy)
	if err != nil {
		return nil, err
	}
	key := engineKey{
		op:      opName,
		threads: req.ThreadsPerBlock,
		ept:     req.ElementsPerThread,
		maxGrid: req.MaxGridSize,
		policy:  policy,
	}

	s.mu.RLock()
	eng, ok := s.engines[key]
	s.mu.RUnlock()
	if ok {
		return eng, nil
	}

	eng, err = scan.New(s.dev, op, scan.Config{
		ThreadsPerBlock:   req.ThreadsPerBlock,
		ElementsPerThread: req.ElementsPerThread,
		MaxGridSize:       req.MaxGridSize,
		Policy:            policy,
		Logger:            s.log,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.engines[key] = eng
	s.mu.Unlock()
	return eng, nil
}

func parseOp(name string) (scan.Op[uint32], error) {
	switch name {
	case "sum":
		return scan.Sum[uint32](), nil
	case "mul":
		return scan.Mul[uint32](), nil
	case "max":
		return scan.Max[uint32](0), nil
	case "min":
		return scan.Min[uint32](^uint32(0)), nil
	}
	return scan.Op[uint32]{}, fmt.Errorf("unknown operator %q (expected sum, mul, max or min)", name)
}
