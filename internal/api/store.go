package api

import (
	"sync"

	"github.com/google/uuid"
)

// ScanStore keeps completed scan records for retrieval by id.
type ScanStore struct {
	mu    sync.Mutex
	scans map[string]*ScanResponse
}

func NewScanStore() *ScanStore {
	return &ScanStore{
		scans: make(map[string]*ScanResponse),
	}
}

func (s *ScanStore) Put(resp *ScanResponse) {
	s.mu.Lock()
	s.scans[resp.ID] = resp
	s.mu.Unlock()
}

func (s *ScanStore) Get(id string) (*ScanResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.scans[id]
	return resp, ok
}

func (s *ScanStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[id]; !ok {
		return false
	}
	delete(s.scans, id)
	return true
}

func newScanID() string {
	return "scan-" + uuid.NewString()
}
