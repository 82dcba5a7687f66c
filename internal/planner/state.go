package planner

import (
	"sync"
	"time"
)

// ProviderState remembers that the planning provider rejected its
// credential. While disabled, the Proposer skips the provider and plans
// with the fallback rule until an operator calls Reset.
type ProviderState struct {
	mu         sync.RWMutex
	disabled   bool
	reason     string
	code       string
	disabledAt time.Time
}

func NewProviderState() *ProviderState {
	return &ProviderState{}
}

func (s *ProviderState) Disable(reason, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return
	}
	s.disabled = true
	s.reason = reason
	s.code = code
	s.disabledAt = time.Now()
}

func (s *ProviderState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = false
	s.reason = ""
	s.code = ""
	s.disabledAt = time.Time{}
}

// Status reports whether the provider is disabled, and why.
func (s *ProviderState) Status() (disabled bool, reason, code string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disabled, s.reason, s.code
}
