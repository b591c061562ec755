package calls

import (
	"context"
	"fmt"
	"sync"

	"voicedesk/internal/apperr"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	calls []Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(_ context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.calls {
		if existing.ProviderCallID == c.ProviderCallID {
			return fmt.Errorf("%w: call %s already recorded", apperr.ErrConflict, c.ProviderCallID)
		}
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *MemoryRepo) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}
