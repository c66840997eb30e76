package gateway

import (
	"context"
	"sync"

	"github.com/alovak/cardflow-gateway/gateway/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps records for the lifetime of the process.
// Records are copied in and out so callers never share stored state.
type MemoryRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]models.PaymentRecord
}

func NewMemoryRepository(seed ...*models.PaymentRecord) *MemoryRepository {
	r := &MemoryRepository{
		payments: make(map[uuid.UUID]models.PaymentRecord, len(seed)),
	}
	for _, p := range seed {
		r.payments[p.ID] = *p
	}
	return r
}

func (r *MemoryRepository) Save(ctx context.Context, record *models.PaymentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[record.ID] = *record
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }
