package repository

import (
	"context"
	"sync"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/model"
)

// MemoryEstimateStore guarda estimativas em memória.
// Usado quando DB_HOST não está configurado e nos testes.
type MemoryEstimateStore struct {
	mu    sync.RWMutex
	items map[string]model.StoredEstimate
	now   func() time.Time
}

// NewMemoryEstimateStore cria um repositório vazio
func NewMemoryEstimateStore() *MemoryEstimateStore {
	return &MemoryEstimateStore{
		items: make(map[string]model.StoredEstimate),
		now:   time.Now,
	}
}

// Upsert insere ou atualiza a estimativa de uma issue
func (r *MemoryEstimateStore) Upsert(_ context.Context, e model.StoredEstimate) (*model.StoredEstimate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e.CreatedAt = now
	if existing, ok := r.items[e.IssueID]; ok {
		e.CreatedAt = existing.CreatedAt
	}
	e.UpdatedAt = now

	r.items[e.IssueID] = e
	return &e, nil
}

// Get obtém a estimativa de uma issue
func (r *MemoryEstimateStore) Get(_ context.Context, issueID string) (*model.StoredEstimate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[issueID]
	if !ok {
		return nil, ErrEstimateNotFound
	}
	return &e, nil
}

// ListByIssueIDs retorna as estimativas existentes das issues informadas
func (r *MemoryEstimateStore) ListByIssueIDs(_ context.Context, issueIDs []string) (map[string]model.StoredEstimate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]model.StoredEstimate, len(issueIDs))
	for _, id := range issueIDs {
		if e, ok := r.items[id]; ok {
			result[id] = e
		}
	}
	return result, nil
}

// Delete remove a estimativa de uma issue
func (r *MemoryEstimateStore) Delete(_ context.Context, issueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[issueID]; !ok {
		return ErrEstimateNotFound
	}
	delete(r.items, issueID)
	return nil
}
