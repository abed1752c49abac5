package repository

import (
	"context"
	"errors"

	"github.com/cleberrangel/linear-pert-api/internal/model"
)

// ErrEstimateNotFound indica que a issue não tem estimativa gravada
var ErrEstimateNotFound = errors.New("estimativa não encontrada")

// EstimateStore persiste estimativas de três pontos por issue
type EstimateStore interface {
	// Upsert grava a estimativa e retorna o registro com timestamps
	Upsert(ctx context.Context, e model.StoredEstimate) (*model.StoredEstimate, error)
	Get(ctx context.Context, issueID string) (*model.StoredEstimate, error)
	// ListByIssueIDs retorna as estimativas existentes indexadas por issue
	ListByIssueIDs(ctx context.Context, issueIDs []string) (map[string]model.StoredEstimate, error)
	Delete(ctx context.Context, issueID string) error
}
