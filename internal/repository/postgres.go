package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/lib/pq"
)

// PostgresEstimateStore grava estimativas na tabela task_estimates
type PostgresEstimateStore struct {
	db *sql.DB
}

// NewPostgresEstimateStore cria o repositório sobre uma conexão aberta
func NewPostgresEstimateStore(db *sql.DB) *PostgresEstimateStore {
	return &PostgresEstimateStore{db: db}
}

// Upsert insere ou atualiza a estimativa de uma issue
func (r *PostgresEstimateStore) Upsert(ctx context.Context, e model.StoredEstimate) (*model.StoredEstimate, error) {
	query := `
		INSERT INTO task_estimates (issue_id, project_id, optimistic, most_likely, pessimistic, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (issue_id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			optimistic = EXCLUDED.optimistic,
			most_likely = EXCLUDED.most_likely,
			pessimistic = EXCLUDED.pessimistic,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		e.IssueID, e.ProjectID,
		e.Estimate.Optimistic, e.Estimate.MostLikely, e.Estimate.Pessimistic,
		e.UpdatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		logger.Get(ctx).Error().Err(err).Str("issue_id", e.IssueID).Msg("Erro ao gravar estimativa")
		return nil, fmt.Errorf("erro ao gravar estimativa: %w", err)
	}

	return &e, nil
}

// Get obtém a estimativa de uma issue
func (r *PostgresEstimateStore) Get(ctx context.Context, issueID string) (*model.StoredEstimate, error) {
	query := `
		SELECT issue_id, project_id, optimistic, most_likely, pessimistic, updated_by, created_at, updated_at
		FROM task_estimates
		WHERE issue_id = $1
	`

	e, err := scanEstimate(r.db.QueryRowContext(ctx, query, issueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEstimateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar estimativa: %w", err)
	}

	return e, nil
}

// ListByIssueIDs busca as estimativas de várias issues em uma consulta
func (r *PostgresEstimateStore) ListByIssueIDs(ctx context.Context, issueIDs []string) (map[string]model.StoredEstimate, error) {
	result := make(map[string]model.StoredEstimate, len(issueIDs))
	if len(issueIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT issue_id, project_id, optimistic, most_likely, pessimistic, updated_by, created_at, updated_at
		FROM task_estimates
		WHERE issue_id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(issueIDs))
	if err != nil {
		return nil, fmt.Errorf("erro ao listar estimativas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler estimativa: %w", err)
		}
		result[e.IssueID] = *e
	}

	return result, rows.Err()
}

// Delete remove a estimativa de uma issue
func (r *PostgresEstimateStore) Delete(ctx context.Context, issueID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM task_estimates WHERE issue_id = $1", issueID)
	if err != nil {
		return fmt.Errorf("erro ao remover estimativa: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("erro ao remover estimativa: %w", err)
	}
	if n == 0 {
		return ErrEstimateNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEstimate(row rowScanner) (*model.StoredEstimate, error) {
	var e model.StoredEstimate
	err := row.Scan(
		&e.IssueID,
		&e.ProjectID,
		&e.Estimate.Optimistic,
		&e.Estimate.MostLikely,
		&e.Estimate.Pessimistic,
		&e.UpdatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
