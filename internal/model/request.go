package model

import "github.com/cleberrangel/linear-pert-api/internal/pert"

// EstimateRequest representa o payload de uma estimativa de três pontos
type EstimateRequest struct {
	Optimistic  *float64 `json:"optimistic" binding:"required"`
	MostLikely  *float64 `json:"mostLikely" binding:"required"`
	Pessimistic *float64 `json:"pessimistic" binding:"required"`
}

// Estimate converte o payload em pert.Estimate
func (r EstimateRequest) Estimate() pert.Estimate {
	return pert.NewEstimate(deref(r.Optimistic), deref(r.MostLikely), deref(r.Pessimistic))
}

// SaveEstimateRequest é o payload para gravar a estimativa de uma issue
type SaveEstimateRequest struct {
	EstimateRequest
	ProjectID string `json:"project_id" binding:"required"`
}

// AggregateRequest representa o payload de agregação
type AggregateRequest struct {
	Estimates []EstimateRequest `json:"estimates" binding:"dive"`
}

// CalculateResponse contém validação e resultado; o resultado existe mesmo
// quando a estimativa é inválida
type CalculateResponse struct {
	Validation pert.ValidationOutcome `json:"validation"`
	Result     pert.Result            `json:"result"`
}

// AggregateResponse contém as validações de cada estimativa e o agregado
type AggregateResponse struct {
	Validations []pert.ValidationOutcome `json:"validations"`
	Result      pert.Result              `json:"result"`
}

// Response representa a resposta padrão da API
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// Meta contém metadados da resposta
type Meta struct {
	TotalTasks     int `json:"total_tasks,omitempty"`
	EstimatedTasks int `json:"estimated_tasks,omitempty"`
}

// ErrorResponse representa uma resposta de erro
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
