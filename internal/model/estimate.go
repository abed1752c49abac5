package model

import (
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/pert"
)

// StoredEstimate é a estimativa PERT gravada para uma issue
type StoredEstimate struct {
	IssueID   string        `json:"issue_id"`
	ProjectID string        `json:"project_id"`
	Estimate  pert.Estimate `json:"estimate"`
	UpdatedBy string        `json:"updated_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TaskPert contém a issue e, se houver, sua estimativa e resultado
type TaskPert struct {
	Issue      Issue                   `json:"issue"`
	Estimate   *pert.Estimate          `json:"estimate,omitempty"`
	Validation *pert.ValidationOutcome `json:"validation,omitempty"`
	Result     *pert.Result            `json:"result,omitempty"`
}

// ProjectPert contém o resultado PERT agregado de um projeto
type ProjectPert struct {
	ProjectID      string      `json:"project_id"`
	Tasks          []TaskPert  `json:"tasks"`
	TotalTasks     int         `json:"total_tasks"`
	EstimatedTasks int         `json:"estimated_tasks"`
	InvalidTasks   int         `json:"invalid_tasks"`
	Total          pert.Result `json:"total"`
}

// ProjectUpdate é enviado aos inscritos de um projeto quando uma estimativa muda.
// Não carrega a visão do projeto: cada inscrito a recarrega com o próprio token.
type ProjectUpdate struct {
	ProjectID string `json:"project_id"`
	IssueID   string `json:"issue_id"`
	Action    string `json:"action"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

// Ações de ProjectUpdate
const (
	ActionEstimateSaved   = "saved"
	ActionEstimateDeleted = "deleted"
)

// DashboardProject resume um projeto no dashboard
type DashboardProject struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	State          string      `json:"state"`
	Color          string      `json:"color,omitempty"`
	TotalTasks     int         `json:"total_tasks"`
	EstimatedTasks int         `json:"estimated_tasks"`
	InvalidTasks   int         `json:"invalid_tasks"`
	Total          pert.Result `json:"total"`
}

// DashboardStats soma os projetos. Total agrega as estimativas válidas de todos eles.
type DashboardStats struct {
	TotalProjects  int         `json:"total_projects"`
	ActiveProjects int         `json:"active_projects"`
	TotalTasks     int         `json:"total_tasks"`
	EstimatedTasks int         `json:"estimated_tasks"`
	Total          pert.Result `json:"total"`
}

// Dashboard é a visão geral dos projetos do usuário
type Dashboard struct {
	Stats    DashboardStats     `json:"stats"`
	Projects []DashboardProject `json:"projects"`
}
