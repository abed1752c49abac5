package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/cleberrangel/linear-pert-api/internal/cache"
	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/cleberrangel/linear-pert-api/internal/repository"
	"golang.org/x/sync/errgroup"
)

const (
	// lookupChunkSize é o número de issues por consulta ao store
	lookupChunkSize = 100

	// maxConcurrentLookups limita consultas simultâneas ao store
	maxConcurrentLookups = 4

	// maxConcurrentProjects limita as visões montadas em paralelo no dashboard
	maxConcurrentProjects = 4
)

// Estados do Linear contados como projeto ativo
var activeProjectStates = map[string]bool{
	"started": true,
	"planned": true,
}

// ErrInvalidEstimate indica que a estimativa não passou no validador
var ErrInvalidEstimate = errors.New("estimativa inválida")

// LinearAPI é o subconjunto do cliente Linear usado pelos serviços
type LinearAPI interface {
	Teams(ctx context.Context, accessToken string) ([]model.Team, error)
	Projects(ctx context.Context, accessToken, teamID string) ([]model.Project, error)
	ProjectIssues(ctx context.Context, accessToken, projectID string) ([]model.Issue, error)
	TeamIssues(ctx context.Context, accessToken, teamID string) ([]model.Issue, error)
	Organization(ctx context.Context, accessToken string) (*model.Workspace, error)
}

// Publisher recebe as atualizações de projeto (hub WebSocket)
type Publisher interface {
	PublishProject(update model.ProjectUpdate)
}

// ValidationError carrega as mensagens do validador
type ValidationError struct {
	Outcome pert.ValidationOutcome
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidEstimate, e.Outcome.Errors)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEstimate
}

// ProjectService monta a visão PERT de projetos do Linear
type ProjectService struct {
	linear    LinearAPI
	store     repository.EstimateStore
	estimates *EstimateService
	issues    *cache.Cache[[]model.Issue]
	publisher Publisher
}

// NewProjectService cria o serviço. publisher pode ser nil.
func NewProjectService(linear LinearAPI, store repository.EstimateStore, estimates *EstimateService, issues *cache.Cache[[]model.Issue], publisher Publisher) *ProjectService {
	return &ProjectService{
		linear:    linear,
		store:     store,
		estimates: estimates,
		issues:    issues,
		publisher: publisher,
	}
}

// Teams lista os times do usuário
func (s *ProjectService) Teams(ctx context.Context, accessToken string) ([]model.Team, error) {
	return s.linear.Teams(ctx, accessToken)
}

// Projects lista os projetos do usuário, opcionalmente de um time
func (s *ProjectService) Projects(ctx context.Context, accessToken, teamID string) ([]model.Project, error) {
	return s.linear.Projects(ctx, accessToken, teamID)
}

// ProjectPert monta a visão por tarefa e o agregado do projeto.
// Só estimativas válidas entram no agregado.
func (s *ProjectService) ProjectPert(ctx context.Context, accessToken, projectID string) (*model.ProjectPert, error) {
	log := logger.Get(ctx)

	issues, err := s.projectIssues(ctx, accessToken, projectID)
	if err != nil {
		return nil, fmt.Errorf("buscar issues do projeto: %w", err)
	}

	stored, err := s.lookupEstimates(ctx, issues)
	if err != nil {
		return nil, fmt.Errorf("buscar estimativas: %w", err)
	}

	tasks, valid, invalid := s.buildTasks(ctx, issues, stored)

	view := &model.ProjectPert{
		ProjectID:      projectID,
		Tasks:          tasks,
		TotalTasks:     len(issues),
		EstimatedTasks: len(valid) + invalid,
		InvalidTasks:   invalid,
		Total:          pert.Aggregate(valid),
	}
	metrics.Get().IncrementAggregation(len(valid))

	log.Info().
		Str("project_id", projectID).
		Int("tasks", view.TotalTasks).
		Int("estimated", view.EstimatedTasks).
		Int("invalid", view.InvalidTasks).
		Float64("expected_time", view.Total.ExpectedTime).
		Msg("Visão PERT do projeto montada")

	return view, nil
}

// buildTasks junta issues e estimativas gravadas.
// valid traz só as estimativas que passaram no validador.
func (s *ProjectService) buildTasks(ctx context.Context, issues []model.Issue, stored map[string]model.StoredEstimate) (tasks []model.TaskPert, valid []pert.Estimate, invalid int) {
	tasks = make([]model.TaskPert, 0, len(issues))

	for _, issue := range issues {
		task := model.TaskPert{Issue: issue}

		if se, ok := stored[issue.ID]; ok {
			estimate := se.Estimate
			outcome := s.estimates.Validate(ctx, estimate)
			task.Estimate = &estimate
			task.Validation = &outcome

			if outcome.Valid {
				result := pert.Calculate(estimate)
				task.Result = &result
				valid = append(valid, estimate)
			} else {
				invalid++
			}
		}

		tasks = append(tasks, task)
	}

	return tasks, valid, invalid
}

// Workspace retorna a organização do usuário
func (s *ProjectService) Workspace(ctx context.Context, accessToken string) (*model.Workspace, error) {
	return s.linear.Organization(ctx, accessToken)
}

// TeamIssues lista as issues de um time com a estimativa de cada uma
func (s *ProjectService) TeamIssues(ctx context.Context, accessToken, teamID string) ([]model.TaskPert, error) {
	issues, err := s.linear.TeamIssues(ctx, accessToken, teamID)
	if err != nil {
		return nil, fmt.Errorf("buscar issues do time: %w", err)
	}

	stored, err := s.lookupEstimates(ctx, issues)
	if err != nil {
		return nil, fmt.Errorf("buscar estimativas: %w", err)
	}

	tasks, _, _ := s.buildTasks(ctx, issues, stored)
	return tasks, nil
}

// Dashboard monta a visão de cada projeto e soma tudo.
// O total geral agrega as estimativas válidas de todos os projetos, não os totais por projeto.
func (s *ProjectService) Dashboard(ctx context.Context, accessToken string) (*model.Dashboard, error) {
	projects, err := s.linear.Projects(ctx, accessToken, "")
	if err != nil {
		return nil, fmt.Errorf("buscar projetos: %w", err)
	}

	views := make([]*model.ProjectPert, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProjects)

	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			view, err := s.ProjectPert(gctx, accessToken, p.ID)
			if err != nil {
				return fmt.Errorf("projeto %s: %w", p.ID, err)
			}
			views[i] = view
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dashboard := &model.Dashboard{
		Projects: make([]model.DashboardProject, 0, len(projects)),
	}
	dashboard.Stats.TotalProjects = len(projects)

	var valid []pert.Estimate
	for i, p := range projects {
		view := views[i]

		if activeProjectStates[p.State] {
			dashboard.Stats.ActiveProjects++
		}
		dashboard.Stats.TotalTasks += view.TotalTasks
		dashboard.Stats.EstimatedTasks += view.EstimatedTasks

		for _, task := range view.Tasks {
			if task.Result != nil {
				valid = append(valid, *task.Estimate)
			}
		}

		dashboard.Projects = append(dashboard.Projects, model.DashboardProject{
			ID:             p.ID,
			Name:           p.Name,
			State:          p.State,
			Color:          p.Color,
			TotalTasks:     view.TotalTasks,
			EstimatedTasks: view.EstimatedTasks,
			InvalidTasks:   view.InvalidTasks,
			Total:          view.Total,
		})
	}

	dashboard.Stats.Total = pert.Aggregate(valid)

	logger.Get(ctx).Info().
		Int("projects", dashboard.Stats.TotalProjects).
		Int("active", dashboard.Stats.ActiveProjects).
		Int("estimated", dashboard.Stats.EstimatedTasks).
		Float64("expected_time", dashboard.Stats.Total.ExpectedTime).
		Msg("Dashboard montado")

	return dashboard, nil
}

// SaveEstimate valida, grava e notifica os inscritos do projeto
func (s *ProjectService) SaveEstimate(ctx context.Context, accessToken string, se model.StoredEstimate) (*model.StoredEstimate, error) {
	outcome := s.estimates.Validate(ctx, se.Estimate)
	if !outcome.Valid {
		return nil, &ValidationError{Outcome: outcome}
	}

	if err := s.ensureIssueInProject(ctx, accessToken, se.ProjectID, se.IssueID); err != nil {
		return nil, err
	}

	saved, err := s.store.Upsert(ctx, se)
	if err != nil {
		return nil, err
	}

	metrics.Get().IncrementEstimateSaved()
	logger.AuditEstimate(ctx, logger.AuditActionEstimateSave, se.IssueID, true, map[string]interface{}{
		"project_id": se.ProjectID,
	})

	s.publish(ctx, model.ProjectUpdate{
		ProjectID: se.ProjectID,
		IssueID:   se.IssueID,
		Action:    model.ActionEstimateSaved,
		UpdatedBy: se.UpdatedBy,
	})

	return saved, nil
}

// DeleteEstimate remove a estimativa de uma issue e notifica o projeto
func (s *ProjectService) DeleteEstimate(ctx context.Context, accessToken, issueID, userID string) error {
	existing, err := s.store.Get(ctx, issueID)
	if err != nil {
		return err
	}

	if err := s.ensureIssueInProject(ctx, accessToken, existing.ProjectID, issueID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, issueID); err != nil {
		return err
	}

	metrics.Get().IncrementEstimateDeleted()
	logger.AuditEstimate(ctx, logger.AuditActionEstimateDelete, issueID, true, map[string]interface{}{
		"project_id": existing.ProjectID,
	})

	s.publish(ctx, model.ProjectUpdate{
		ProjectID: existing.ProjectID,
		IssueID:   issueID,
		Action:    model.ActionEstimateDeleted,
		UpdatedBy: userID,
	})

	return nil
}

// publish avisa os inscritos do projeto
func (s *ProjectService) publish(ctx context.Context, update model.ProjectUpdate) {
	if s.publisher == nil {
		return
	}

	logger.Get(ctx).Debug().
		Str("project_id", update.ProjectID).
		Str("issue_id", update.IssueID).
		Str("action", update.Action).
		Msg("Publicando atualização do projeto")

	s.publisher.PublishProject(update)
}

// ensureIssueInProject confere, com o token do usuário, que a issue pertence ao projeto
func (s *ProjectService) ensureIssueInProject(ctx context.Context, accessToken, projectID, issueID string) error {
	issues, err := s.projectIssues(ctx, accessToken, projectID)
	if err != nil {
		return fmt.Errorf("buscar issues do projeto: %w", err)
	}

	for _, issue := range issues {
		if issue.ID == issueID {
			return nil
		}
	}

	return fmt.Errorf("issue %s no projeto %s: %w", issueID, projectID, model.ErrNotFound)
}

// projectIssues busca as issues via cache, compartilhando a chamada entre requisições iguais
func (s *ProjectService) projectIssues(ctx context.Context, accessToken, projectID string) ([]model.Issue, error) {
	if s.issues == nil {
		return s.linear.ProjectIssues(ctx, accessToken, projectID)
	}

	return s.issues.GetOrLoad(issuesCacheKey(accessToken, projectID), func() ([]model.Issue, error) {
		return s.linear.ProjectIssues(ctx, accessToken, projectID)
	})
}

// lookupEstimates consulta o store em blocos concorrentes
func (s *ProjectService) lookupEstimates(ctx context.Context, issues []model.Issue) (map[string]model.StoredEstimate, error) {
	result := make(map[string]model.StoredEstimate)
	if len(issues) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for start := 0; start < len(issues); start += lookupChunkSize {
		end := start + lookupChunkSize
		if end > len(issues) {
			end = len(issues)
		}

		ids := make([]string, 0, end-start)
		for _, issue := range issues[start:end] {
			ids = append(ids, issue.ID)
		}

		g.Go(func() error {
			found, err := s.store.ListByIssueIDs(gctx, ids)
			if err != nil {
				return err
			}

			mu.Lock()
			for id, e := range found {
				result[id] = e
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// RefreshIssues descarta as issues em cache do projeto, para todos os usuários
func (s *ProjectService) RefreshIssues(projectID string) {
	if s.issues != nil {
		s.issues.InvalidatePrefix(issuesCachePrefix(projectID))
	}
}

func issuesCachePrefix(projectID string) string {
	return "issues:" + projectID + ":"
}

// issuesCacheKey separa o cache por projeto e por token, sem guardar o token em claro
func issuesCacheKey(accessToken, projectID string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return issuesCachePrefix(projectID) + hex.EncodeToString(sum[:8])
}
