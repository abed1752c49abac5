package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/middleware"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/service"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProjectHandler manipula projetos e estimativas do Linear.
// Todas as rotas exigem middleware.RequireSession.
type ProjectHandler struct {
	projects *service.ProjectService
	exporter *service.ExcelExporter
}

// NewProjectHandler cria um novo handler de projetos
func NewProjectHandler(projects *service.ProjectService, exporter *service.ExcelExporter) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		exporter: exporter,
	}
}

// Teams lista os times do usuário
// @Summary      Lista times
// @Tags         linear
// @Produce      json
// @Success      200 {object} model.Response
// @Router       /api/v1/teams [get]
func (h *ProjectHandler) Teams(c *gin.Context) {
	teams, err := h.projects.Teams(c.Request.Context(), c.GetString(middleware.ContextAccessToken))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: teams})
}

// Projects lista os projetos do usuário, opcionalmente filtrados por team_id
// @Summary      Lista projetos
// @Tags         linear
// @Produce      json
// @Param        team_id query string false "Time"
// @Success      200 {object} model.Response
// @Router       /api/v1/projects [get]
func (h *ProjectHandler) Projects(c *gin.Context) {
	teamID := c.Query("team_id")
	if teamID != "" && !middleware.ValidateID(teamID) {
		badRequest(c, "team_id inválido", nil)
		return
	}

	projects, err := h.projects.Projects(c.Request.Context(), c.GetString(middleware.ContextAccessToken), teamID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: projects})
}

// Workspace retorna a organização do usuário no Linear
// @Summary      Workspace
// @Tags         linear
// @Produce      json
// @Success      200 {object} model.Response
// @Router       /api/v1/workspace [get]
func (h *ProjectHandler) Workspace(c *gin.Context) {
	ws, err := h.projects.Workspace(c.Request.Context(), c.GetString(middleware.ContextAccessToken))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: ws})
}

// Dashboard resume todos os projetos do usuário
// @Summary      Dashboard
// @Tags         pert
// @Produce      json
// @Success      200 {object} model.Response
// @Router       /api/v1/dashboard [get]
func (h *ProjectHandler) Dashboard(c *gin.Context) {
	d, err := h.projects.Dashboard(c.Request.Context(), c.GetString(middleware.ContextAccessToken))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    d,
		Meta: &model.Meta{
			TotalTasks:     d.Stats.TotalTasks,
			EstimatedTasks: d.Stats.EstimatedTasks,
		},
	})
}

// TeamIssues lista as issues do time com suas estimativas
// @Summary      Issues do time
// @Tags         linear
// @Produce      json
// @Param        teamId path string true "Time"
// @Success      200 {object} model.Response
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/teams/{teamId}/issues [get]
func (h *ProjectHandler) TeamIssues(c *gin.Context) {
	tasks, err := h.projects.TeamIssues(c.Request.Context(), c.GetString(middleware.ContextAccessToken), c.Param("teamId"))
	if err != nil {
		handleError(c, err)
		return
	}

	estimated := 0
	for _, t := range tasks {
		if t.Estimate != nil {
			estimated++
		}
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    tasks,
		Meta: &model.Meta{
			TotalTasks:     len(tasks),
			EstimatedTasks: estimated,
		},
	})
}

// ProjectPert retorna as estimativas por tarefa e o agregado do projeto
// @Summary      Visão PERT do projeto
// @Tags         pert
// @Produce      json
// @Param        projectId path string true "Projeto"
// @Param        refresh query bool false "Descarta as issues em cache"
// @Success      200 {object} model.Response
// @Failure      401 {object} model.ErrorResponse
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/projects/{projectId}/pert [get]
func (h *ProjectHandler) ProjectPert(c *gin.Context) {
	if c.Query("refresh") == "true" {
		h.projects.RefreshIssues(c.Param("projectId"))
	}

	view, err := h.projects.ProjectPert(c.Request.Context(), c.GetString(middleware.ContextAccessToken), c.Param("projectId"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    view,
		Meta: &model.Meta{
			TotalTasks:     view.TotalTasks,
			EstimatedTasks: view.EstimatedTasks,
		},
	})
}

// Export gera o relatório XLSX do projeto
// @Summary      Exporta relatório PERT
// @Tags         pert
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        projectId path string true "Projeto"
// @Param        name query string false "Nome do projeto para o título"
// @Success      200 {file} binary
// @Router       /api/v1/projects/{projectId}/export [get]
func (h *ProjectHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("projectId")

	view, err := h.projects.ProjectPert(ctx, c.GetString(middleware.ContextAccessToken), projectID)
	if err != nil {
		metrics.Get().IncrementReportExported(false)
		handleError(c, err)
		return
	}

	name := middleware.SanitizeTitle(c.DefaultQuery("name", projectID))
	buf, err := h.exporter.Export(view, name)
	if err != nil {
		metrics.Get().IncrementReportExported(false)
		handleError(c, fmt.Errorf("gerar excel: %w", err))
		return
	}

	metrics.Get().IncrementReportExported(true)
	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionReportExport,
		UserID:     c.GetString(middleware.ContextUserID),
		Resource:   "project",
		ResourceID: projectID,
		ClientIP:   c.ClientIP(),
		Success:    true,
		Details:    map[string]interface{}{"tasks": view.TotalTasks, "bytes": buf.Len()},
	})

	filename := fmt.Sprintf("pert_%s_%s.xlsx", projectID, time.Now().Format("2006-01-02_15-04-05"))

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("X-Total-Tasks", fmt.Sprintf("%d", view.TotalTasks))
	c.Header("X-Estimated-Tasks", fmt.Sprintf("%d", view.EstimatedTasks))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// SaveEstimate valida e grava a estimativa de uma issue
// @Summary      Grava estimativa
// @Tags         pert
// @Accept       json
// @Produce      json
// @Param        issueId path string true "Issue"
// @Param        request body model.SaveEstimateRequest true "Estimativa"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Failure      422 {object} model.Response
// @Router       /api/v1/issues/{issueId}/estimate [put]
func (h *ProjectHandler) SaveEstimate(c *gin.Context) {
	var req model.SaveEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payload inválido", err)
		return
	}

	if !middleware.ValidateID(req.ProjectID) {
		badRequest(c, "project_id inválido", nil)
		return
	}

	saved, err := h.projects.SaveEstimate(c.Request.Context(), c.GetString(middleware.ContextAccessToken), model.StoredEstimate{
		IssueID:   c.Param("issueId"),
		ProjectID: req.ProjectID,
		Estimate:  req.Estimate(),
		UpdatedBy: c.GetString(middleware.ContextUserID),
	})

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, model.Response{
			Success: false,
			Data:    verr.Outcome,
			Errors:  verr.Outcome.Errors,
		})
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Data: saved})
}

// DeleteEstimate remove a estimativa de uma issue
// @Summary      Remove estimativa
// @Tags         pert
// @Param        issueId path string true "Issue"
// @Success      204
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/issues/{issueId}/estimate [delete]
func (h *ProjectHandler) DeleteEstimate(c *gin.Context) {
	err := h.projects.DeleteEstimate(
		c.Request.Context(),
		c.GetString(middleware.ContextAccessToken),
		c.Param("issueId"),
		c.GetString(middleware.ContextUserID),
	)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
