package handler

import (
	"net/http"

	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/cleberrangel/linear-pert-api/internal/service"
	"github.com/gin-gonic/gin"
)

// PertHandler expõe o validador, o cálculo e a agregação sem autenticação
type PertHandler struct {
	estimates *service.EstimateService
}

// NewPertHandler cria um novo handler PERT
func NewPertHandler(estimates *service.EstimateService) *PertHandler {
	return &PertHandler{estimates: estimates}
}

// Validate valida uma estimativa de três pontos
// @Summary      Valida estimativa
// @Tags         pert
// @Accept       json
// @Produce      json
// @Param        request body model.EstimateRequest true "Estimativa"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/pert/validate [post]
func (h *PertHandler) Validate(c *gin.Context) {
	var req model.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payload inválido", err)
		return
	}

	outcome := h.estimates.Validate(c.Request.Context(), req.Estimate())

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    outcome,
	})
}

// Calculate calcula o resultado PERT. Estimativas inválidas também têm resultado.
// @Summary      Calcula estimativa
// @Tags         pert
// @Accept       json
// @Produce      json
// @Param        request body model.EstimateRequest true "Estimativa"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/pert/calculate [post]
func (h *PertHandler) Calculate(c *gin.Context) {
	var req model.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payload inválido", err)
		return
	}

	resp := h.estimates.Calculate(c.Request.Context(), req.Estimate())

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    resp,
	})
}

// Aggregate soma um conjunto de estimativas
// @Summary      Agrega estimativas
// @Tags         pert
// @Accept       json
// @Produce      json
// @Param        request body model.AggregateRequest true "Estimativas"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/pert/aggregate [post]
func (h *PertHandler) Aggregate(c *gin.Context) {
	var req model.AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "payload inválido", err)
		return
	}

	estimates := make([]pert.Estimate, len(req.Estimates))
	for i, e := range req.Estimates {
		estimates[i] = e.Estimate()
	}

	resp := h.estimates.Aggregate(c.Request.Context(), estimates)

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    resp,
	})
}
