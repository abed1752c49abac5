package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/repository"
	"github.com/gin-gonic/gin"
)

// handleError trata erros e retorna resposta apropriada
func handleError(c *gin.Context, err error) {
	status, resp := errorResponse(err)

	log := logger.FromGin(c)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Erro na requisição")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("Requisição recusada")
	}

	c.JSON(status, resp)
}

func errorResponse(err error) (int, model.ErrorResponse) {
	switch {
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests, model.ErrorResponse{
			Error:   "rate limit excedido",
			Details: "aguarde alguns segundos e tente novamente",
		}
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, model.ErrorResponse{
			Error:   "token do Linear inválido",
			Details: "faça login novamente",
		}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, model.ErrorResponse{
			Error:   "recurso não encontrado no Linear",
			Details: "verifique o ID e suas permissões",
		}
	case errors.Is(err, repository.ErrEstimateNotFound):
		return http.StatusNotFound, model.ErrorResponse{
			Error: "estimativa não encontrada",
		}
	case errors.Is(err, model.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, model.ErrorResponse{
			Error:   "timeout na requisição",
			Details: "a API do Linear demorou muito para responder",
		}
	case errors.Is(err, model.ErrInvalidResponse):
		return http.StatusBadGateway, model.ErrorResponse{
			Error:   "resposta inválida do Linear",
			Details: err.Error(),
		}
	default:
		return http.StatusInternalServerError, model.ErrorResponse{
			Error: "erro interno",
		}
	}
}

func badRequest(c *gin.Context, message string, err error) {
	resp := model.ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
