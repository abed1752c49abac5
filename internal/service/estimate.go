package service

import (
	"context"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
)

// EstimateService expõe as operações PERT com métricas e logs
type EstimateService struct{}

// NewEstimateService cria o serviço de estimativas
func NewEstimateService() *EstimateService {
	return &EstimateService{}
}

// Validate aplica o validador e conta falhas
func (s *EstimateService) Validate(ctx context.Context, e pert.Estimate) pert.ValidationOutcome {
	outcome := pert.Validate(e)
	metrics.Get().IncrementValidation(outcome.Valid)

	if !outcome.Valid {
		logger.Get(ctx).Debug().
			Float64("optimistic", e.Optimistic).
			Float64("most_likely", e.MostLikely).
			Float64("pessimistic", e.Pessimistic).
			Strs("errors", outcome.Errors).
			Msg("Estimativa inválida")
	}

	return outcome
}

// Calculate valida e calcula. O resultado vem mesmo para estimativa inválida.
func (s *EstimateService) Calculate(ctx context.Context, e pert.Estimate) model.CalculateResponse {
	outcome := s.Validate(ctx, e)
	result := pert.Calculate(e)
	metrics.Get().IncrementCalculation()

	return model.CalculateResponse{Validation: outcome, Result: result}
}

// Aggregate valida cada estimativa e soma todas, sem filtrar as inválidas
func (s *EstimateService) Aggregate(ctx context.Context, estimates []pert.Estimate) model.AggregateResponse {
	validations := make([]pert.ValidationOutcome, len(estimates))
	for i, e := range estimates {
		validations[i] = s.Validate(ctx, e)
	}

	result := pert.Aggregate(estimates)
	metrics.Get().IncrementAggregation(len(estimates))

	logger.Get(ctx).Debug().
		Int("estimates", len(estimates)).
		Float64("expected_time", result.ExpectedTime).
		Float64("standard_deviation", result.StandardDeviation).
		Msg("Agregação calculada")

	return model.AggregateResponse{Validations: validations, Result: result}
}
