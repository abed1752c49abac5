package model

import "errors"

var (
	// ErrRateLimited indica que a API do Linear retornou 429
	ErrRateLimited = errors.New("rate limit excedido na API do Linear")

	// ErrUnauthorized indica token OAuth inválido ou expirado
	ErrUnauthorized = errors.New("token do Linear inválido ou expirado")

	// ErrNotFound indica recurso não encontrado
	ErrNotFound = errors.New("recurso não encontrado no Linear")

	// ErrTimeout indica timeout na requisição
	ErrTimeout = errors.New("timeout na requisição para o Linear")

	// ErrInvalidResponse indica resposta inválida da API
	ErrInvalidResponse = errors.New("resposta inválida da API do Linear")
)
