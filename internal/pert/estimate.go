// Package pert implementa a estimativa de três pontos (PERT): validação de
// estimativas, cálculo de valor esperado, desvio padrão e intervalos de
// confiança, e a agregação de várias tarefas em um resultado de projeto.
//
// Todas as funções são puras: não fazem I/O, não guardam estado e podem ser
// chamadas concorrentemente sem coordenação.
package pert

// Mensagens de validação, na ordem em que as verificações são feitas
const (
	MsgOptimisticPositive  = "optimistic must be greater than 0"
	MsgMostLikelyPositive  = "most likely must be greater than 0"
	MsgPessimisticPositive = "pessimistic must be greater than 0"
	MsgOptimisticOrder     = "optimistic must be less than or equal to most likely"
	MsgMostLikelyOrder     = "most likely must be less than or equal to pessimistic"
	MsgRangeOrder          = "optimistic must be less than or equal to pessimistic"
)

// Estimate é uma estimativa de três pontos em uma unidade qualquer (a unidade
// é responsabilidade da camada de apresentação)
type Estimate struct {
	Optimistic  float64 `json:"optimistic"`
	MostLikely  float64 `json:"mostLikely"`
	Pessimistic float64 `json:"pessimistic"`
}

// NewEstimate cria uma estimativa a partir de O, M e P
func NewEstimate(optimistic, mostLikely, pessimistic float64) Estimate {
	return Estimate{
		Optimistic:  optimistic,
		MostLikely:  mostLikely,
		Pessimistic: pessimistic,
	}
}

// ValidationOutcome é o resultado da validação de uma estimativa
type ValidationOutcome struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate verifica positividade e ordenação da estimativa.
// Todas as verificações rodam; nenhuma interrompe as seguintes.
func Validate(e Estimate) ValidationOutcome {
	errs := make([]string, 0, 6)

	if e.Optimistic <= 0 {
		errs = append(errs, MsgOptimisticPositive)
	}
	if e.MostLikely <= 0 {
		errs = append(errs, MsgMostLikelyPositive)
	}
	if e.Pessimistic <= 0 {
		errs = append(errs, MsgPessimisticPositive)
	}
	if e.Optimistic > e.MostLikely {
		errs = append(errs, MsgOptimisticOrder)
	}
	if e.MostLikely > e.Pessimistic {
		errs = append(errs, MsgMostLikelyOrder)
	}
	// Implícita pelas duas anteriores, mas reportada separadamente
	if e.Optimistic > e.Pessimistic {
		errs = append(errs, MsgRangeOrder)
	}

	return ValidationOutcome{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
