package pert

import (
	"math"
	"sort"
)

// Interval é um intervalo [Lower, Upper] centrado no tempo esperado
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width retorna Upper - Lower (negativo para estimativas invertidas)
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}

// Contains indica se other está inteiramente dentro de i
func (i Interval) Contains(other Interval) bool {
	return i.Lower <= other.Lower && other.Upper <= i.Upper
}

// ConfidenceIntervals agrupa os intervalos de 1, 2 e 3 desvios padrão
type ConfidenceIntervals struct {
	OneStdDev   Interval `json:"oneStdDev"`   // ~68%
	TwoStdDev   Interval `json:"twoStdDev"`   // ~95%
	ThreeStdDev Interval `json:"threeStdDev"` // ~99.7%
}

// Sigma retorna o intervalo de k desvios padrão (k = 1, 2 ou 3)
func (c ConfidenceIntervals) Sigma(k int) (Interval, bool) {
	switch k {
	case 1:
		return c.OneStdDev, true
	case 2:
		return c.TwoStdDev, true
	case 3:
		return c.ThreeStdDev, true
	}
	return Interval{}, false
}

// Coverage retorna o rótulo de cobertura aproximada (aproximação normal) do
// intervalo de k desvios padrão
func Coverage(k int) string {
	switch k {
	case 1:
		return "68%"
	case 2:
		return "95%"
	case 3:
		return "99.7%"
	}
	return ""
}

// Result é o resultado PERT de uma estimativa ou de um conjunto delas
type Result struct {
	ExpectedTime        float64             `json:"expectedTime"`
	StandardDeviation   float64             `json:"standardDeviation"`
	Variance            float64             `json:"variance"`
	ConfidenceIntervals ConfidenceIntervals `json:"confidenceIntervals"`
}

// ExpectedTime calcula (O + 4M + P) / 6
func ExpectedTime(e Estimate) float64 {
	return (e.Optimistic + 4*e.MostLikely + e.Pessimistic) / 6
}

// StandardDeviation calcula (P - O) / 6
func StandardDeviation(e Estimate) float64 {
	return (e.Pessimistic - e.Optimistic) / 6
}

// Variance calcula o quadrado do desvio padrão
func Variance(e Estimate) float64 {
	sd := StandardDeviation(e)
	return sd * sd
}

// Calculate calcula o resultado PERT completo de uma estimativa.
//
// Não valida a entrada: com P < O o desvio padrão fica negativo e os
// intervalos saem invertidos (Lower > Upper). Quem chama decide se passa
// antes por Validate.
func Calculate(e Estimate) Result {
	expected := ExpectedTime(e)
	sd := StandardDeviation(e)

	return Result{
		ExpectedTime:        expected,
		StandardDeviation:   sd,
		Variance:            sd * sd,
		ConfidenceIntervals: intervalsAround(expected, sd),
	}
}

// Aggregate soma tempos esperados e variâncias de todas as estimativas e
// deriva o desvio padrão do projeto como a raiz da variância total.
//
// Somar variâncias assume que as durações das tarefas são independentes.
// Não há caminho crítico nem correlação: as tarefas são tratadas como uma
// sequência. Uma lista vazia resulta em zeros.
//
// As parcelas são somadas em ordem crescente, então qualquer permutação da
// entrada produz exatamente o mesmo resultado.
func Aggregate(estimates []Estimate) Result {
	expected := make([]float64, len(estimates))
	variances := make([]float64, len(estimates))
	for i, e := range estimates {
		expected[i] = ExpectedTime(e)
		variances[i] = Variance(e)
	}

	totalExpected := sortedSum(expected)
	totalVariance := sortedSum(variances)
	sd := math.Sqrt(totalVariance)

	return Result{
		ExpectedTime:        totalExpected,
		StandardDeviation:   sd,
		Variance:            totalVariance,
		ConfidenceIntervals: intervalsAround(totalExpected, sd),
	}
}

func sortedSum(values []float64) float64 {
	sort.Float64s(values)
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func intervalsAround(center, sd float64) ConfidenceIntervals {
	return ConfidenceIntervals{
		OneStdDev:   Interval{Lower: center - sd, Upper: center + sd},
		TwoStdDev:   Interval{Lower: center - 2*sd, Upper: center + 2*sd},
		ThreeStdDev: Interval{Lower: center - 3*sd, Upper: center + 3*sd},
	}
}
