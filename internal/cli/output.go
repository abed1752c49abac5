package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cleberrangel/linear-pert-api/internal/pert"
)

// CalcReport é a saída de pert calc
type CalcReport struct {
	Estimate   pert.Estimate          `json:"estimate"`
	Validation pert.ValidationOutcome `json:"validation"`
	Result     pert.Result            `json:"result"`
}

// TaskReport é o resultado de uma tarefa; Result é nil para tarefas inválidas
type TaskReport struct {
	Title      string                 `json:"title"`
	Estimate   pert.Estimate          `json:"estimate"`
	Validation pert.ValidationOutcome `json:"validation"`
	Result     *pert.Result           `json:"result,omitempty"`
}

// ProjectReport é a saída de pert project
type ProjectReport struct {
	Tasks        []TaskReport `json:"tasks"`
	ValidTasks   int          `json:"valid_tasks"`
	InvalidTasks int          `json:"invalid_tasks"`
	Total        pert.Result  `json:"total"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCalcText(w io.Writer, r CalcReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Estimativa\tO=%s M=%s P=%s\n",
		num(r.Estimate.Optimistic), num(r.Estimate.MostLikely), num(r.Estimate.Pessimistic))
	writeResultRows(tw, r.Result)

	if err := tw.Flush(); err != nil {
		return err
	}

	if !r.Validation.Valid {
		fmt.Fprintln(w, "Atenção: estimativa inválida")
		for _, msg := range r.Validation.Errors {
			fmt.Fprintf(w, "- %s\n", msg)
		}
	}
	return nil
}

func writeProjectText(w io.Writer, r ProjectReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "Tarefa\tO\tM\tP\tTE\tσ\tStatus")
	for _, t := range r.Tasks {
		te, sd := "-", "-"
		status := "ok"
		if t.Result != nil {
			te, sd = num(t.Result.ExpectedTime), num(t.Result.StandardDeviation)
		} else {
			status = "inválida: " + strings.Join(t.Validation.Errors, "; ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Title, num(t.Estimate.Optimistic), num(t.Estimate.MostLikely), num(t.Estimate.Pessimistic), te, sd, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal (%d válidas, %d inválidas)\n", r.ValidTasks, r.InvalidTasks)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeResultRows(tw, r.Total)
	return tw.Flush()
}

func writeResultRows(tw *tabwriter.Writer, r pert.Result) {
	fmt.Fprintf(tw, "Tempo esperado\t%s\n", num(r.ExpectedTime))
	fmt.Fprintf(tw, "Desvio padrão\t%s\n", num(r.StandardDeviation))
	fmt.Fprintf(tw, "Variância\t%s\n", num(r.Variance))
	for k := 1; k <= 3; k++ {
		interval, _ := r.ConfidenceIntervals.Sigma(k)
		fmt.Fprintf(tw, "±%dσ (%s)\t[%s, %s]\n", k, pert.Coverage(k), num(interval.Lower), num(interval.Upper))
	}
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
