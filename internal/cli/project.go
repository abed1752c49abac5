package cli

import (
	"fmt"
	"os"

	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Task é uma tarefa do arquivo de projeto
type Task struct {
	Title       string  `yaml:"title" json:"title"`
	Optimistic  float64 `yaml:"optimistic" json:"optimistic"`
	MostLikely  float64 `yaml:"most_likely" json:"most_likely"`
	Pessimistic float64 `yaml:"pessimistic" json:"pessimistic"`
}

// Estimate retorna a estimativa da tarefa
func (t Task) Estimate() pert.Estimate {
	return pert.NewEstimate(t.Optimistic, t.MostLikely, t.Pessimistic)
}

// ParseTasks lê uma lista de tarefas em YAML (JSON também é aceito)
func ParseTasks(data []byte) ([]Task, error) {
	var tasks []Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("ler tarefas: %w", err)
	}
	return tasks, nil
}

// BuildProjectReport valida e calcula cada tarefa; só as válidas entram no total
func BuildProjectReport(tasks []Task) ProjectReport {
	report := ProjectReport{
		Tasks: make([]TaskReport, 0, len(tasks)),
	}

	var valid []pert.Estimate
	for i, task := range tasks {
		e := task.Estimate()
		tr := TaskReport{
			Title:      task.Title,
			Estimate:   e,
			Validation: pert.Validate(e),
		}
		if tr.Title == "" {
			tr.Title = fmt.Sprintf("#%d", i+1)
		}

		if tr.Validation.Valid {
			result := pert.Calculate(e)
			tr.Result = &result
			valid = append(valid, e)
		} else {
			report.InvalidTasks++
		}

		report.Tasks = append(report.Tasks, tr)
	}

	report.ValidTasks = len(valid)
	report.Total = pert.Aggregate(valid)

	return report
}

func newProjectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "project <tasks.yaml>",
		Short: "Calcula o PERT de um conjunto de tarefas",
		Long: `Lê uma lista de tarefas {title, optimistic, most_likely, pessimistic} em
YAML ou JSON. Tarefas inválidas são listadas e ficam fora do total; nesse caso
o comando termina com status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("abrir arquivo de tarefas: %w", err)
			}

			tasks, err := ParseTasks(data)
			if err != nil {
				return err
			}

			report := BuildProjectReport(tasks)

			if format == FormatJSON {
				err = writeJSON(cmd.OutOrStdout(), report)
			} else {
				err = writeProjectText(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}

			if report.InvalidTasks > 0 {
				return fmt.Errorf("%w: %d de %d", ErrInvalidTasks, report.InvalidTasks, len(report.Tasks))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", FormatText, "Formato de saída (text|json)")

	return cmd
}
