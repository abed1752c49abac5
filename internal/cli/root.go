package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// Formatos de saída
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	// ErrInvalidEstimate indica que a estimativa não passou no validador
	ErrInvalidEstimate = errors.New("estimativa inválida")

	// ErrInvalidTasks indica que ao menos uma tarefa do arquivo é inválida
	ErrInvalidTasks = errors.New("há tarefas inválidas")
)

// NewRootCmd monta o comando pert com seus subcomandos
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pert",
		Short: "Estimativas PERT de três pontos",
		Long: `pert calcula tempo esperado, desvio padrão, variância e intervalos de
confiança a partir de estimativas otimista, mais provável e pessimista.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCalcCmd())
	rootCmd.AddCommand(newProjectCmd())

	return rootCmd
}

// Execute roda o comando raiz com os argumentos do processo
func Execute(version string) error {
	rootCmd := NewRootCmd(version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Erro:", err)
		return err
	}
	return nil
}

func checkFormat(format string) error {
	switch format {
	case FormatText, FormatJSON:
		return nil
	default:
		return fmt.Errorf("formato desconhecido %q (use text ou json)", format)
	}
}
