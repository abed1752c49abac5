package cli

import (
	"fmt"

	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/spf13/cobra"
)

type estimateFlags struct {
	optimistic  float64
	mostLikely  float64
	pessimistic float64
}

func (f *estimateFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&f.optimistic, "optimistic", "o", 0, "Estimativa otimista")
	cmd.Flags().Float64VarP(&f.mostLikely, "most-likely", "m", 0, "Estimativa mais provável")
	cmd.Flags().Float64VarP(&f.pessimistic, "pessimistic", "p", 0, "Estimativa pessimista")
	_ = cmd.MarkFlagRequired("optimistic")
	_ = cmd.MarkFlagRequired("most-likely")
	_ = cmd.MarkFlagRequired("pessimistic")
}

func (f *estimateFlags) estimate() pert.Estimate {
	return pert.NewEstimate(f.optimistic, f.mostLikely, f.pessimistic)
}

func newValidateCmd() *cobra.Command {
	var flags estimateFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Valida uma estimativa de três pontos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome := pert.Validate(flags.estimate())

			out := cmd.OutOrStdout()
			if outcome.Valid {
				fmt.Fprintln(out, "Estimativa válida")
				return nil
			}

			for _, msg := range outcome.Errors {
				fmt.Fprintf(out, "- %s\n", msg)
			}
			return ErrInvalidEstimate
		},
	}
	flags.bind(cmd)

	return cmd
}

func newCalcCmd() *cobra.Command {
	var (
		flags  estimateFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calcula o resultado PERT de uma estimativa",
		Long: `Calcula o resultado mesmo para estimativas inválidas; as mensagens do
validador aparecem junto com o resultado.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			e := flags.estimate()
			report := CalcReport{
				Estimate:   e,
				Validation: pert.Validate(e),
				Result:     pert.Calculate(e),
			}

			if format == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeCalcText(cmd.OutOrStdout(), report)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&format, "format", FormatText, "Formato de saída (text|json)")

	return cmd
}
