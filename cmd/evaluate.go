package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	evaluateOrg string
	evaluateRef string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run the compliance rule set against one shipment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Evaluator.EvaluateShipment(ctx, evaluateOrg, evaluateRef)
		if err != nil {
			return eris.Wrap(err, "evaluate shipment")
		}

		zap.L().Info("evaluation complete",
			zap.String("reference", res.Reference),
			zap.String("decision", string(res.Decision)),
			zap.Int("documents", len(res.Documents)),
			zap.Int("failed_rules", len(res.FailedResults())),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateOrg, "org", "", "organization ID (required)")
	evaluateCmd.Flags().StringVar(&evaluateRef, "reference", "", "shipment reference (required)")
	_ = evaluateCmd.MarkFlagRequired("org")
	_ = evaluateCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(evaluateCmd)
}
