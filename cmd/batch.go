package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var batchOrg string

var batchCmd = &cobra.Command{
	Use:   "batch <reference...>",
	Short: "Evaluate many shipments concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		items := env.Evaluator.EvaluateBatch(ctx, batchOrg, args)

		failed := 0
		for _, it := range items {
			if it.Err != "" {
				failed++
			}
		}
		zap.L().Info("batch complete",
			zap.Int("shipments", len(items)),
			zap.Int("failed", failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOrg, "org", "", "organization ID (required)")
	_ = batchCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(batchCmd)
}
