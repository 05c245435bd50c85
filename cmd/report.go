package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/report"
	"github.com/tradeware/exportguard/internal/store"
)

var (
	reportOrg    string
	reportRef    string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a shipment's compliance audit pack as an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sh, err := env.Store.GetShipmentByReference(ctx, reportOrg, reportRef)
		if err != nil {
			return eris.Wrap(err, "load shipment")
		}
		docs, err := env.Store.ListDocuments(ctx, reportOrg, store.DocumentFilter{ShipmentID: sh.ID})
		if err != nil {
			return eris.Wrap(err, "list documents")
		}
		results, err := env.Store.ListComplianceResults(ctx, reportOrg, sh.ID)
		if err != nil {
			return eris.Wrap(err, "list compliance results")
		}

		out := reportOutput
		if out == "" {
			out = sh.Reference + ".xlsx"
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		defer f.Close()

		if err := report.WriteWorkbook(f, sh, docs, results); err != nil {
			return eris.Wrap(err, "write workbook")
		}
		zap.L().Info("audit pack written",
			zap.String("reference", sh.Reference),
			zap.String("file", out),
			zap.Int("documents", len(docs)),
			zap.Int("results", len(results)),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOrg, "org", "", "organization ID (required)")
	reportCmd.Flags().StringVar(&reportRef, "reference", "", "shipment reference (required)")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "output file (default <reference>.xlsx)")
	_ = reportCmd.MarkFlagRequired("org")
	_ = reportCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(reportCmd)
}
