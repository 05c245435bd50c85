package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/model"
)

var (
	ingestOrg string
	ingestRef string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file...>",
	Short: "Ingest extracted document text files into a shipment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, path := range args {
			raw, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			doc, err := env.Evaluator.Ingest(ctx, ingestOrg, ingestRef, string(raw))
			if err != nil {
				return eris.Wrapf(err, "ingest %s", path)
			}
			status := zap.String("status", string(doc.Status))
			if doc.DocumentType == model.DocTypeUnknown {
				zap.L().Warn("document type not recognized, manual classification needed",
					zap.String("file", path),
					zap.String("document_id", doc.ID),
					status,
				)
				continue
			}
			zap.L().Info("document ingested",
				zap.String("file", path),
				zap.String("document_id", doc.ID),
				zap.String("document_type", string(doc.DocumentType)),
				status,
			)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOrg, "org", "", "organization ID (required)")
	ingestCmd.Flags().StringVar(&ingestRef, "reference", "", "shipment reference (required)")
	_ = ingestCmd.MarkFlagRequired("org")
	_ = ingestCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(ingestCmd)
}
