package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	overrideOrg    string
	overrideDoc    string
	overrideIssue  string
	overrideActor  string
	overrideReason string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Override a document issue so it no longer blocks approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Confirm the document belongs to the tenant before touching issues.
		if _, err := env.Store.GetDocument(ctx, overrideOrg, overrideDoc); err != nil {
			return eris.Wrap(err, "load document")
		}

		if err := env.Store.OverrideIssue(ctx, overrideDoc, overrideIssue, overrideActor, overrideReason); err != nil {
			return eris.Wrap(err, "override issue")
		}
		zap.L().Info("issue overridden",
			zap.String("document_id", overrideDoc),
			zap.String("issue_id", overrideIssue),
			zap.String("overridden_by", overrideActor),
		)
		return nil
	},
}

func init() {
	overrideCmd.Flags().StringVar(&overrideOrg, "org", "", "organization ID (required)")
	overrideCmd.Flags().StringVar(&overrideDoc, "document", "", "document ID (required)")
	overrideCmd.Flags().StringVar(&overrideIssue, "issue", "", "issue ID (required)")
	overrideCmd.Flags().StringVar(&overrideActor, "actor", "", "acting user ID (required)")
	overrideCmd.Flags().StringVar(&overrideReason, "reason", "", "justification (required)")
	_ = overrideCmd.MarkFlagRequired("org")
	_ = overrideCmd.MarkFlagRequired("document")
	_ = overrideCmd.MarkFlagRequired("issue")
	_ = overrideCmd.MarkFlagRequired("actor")
	_ = overrideCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(overrideCmd)
}
