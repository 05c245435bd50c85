package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/lifecycle"
	"github.com/tradeware/exportguard/internal/model"
)

var (
	transitionOrg    string
	transitionDoc    string
	transitionTo     string
	transitionActor  string
	transitionRole   string
	transitionReason string
)

var transitionCmd = &cobra.Command{
	Use:   "transition",
	Short: "Move a document through its lifecycle",
	Long:  "Attempts a role-gated lifecycle transition. An illegal move is reported in the result, not as a command failure.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Store.GetDocument(ctx, transitionOrg, transitionDoc)
		if err != nil {
			return eris.Wrap(err, "load document")
		}

		machine := lifecycle.NewMachine(env.Store)
		actor := lifecycle.Actor{ID: transitionActor, Role: model.ActorRole(transitionRole)}
		res, err := machine.Transition(ctx, doc, model.DocumentStatus(transitionTo), actor, transitionReason, nil)
		if err != nil {
			return eris.Wrap(err, "transition document")
		}
		if !res.Success {
			zap.L().Warn("transition refused",
				zap.String("document_id", doc.ID),
				zap.String("reason", res.Reason),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	transitionCmd.Flags().StringVar(&transitionOrg, "org", "", "organization ID (required)")
	transitionCmd.Flags().StringVar(&transitionDoc, "document", "", "document ID (required)")
	transitionCmd.Flags().StringVar(&transitionTo, "to", "", "target status (required)")
	transitionCmd.Flags().StringVar(&transitionActor, "actor", "", "acting user ID")
	transitionCmd.Flags().StringVar(&transitionRole, "role", string(model.RoleOperations), "acting role")
	transitionCmd.Flags().StringVar(&transitionReason, "reason", "", "audit reason")
	_ = transitionCmd.MarkFlagRequired("org")
	_ = transitionCmd.MarkFlagRequired("document")
	_ = transitionCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(transitionCmd)
}
