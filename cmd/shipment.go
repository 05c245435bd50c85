package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/model"
)

var (
	shipmentOrg     string
	shipmentRef     string
	shipmentProduct string
)

var shipmentCmd = &cobra.Command{
	Use:   "shipment",
	Short: "Manage shipments",
}

var shipmentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a shipment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sh := &model.Shipment{
			OrganizationID: shipmentOrg,
			Reference:      shipmentRef,
			ProductType:    model.ProductType(shipmentProduct),
		}
		if err := env.Store.CreateShipment(ctx, sh); err != nil {
			return eris.Wrap(err, "create shipment")
		}

		zap.L().Info("shipment created",
			zap.String("id", sh.ID),
			zap.String("reference", sh.Reference),
			zap.String("product_type", string(sh.ProductType)),
		)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sh)
	},
}

var shipmentProductsCmd = &cobra.Command{
	Use:   "products <file>",
	Short: "Replace a shipment's declared products from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEvaluator(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sh, err := env.Store.GetShipmentByReference(ctx, shipmentOrg, shipmentRef)
		if err != nil {
			return eris.Wrap(err, "load shipment")
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		var products []model.Product
		if err := json.Unmarshal(raw, &products); err != nil {
			return eris.Wrap(err, "parse products file")
		}
		for i := range products {
			products[i].ShipmentID = sh.ID
			products[i].OrganizationID = sh.OrganizationID
		}

		if err := env.Store.ReplaceProducts(ctx, sh.ID, products); err != nil {
			return eris.Wrap(err, "replace products")
		}
		zap.L().Info("products replaced",
			zap.String("reference", sh.Reference),
			zap.Int("count", len(products)),
		)
		return nil
	},
}

func init() {
	shipmentCmd.PersistentFlags().StringVar(&shipmentOrg, "org", "", "organization ID (required)")
	shipmentCmd.PersistentFlags().StringVar(&shipmentRef, "reference", "", "shipment reference (required)")
	_ = shipmentCmd.MarkPersistentFlagRequired("org")
	_ = shipmentCmd.MarkPersistentFlagRequired("reference")

	shipmentCreateCmd.Flags().StringVar(&shipmentProduct, "product-type", string(model.ProductGeneral), "product type driving the rule set")

	shipmentCmd.AddCommand(shipmentCreateCmd)
	shipmentCmd.AddCommand(shipmentProductsCmd)
	rootCmd.AddCommand(shipmentCmd)
}
