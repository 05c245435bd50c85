// Package report renders the xlsx audit workbook for a shipment's
// compliance run.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/tradeware/exportguard/internal/model"
)

// WriteWorkbook writes the audit workbook: a summary sheet, one row per rule
// result, and the document inventory. Given the same inputs it always
// produces the same content, so callers may regenerate and retry freely.
func WriteWorkbook(w io.Writer, shipment *model.Shipment, docs []model.Document, results []model.ComplianceResult) error {
	f := xlsx.NewFile()

	if err := writeSummary(f, shipment, results); err != nil {
		return err
	}
	if err := writeResults(f, results); err != nil {
		return err
	}
	if err := writeDocuments(f, docs); err != nil {
		return err
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}

func writeSummary(f *xlsx.File, shipment *model.Shipment, results []model.ComplianceResult) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	var failed, failedErrors, failedWarnings int
	for _, r := range results {
		if r.Passed {
			continue
		}
		failed++
		switch r.Severity {
		case model.SeverityError:
			failedErrors++
		case model.SeverityWarning:
			failedWarnings++
		}
	}

	rows := [][]string{
		{"Shipment reference", shipment.Reference},
		{"Product type", string(shipment.ProductType)},
		{"Shipper", shipment.ShipperName},
		{"Consignee", shipment.ConsigneeName},
		{"Vessel / Voyage", joinVesselVoyage(shipment.VesselName, shipment.VoyageNumber)},
		{"B/L number", shipment.BoLNumber},
		{"Rules evaluated", fmt.Sprintf("%d", len(results))},
		{"Failed", fmt.Sprintf("%d", failed)},
		{"Failed (ERROR)", fmt.Sprintf("%d", failedErrors)},
		{"Failed (WARNING)", fmt.Sprintf("%d", failedWarnings)},
	}
	if shipment.Overridden() {
		rows = append(rows,
			[]string{"Validation override", shipment.ValidationOverrideReason},
			[]string{"Overridden by", shipment.ValidationOverrideBy},
		)
	}

	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	return nil
}

var resultHeader = []string{
	"Rule ID", "Rule name", "Passed", "Severity", "Message", "Field", "Document ID", "Checked at",
}

func writeResults(f *xlsx.File, results []model.ComplianceResult) error {
	sheet, err := f.AddSheet("Rule Results")
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}

	header := sheet.AddRow()
	for _, h := range resultHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().SetString(r.RuleID)
		row.AddCell().SetString(r.RuleName)
		row.AddCell().SetBool(r.Passed)
		row.AddCell().SetString(string(r.Severity))
		row.AddCell().SetString(r.Message)
		row.AddCell().SetString(r.FieldPath)
		row.AddCell().SetString(r.DocumentID)
		row.AddCell().SetString(r.CheckedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

var documentHeader = []string{
	"Document ID", "Type", "Status", "Version", "Primary", "Confidence", "Updated at",
}

func writeDocuments(f *xlsx.File, docs []model.Document) error {
	sheet, err := f.AddSheet("Documents")
	if err != nil {
		return eris.Wrap(err, "report: add documents sheet")
	}

	header := sheet.AddRow()
	for _, h := range documentHeader {
		header.AddCell().SetString(h)
	}

	for _, d := range docs {
		row := sheet.AddRow()
		row.AddCell().SetString(d.ID)
		row.AddCell().SetString(string(d.DocumentType))
		row.AddCell().SetString(string(d.Status))
		row.AddCell().SetInt(d.Version)
		row.AddCell().SetBool(d.IsPrimary)
		row.AddCell().SetFloat(d.Confidence)
		row.AddCell().SetString(d.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func joinVesselVoyage(vessel, voyage string) string {
	switch {
	case vessel == "":
		return voyage
	case voyage == "":
		return vessel
	default:
		return vessel + " / " + voyage
	}
}
