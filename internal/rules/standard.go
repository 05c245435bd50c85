package rules

import (
	"fmt"
	"strings"

	"github.com/tradeware/exportguard/internal/model"
)

// StandardRules is the document-hygiene set applied to every product type:
// required fields present, container format valid, no placeholder values in
// the identifying fields.
func StandardRules() []Rule {
	return []Rule{
		{
			ID:       "BOL-001",
			Name:     "Document number present",
			Severity: model.SeverityError,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil {
					return Skip("no parsed document")
				}
				if model.IsPlaceholder(ec.Doc.BoLNumber) {
					return Outcome{
						Message:   "document number missing or placeholder",
						FieldPath: "bol_number",
						Actual:    ec.Doc.BoLNumber,
					}
				}
				return Pass()
			},
		},
		{
			ID:       "BOL-002",
			Name:     "Shipper is a real party",
			Severity: model.SeverityError,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil {
					return Skip("no parsed document")
				}
				if !ec.Doc.Shipper.IsReal() {
					return Outcome{
						Message:   "shipper name missing or placeholder",
						FieldPath: "shipper.name",
						Actual:    ec.Doc.Shipper.Name,
					}
				}
				return Pass()
			},
		},
		{
			ID:       "BOL-003",
			Name:     "Consignee is a real party",
			Severity: model.SeverityError,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil {
					return Skip("no parsed document")
				}
				if !ec.Doc.Consignee.IsReal() {
					return Outcome{
						Message:   "consignee name missing or placeholder",
						FieldPath: "consignee.name",
						Actual:    ec.Doc.Consignee.Name,
					}
				}
				return Pass()
			},
		},
		{
			ID:       "BOL-004",
			Name:     "At least one container listed",
			Severity: model.SeverityWarning,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil {
					return Skip("no parsed document")
				}
				if len(ec.Doc.Containers) == 0 {
					return Outcome{Message: "no containers extracted", FieldPath: "containers"}
				}
				return Pass()
			},
		},
		{
			ID:       "BOL-005",
			Name:     "Container numbers conform to ISO 6346",
			Severity: model.SeverityError,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil || len(ec.Doc.Containers) == 0 {
					return Skip("no containers to check")
				}
				var bad []string
				for _, c := range ec.Doc.Containers {
					if !model.ValidContainerNumber(c.Number) {
						bad = append(bad, c.Number)
					}
				}
				if len(bad) > 0 {
					return Outcome{
						Message:   fmt.Sprintf("invalid container number(s): %s", strings.Join(bad, ", ")),
						FieldPath: "containers.number",
						Expected:  "ISO 6346 (4 letters + 7 digits incl. check digit)",
						Actual:    strings.Join(bad, ", "),
					}
				}
				return Pass()
			},
		},
		{
			ID:       "BOL-006",
			Name:     "Vessel identified",
			Severity: model.SeverityWarning,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil {
					return Skip("no parsed document")
				}
				if model.IsPlaceholder(ec.Doc.VesselName) {
					return Outcome{Message: "vessel name missing or placeholder", FieldPath: "vessel_name", Actual: ec.Doc.VesselName}
				}
				return Pass()
			},
		},
		{
			ID:       "BOL-007",
			Name:     "Ports of loading and discharge present",
			Severity: model.SeverityWarning,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil {
					return Skip("no parsed document")
				}
				if model.IsPlaceholder(ec.Doc.PortOfLoading) || model.IsPlaceholder(ec.Doc.PortOfDischarge) {
					return Outcome{
						Message:   "port of loading or discharge missing",
						FieldPath: "port_of_loading",
					}
				}
				return Pass()
			},
		},
		{
			ID:       "BOL-008",
			Name:     "Ports carry a UN/LOCODE",
			Severity: model.SeverityInfo,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil || ec.Doc.PortOfLoading == "" && ec.Doc.PortOfDischarge == "" {
					return Skip("no ports to check")
				}
				var missing []string
				if ec.Doc.PortOfLoading != "" && model.ExtractLocode(ec.Doc.PortOfLoading) == "" {
					missing = append(missing, "port_of_loading")
				}
				if ec.Doc.PortOfDischarge != "" && model.ExtractLocode(ec.Doc.PortOfDischarge) == "" {
					missing = append(missing, "port_of_discharge")
				}
				if len(missing) > 0 {
					return Outcome{
						Message:   "no UN/LOCODE embedded in " + strings.Join(missing, ", "),
						FieldPath: missing[0],
					}
				}
				return Pass()
			},
		},
	}
}
