package rules

import (
	"fmt"
	"math"

	"github.com/tradeware/exportguard/internal/model"
)

// CrossWeightRule compares the Bill of Lading's cargo gross weight against
// the shipment's declared product weight. A relative difference beyond the
// tolerance is a WARNING: it feeds a HOLD, never a REJECT by itself.
// Tolerance is a ratio, e.g. 0.10 for 10%.
func CrossWeightRule(tolerance float64) Rule {
	return Rule{
		ID:       "CROSS-001",
		Name:     "BoL gross weight matches declared product weight",
		Severity: model.SeverityWarning,
		Check: func(ec *EvalContext) Outcome {
			if ec.Doc == nil {
				return Skip("no parsed document")
			}
			bolWeight, ok := ec.Doc.TotalGrossWeightKg()
			if !ok {
				return Skip("no gross weight on bill of lading")
			}
			if ec.Shipment == nil || len(ec.Shipment.Products) == 0 {
				return Skip("no shipment products to compare against")
			}

			var declared float64
			for _, p := range ec.Shipment.Products {
				declared += p.QuantityGrossKg
			}
			if declared == 0 {
				return Skip("declared product weight is zero")
			}

			// Relative to the document figure: 25t on the BoL vs 20t
			// declared reads as a 20% discrepancy.
			base := bolWeight
			if base == 0 {
				base = declared
			}
			diff := math.Abs(bolWeight-declared) / base
			if diff > tolerance {
				return Outcome{
					Message: fmt.Sprintf("gross weight differs from declared by %.1f%% (tolerance %.0f%%)",
						diff*100, tolerance*100),
					FieldPath: "cargo.gross_weight_kg",
					Expected:  fmt.Sprintf("%.2f kg ±%.0f%%", declared, tolerance*100),
					Actual:    fmt.Sprintf("%.2f kg", bolWeight),
				}
			}
			return Pass()
		},
	}
}

// CrossRules returns the cross-document rule set.
func CrossRules(weightTolerance float64) []Rule {
	return []Rule{CrossWeightRule(weightTolerance)}
}
