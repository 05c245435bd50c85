package rules

import (
	"regexp"

	"github.com/tradeware/exportguard/internal/model"
)

// chedRefPattern matches TRACES/CHED reference formats, e.g.
// "CHEDP.DE.2025.0012345" or "TRACES REF: DE 2025 1234567".
var chedRefPattern = regexp.MustCompile(`(?i)\b(?:CHED[A-Z]?|TRACES)[\s.:#-]*[A-Z]{0,2}[\s.]*\d{4}[\s.]*\d{4,8}\b`)

// AnimalProductRules apply to animal-by-product shipments (horn & hoof and
// friends). These categories are under veterinary import control, never under
// EUDR, so no geolocation rule appears here.
func AnimalProductRules() []Rule {
	return []Rule{
		{
			ID:       "VET-001",
			Name:     "Veterinary certificate present",
			Severity: model.SeverityError,
			Check: func(ec *EvalContext) Outcome {
				if ec.Shipment == nil {
					return Skip("no shipment context")
				}
				if len(ec.Shipment.DocumentsOfType(model.DocTypeVeterinaryCert)) == 0 {
					return Outcome{
						Message:  "animal-by-product shipment has no veterinary certificate",
						Expected: string(model.DocTypeVeterinaryCert),
					}
				}
				return Pass()
			},
		},
		{
			ID:       "VET-002",
			Name:     "TRACES/CHED reference on veterinary certificate",
			Severity: model.SeverityWarning,
			Check: func(ec *EvalContext) Outcome {
				if ec.Shipment == nil {
					return Skip("no shipment context")
				}
				certs := ec.Shipment.DocumentsOfType(model.DocTypeVeterinaryCert)
				if len(certs) == 0 {
					return Skip("no veterinary certificate to check")
				}
				for _, c := range certs {
					if c.Canonical != nil && chedRefPattern.MatchString(c.Canonical.RawText) {
						return Pass()
					}
				}
				return Outcome{
					Message:  "no TRACES/CHED reference found on veterinary certificate",
					Expected: "TRACES or CHED reference number",
				}
			},
		},
		{
			ID:       "VET-003",
			Name:     "Cargo description names the animal by-product",
			Severity: model.SeverityInfo,
			Check: func(ec *EvalContext) Outcome {
				if ec.Doc == nil || len(ec.Doc.Cargo) == 0 {
					return Skip("no cargo lines")
				}
				for _, line := range ec.Doc.Cargo {
					if animalDescPattern.MatchString(line.Description) {
						return Pass()
					}
				}
				return Outcome{
					Message:   "cargo description does not mention an animal by-product",
					FieldPath: "cargo.description",
				}
			},
		},
	}
}

var animalDescPattern = regexp.MustCompile(`(?i)\b(horn|hoof|hooves|bone|hide|skin|tallow)\b`)
