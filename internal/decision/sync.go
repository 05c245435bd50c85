package decision

import (
	"go.uber.org/zap"

	"github.com/tradeware/exportguard/internal/model"
)

// FieldChange is one proposed update from parsed document data to the
// shipment record.
type FieldChange struct {
	Field   string `json:"field"`
	Current string `json:"current"`
	Parsed  string `json:"parsed"`
	// Applies reports whether the overwrite policy allows this change.
	Applies bool   `json:"applies"`
	Reason  string `json:"reason,omitempty"`
}

// syncField applies the overwrite policy to one field: a placeholder in the
// shipment record is always eligible for overwrite; a real value is only
// replaced by a non-empty, non-placeholder parsed value.
func syncField(name, current, parsed string) *FieldChange {
	if parsed == "" || parsed == current {
		return nil
	}
	fc := &FieldChange{Field: name, Current: current, Parsed: parsed}
	switch {
	case model.IsPlaceholder(current):
		fc.Applies = true
	case model.IsPlaceholder(parsed):
		fc.Reason = "parsed value is a placeholder; existing value kept"
	default:
		fc.Applies = true
	}
	return fc
}

// PreviewSync computes the field changes a parsed Bill of Lading implies for
// the shipment record. It never writes; callers below the confidence
// threshold surface the preview to an operator instead.
func (a *Aggregator) PreviewSync(shipment *model.Shipment, bol *model.CanonicalBoL) []FieldChange {
	var containerNo string
	if len(bol.Containers) > 0 {
		containerNo = bol.Containers[0].Number
	}

	candidates := []*FieldChange{
		syncField("bol_number", shipment.BoLNumber, bol.BoLNumber),
		syncField("shipper_name", shipment.ShipperName, bol.Shipper.Name),
		syncField("consignee_name", shipment.ConsigneeName, bol.Consignee.Name),
		syncField("vessel_name", shipment.VesselName, bol.VesselName),
		syncField("voyage_number", shipment.VoyageNumber, bol.VoyageNumber),
		syncField("container_number", shipment.ContainerNumber, containerNo),
	}

	var changes []FieldChange
	for _, c := range candidates {
		if c != nil {
			changes = append(changes, *c)
		}
	}
	return changes
}

// ApplySync writes applicable parsed fields to the shipment when the parser
// confidence meets the auto-sync threshold. Below threshold nothing is
// written and the preview is returned with applied=false.
func (a *Aggregator) ApplySync(shipment *model.Shipment, bol *model.CanonicalBoL, confidence float64) ([]FieldChange, bool) {
	changes := a.PreviewSync(shipment, bol)
	if confidence < a.cfg.AutoSyncConfidence {
		zap.L().Debug("decision: confidence below auto-sync threshold",
			zap.String("shipment_id", shipment.ID),
			zap.Float64("confidence", confidence),
			zap.Float64("threshold", a.cfg.AutoSyncConfidence),
		)
		return changes, false
	}

	applied := false
	for _, c := range changes {
		if !c.Applies {
			continue
		}
		switch c.Field {
		case "bol_number":
			shipment.BoLNumber = c.Parsed
		case "shipper_name":
			shipment.ShipperName = c.Parsed
		case "consignee_name":
			shipment.ConsigneeName = c.Parsed
		case "vessel_name":
			shipment.VesselName = c.Parsed
		case "voyage_number":
			shipment.VoyageNumber = c.Parsed
		case "container_number":
			shipment.ContainerNumber = c.Parsed
		}
		applied = true
	}
	if applied {
		shipment.UpdatedAt = a.now().UTC()
	}
	return changes, applied
}
