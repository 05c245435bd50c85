package rules

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/tradeware/exportguard/internal/model"
)

// EUDRRules apply to shipments of deforestation-regulated commodities
// (cocoa, coffee, palm oil, rubber, soya). They require a due-diligence
// statement with plot geolocation.
func EUDRRules() []Rule {
	return []Rule{
		{
			ID:       "EUDR-001",
			Name:     "Due-diligence statement present",
			Severity: model.SeverityError,
			Check: func(ec *EvalContext) Outcome {
				if ec.Shipment == nil {
					return Skip("no shipment context")
				}
				if len(ec.Shipment.DocumentsOfType(model.DocTypeDueDiligence)) == 0 {
					return Outcome{
						Message:  "EUDR commodity shipment has no due-diligence statement",
						Expected: string(model.DocTypeDueDiligence),
					}
				}
				return Pass()
			},
		},
		{
			ID:       "EUDR-002",
			Name:     "Geolocation in due-diligence statement is valid",
			Severity: model.SeverityError,
			Check: func(ec *EvalContext) Outcome {
				if ec.Shipment == nil {
					return Skip("no shipment context")
				}
				stmts := ec.Shipment.DocumentsOfType(model.DocTypeDueDiligence)
				if len(stmts) == 0 {
					return Skip("no due-diligence statement to check")
				}
				for _, s := range stmts {
					if s.Canonical == nil {
						continue
					}
					ok, reason := validGeolocation(s.Canonical.RawText)
					if ok {
						return Pass()
					}
					if reason != "" {
						return Outcome{
							Message:   "invalid geolocation in due-diligence statement: " + reason,
							FieldPath: "geolocation",
							Expected:  "GeoJSON point or polygon with lat/lon in range",
						}
					}
				}
				return Outcome{
					Message:   "no geolocation found in due-diligence statement",
					FieldPath: "geolocation",
					Expected:  "GeoJSON point or polygon",
				}
			},
		},
		{
			ID:       "EUDR-003",
			Name:     "DDS reference number present",
			Severity: model.SeverityWarning,
			Check: func(ec *EvalContext) Outcome {
				if ec.Shipment == nil {
					return Skip("no shipment context")
				}
				stmts := ec.Shipment.DocumentsOfType(model.DocTypeDueDiligence)
				if len(stmts) == 0 {
					return Skip("no due-diligence statement to check")
				}
				for _, s := range stmts {
					if s.Canonical != nil && ddsRefPattern.MatchString(s.Canonical.RawText) {
						return Pass()
					}
				}
				return Outcome{
					Message:  "no DDS reference number found",
					Expected: "e.g. 25NLCB1234567890",
				}
			},
		},
	}
}

// ddsRefPattern matches EU information-system DDS reference numbers like
// "25NLCB1234567890".
var ddsRefPattern = regexp.MustCompile(`\b\d{2}[A-Z]{2}[A-Z0-9]{10,14}\b`)

// geoJSONBlock finds an embedded JSON object that looks like a GeoJSON
// geometry or feature in free text.
var geoJSONBlock = regexp.MustCompile(`(?s)\{[^{}]*"type"\s*:\s*"(?:Point|Polygon|MultiPolygon|Feature)".*\}`)

// validGeolocation extracts a GeoJSON block from raw statement text and
// validates it. Returns (false, "") when no block is present at all.
func validGeolocation(raw string) (bool, string) {
	block := geoJSONBlock.FindString(raw)
	if block == "" {
		return false, ""
	}

	var g geom.T
	if err := geojson.Unmarshal([]byte(block), &g); err != nil {
		// Feature wrappers are not geometries; unwrap and retry.
		var feat geojson.Feature
		if ferr := json.Unmarshal([]byte(block), &feat); ferr == nil && feat.Geometry != nil {
			g = feat.Geometry
		} else {
			return false, "not parseable as GeoJSON"
		}
	}

	coords := g.FlatCoords()
	if len(coords) < 2 {
		return false, "geometry has no coordinates"
	}
	stride := g.Stride()
	if stride < 2 {
		return false, "geometry has no lon/lat axes"
	}
	for i := 0; i+1 < len(coords); i += stride {
		lon, lat := coords[i], coords[i+1]
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return false, fmt.Sprintf("coordinate out of range: lon=%v lat=%v", lon, lat)
		}
	}
	return true, ""
}
