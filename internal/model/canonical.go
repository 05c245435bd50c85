package model

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Party is a named party on a trade document (shipper, consignee, notify).
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Country string `json:"country,omitempty"`
}

// IsReal reports whether the party carries a non-placeholder name.
func (p Party) IsReal() bool {
	return !IsPlaceholder(p.Name)
}

// Container is one container line on a Bill of Lading. Number is normalized
// (uppercase, no spaces) on construction; ISO 6346 validity is a rule concern,
// not a construction concern, so malformed numbers stay representable.
type Container struct {
	Number     string   `json:"number"`
	SealNumber string   `json:"seal_number,omitempty"`
	Type       string   `json:"type,omitempty"`
	WeightKg   *float64 `json:"weight_kg,omitempty"`
}

// CargoLine is one cargo item on a Bill of Lading.
type CargoLine struct {
	Description   string   `json:"description"`
	HSCode        string   `json:"hs_code,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	GrossWeightKg *float64 `json:"gross_weight_kg,omitempty"`
	NetWeightKg   *float64 `json:"net_weight_kg,omitempty"`
}

// CanonicalBoL is the normalized representation of a Bill of Lading,
// independent of the shipping line's source format.
type CanonicalBoL struct {
	BoLNumber       string      `json:"bol_number"`
	Shipper         Party       `json:"shipper"`
	Consignee       Party       `json:"consignee"`
	NotifyParty     *Party      `json:"notify_party,omitempty"`
	Containers      []Container `json:"containers,omitempty"`
	Cargo           []CargoLine `json:"cargo,omitempty"`
	VesselName      string      `json:"vessel_name,omitempty"`
	VoyageNumber    string      `json:"voyage_number,omitempty"`
	PortOfLoading   string      `json:"port_of_loading,omitempty"`
	PortOfDischarge string      `json:"port_of_discharge,omitempty"`
	IssueDate       *time.Time  `json:"issue_date,omitempty"`
	OnBoardDate     *time.Time  `json:"on_board_date,omitempty"`
	FreightTerms    string      `json:"freight_terms,omitempty"`
	RawText         string      `json:"raw_text,omitempty"`
	ConfidenceScore float64     `json:"confidence_score"`
}

// NewCanonicalBoL constructs a CanonicalBoL from the conceptually required
// fields. A missing document number, shipper or consignee name is a
// programming error upstream, so this is the one construction-time hard error
// in the schema. Placeholder values are accepted here; rules flag them.
func NewCanonicalBoL(bolNumber string, shipper, consignee Party) (*CanonicalBoL, error) {
	if strings.TrimSpace(bolNumber) == "" {
		return nil, eris.New("canonical: bol number is required")
	}
	if strings.TrimSpace(shipper.Name) == "" {
		return nil, eris.New("canonical: shipper name is required")
	}
	if strings.TrimSpace(consignee.Name) == "" {
		return nil, eris.New("canonical: consignee name is required")
	}
	return &CanonicalBoL{
		BoLNumber: strings.TrimSpace(bolNumber),
		Shipper:   shipper,
		Consignee: consignee,
	}, nil
}

// AddContainer appends a container with its number normalized.
func (b *CanonicalBoL) AddContainer(c Container) {
	c.Number = NormalizeContainerNumber(c.Number)
	b.Containers = append(b.Containers, c)
}

// NormalizeContainerNumber strips all whitespace and upper-cases a container
// number.
func NormalizeContainerNumber(n string) string {
	return strings.ToUpper(strings.Join(strings.Fields(n), ""))
}

// containerPattern matches the ISO 6346 shape: 4 letters then 7 digits.
var containerPattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{7}$`)

// letterValues maps ISO 6346 letters to numeric values (multiples of 11 are
// skipped in the standard's table).
var letterValues = func() map[byte]int {
	m := make(map[byte]int, 26)
	v := 10
	for c := byte('A'); c <= 'Z'; c++ {
		if v%11 == 0 {
			v++
		}
		m[c] = v
		v++
	}
	return m
}()

// ValidContainerNumber reports whether a normalized container number conforms
// to ISO 6346, including its check digit.
func ValidContainerNumber(n string) bool {
	if !containerPattern.MatchString(n) {
		return false
	}
	sum := 0
	for i := 0; i < 10; i++ {
		var v int
		if i < 4 {
			v = letterValues[n[i]]
		} else {
			v = int(n[i] - '0')
		}
		sum += v << i
	}
	check := sum % 11 % 10
	return check == int(n[10]-'0')
}

// locodePattern finds a 5-character UN/LOCODE either in parentheses
// ("Apapa (NGAPP)") or as a standalone prefix token ("NGAPP Apapa").
var (
	locodeParen  = regexp.MustCompile(`\(([A-Z]{2}[A-Z0-9]{3})\)`)
	locodePrefix = regexp.MustCompile(`^([A-Z]{2}[A-Z0-9]{3})\b`)
)

// ExtractLocode pulls an embedded UN/LOCODE out of a free-text port field.
// Returns the empty string when none is present.
func ExtractLocode(port string) string {
	s := strings.TrimSpace(port)
	if m := locodeParen.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := locodePrefix.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// SignalFieldCount returns how many of the parser's signal fields carry a
// value: document number, shipper, consignee, at least one container, vessel,
// and ports (loading + discharge counted together).
func (b *CanonicalBoL) SignalFieldCount() int {
	n := 0
	if b.BoLNumber != "" {
		n++
	}
	if b.Shipper.Name != "" {
		n++
	}
	if b.Consignee.Name != "" {
		n++
	}
	if len(b.Containers) > 0 {
		n++
	}
	if b.VesselName != "" {
		n++
	}
	if b.PortOfLoading != "" || b.PortOfDischarge != "" {
		n++
	}
	return n
}

// TotalGrossWeightKg sums gross weights across cargo lines. The second return
// is false when no line carries a gross weight.
func (b *CanonicalBoL) TotalGrossWeightKg() (float64, bool) {
	var total float64
	found := false
	for _, c := range b.Cargo {
		if c.GrossWeightKg != nil {
			total += *c.GrossWeightKg
			found = true
		}
	}
	return total, found
}

// ToMap serializes the document to a plain key-value structure. Round-trips
// through FromMap losslessly for all populated fields.
func (b *CanonicalBoL) ToMap() (map[string]any, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "canonical: marshal")
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "canonical: unmarshal to map")
	}
	return m, nil
}

// FromMap reconstructs a CanonicalBoL from the structure ToMap produced.
func FromMap(m map[string]any) (*CanonicalBoL, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "canonical: marshal map")
	}
	var b CanonicalBoL
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrap(err, "canonical: unmarshal")
	}
	return &b, nil
}
