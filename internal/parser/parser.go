// Package parser turns raw extracted Bill of Lading text into a canonical
// document plus a confidence score. Parsing is pure and deterministic: the
// same text always yields the same document and score.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tradeware/exportguard/internal/model"
)

// signalFieldTotal is the number of signal fields the confidence score is
// scaled over: document number, shipper, consignee, at least one container,
// vessel, and ports.
const signalFieldTotal = 6

// Parser extracts canonical Bill of Lading data from raw text. The zero
// value is not usable; construct with New.
type Parser struct {
	upper cases.Caser
}

// New creates a Parser.
func New() *Parser {
	return &Parser{upper: cases.Upper(language.Und)}
}

// labelPatterns is an ordered fallback list for one field: the first pattern
// that matches wins. Each pattern captures the field value in group 1.
type labelPatterns []*regexp.Regexp

func (lp labelPatterns) extract(text string) string {
	for _, re := range lp {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Label variants by shipping line. MSC prints "B/L No.", Maersk "B/L Number",
// older formats spell it out. Order is fixed; first match wins.
var (
	bolNumberPatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*B/L\s*No\.?\s*:?\s*([A-Z]{2,4}[A-Z0-9]{4,12})`),
		regexp.MustCompile(`(?im)^\s*B/L\s*Number\s*:?\s*([A-Z]{2,4}[A-Z0-9]{4,12})`),
		regexp.MustCompile(`(?im)^\s*BILL\s+OF\s+LADING\s+(?:No\.?|Number)\s*:?\s*([A-Z]{2,4}[A-Z0-9]{4,12})`),
		regexp.MustCompile(`(?im)^\s*BL\s*(?:No\.?|Number)?\s*:\s*([A-Z]{2,4}[A-Z0-9]{4,12})`),
		regexp.MustCompile(`(?im)^\s*Document\s+No\.?\s*:?\s*([A-Z]{2,4}[A-Z0-9]{4,12})`),
	}

	// Combined "Vessel/Voyage:" first, then split "VESSEL:" and "VOYAGE:".
	vesselVoyagePatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Vessel\s*/\s*Voyage\s*:?\s*(.+)$`),
		regexp.MustCompile(`(?im)^\s*Ocean\s+Vessel\s*/\s*Voy\.?\s*:?\s*(.+)$`),
	}
	vesselPatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*(?:Ocean\s+)?Vessel(?:\s+Name)?\s*:?\s*(.+)$`),
		regexp.MustCompile(`(?im)^\s*M/?V\s*:?\s*(.+)$`),
	}
	voyagePatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Voyage(?:\s+No\.?)?\s*:?\s*([A-Z0-9]+)`),
		regexp.MustCompile(`(?im)^\s*Voy\.?\s*(?:No\.?)?\s*:?\s*([A-Z0-9]+)`),
	}

	portOfLoadingPatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Port\s+of\s+Loading\s*:?\s*(.+)$`),
		regexp.MustCompile(`(?im)^\s*POL\s*:?\s*(.+)$`),
		regexp.MustCompile(`(?im)^\s*Place\s+of\s+Receipt\s*:?\s*(.+)$`),
	}
	portOfDischargePatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Port\s+of\s+Discharge\s*:?\s*(.+)$`),
		regexp.MustCompile(`(?im)^\s*POD\s*:?\s*(.+)$`),
		regexp.MustCompile(`(?im)^\s*Place\s+of\s+Delivery\s*:?\s*(.+)$`),
	}

	freightTermsPatterns = labelPatterns{
		regexp.MustCompile(`(?im)\b(FREIGHT\s+(?:PREPAID|COLLECT))\b`),
		regexp.MustCompile(`(?im)^\s*Freight\s+Terms?\s*:?\s*(.+)$`),
	}

	issueDatePatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*(?:Date\s+of\s+Issue|Issue\s+Date|Place\s+and\s+Date\s+of\s+Issue)\s*:?\s*.*?(\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})`),
	}
	onBoardDatePatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*(?:Shipped\s+)?On\s*Board\s*(?:Date)?\s*:?\s*.*?(\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})`),
	}

	// Party blocks: label line, then name on the same or following line.
	shipperPatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Shipper(?:/Exporter)?\s*:?\s*\n?\s*(.+)$`),
	}
	consigneePatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Consignee\s*:?\s*\n?\s*(.+)$`),
	}
	notifyPatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Notify(?:\s+Party)?\s*:?\s*\n?\s*(.+)$`),
	}

	containerPattern = regexp.MustCompile(`\b([A-Z]{4})\s?(\d{7})\b`)
	sealPattern      = regexp.MustCompile(`(?im)Seal\s*(?:No\.?|Number)?\s*:?\s*([A-Z0-9]{4,15})`)

	hsCodePattern       = regexp.MustCompile(`(?im)H\.?S\.?\s*Code\s*:?\s*(\d{4,10})`)
	grossWeightPattern  = regexp.MustCompile(`(?im)Gross\s*Weight\s*:?\s*([\d,]+(?:\.\d+)?)\s*KG`)
	netWeightPattern    = regexp.MustCompile(`(?im)Net\s*Weight\s*:?\s*([\d,]+(?:\.\d+)?)\s*KG`)
	descriptionPatterns = labelPatterns{
		regexp.MustCompile(`(?im)^\s*Description\s+of\s+(?:Goods|Packages\s+and\s+Goods)\s*:?\s*\n?\s*(.+)$`),
		regexp.MustCompile(`(?im)^\s*Cargo\s+Description\s*:?\s*\n?\s*(.+)$`),
	}
	quantityPattern = regexp.MustCompile(`(?im)\b(\d{1,6})\s+(BAGS?|BALES?|CARTONS?|DRUMS?|PACKAGES?|PALLETS?|PCS)\b`)
)

var dateLayouts = []string{
	"02/01/2006", "02-01-2006", "02.01.2006",
	"2/1/2006", "02/01/06",
	"2 January 2006", "02 January 2006", "2 Jan 2006", "02 Jan 2006",
}

// Parse extracts a CanonicalBoL from raw document text. Missing optional
// fields never produce errors; an unrecognizable or empty input yields an
// empty document with confidence 0. Placeholder literals are extracted as-is
// but do not count toward the confidence score.
func (p *Parser) Parse(raw string) (*model.CanonicalBoL, float64) {
	doc := &model.CanonicalBoL{RawText: raw}
	if strings.TrimSpace(raw) == "" {
		return doc, 0
	}

	doc.BoLNumber = bolNumberPatterns.extract(raw)
	doc.Shipper = extractParty(raw, shipperPatterns)
	doc.Consignee = extractParty(raw, consigneePatterns)
	if np := extractParty(raw, notifyPatterns); np.Name != "" {
		doc.NotifyParty = &np
	}

	p.extractVesselVoyage(raw, doc)
	doc.PortOfLoading = portOfLoadingPatterns.extract(raw)
	doc.PortOfDischarge = portOfDischargePatterns.extract(raw)
	doc.FreightTerms = p.upper.String(freightTermsPatterns.extract(raw))

	doc.IssueDate = parseDate(issueDatePatterns.extract(raw))
	doc.OnBoardDate = parseDate(onBoardDatePatterns.extract(raw))

	p.extractContainers(raw, doc)
	p.extractCargo(raw, doc)

	doc.ConfidenceScore = confidence(doc)
	return doc, doc.ConfidenceScore
}

// extractVesselVoyage tries the combined "Vessel/Voyage" label first, then
// the separate per-field labels.
func (p *Parser) extractVesselVoyage(raw string, doc *model.CanonicalBoL) {
	if combined := vesselVoyagePatterns.extract(raw); combined != "" {
		vessel, voyage := splitVesselVoyage(combined)
		doc.VesselName = vessel
		doc.VoyageNumber = voyage
		return
	}
	doc.VesselName = strings.TrimSpace(vesselPatterns.extract(raw))
	doc.VoyageNumber = voyagePatterns.extract(raw)
}

// splitVesselVoyage splits "MSC MARINA / FA429A" or "MSC MARINA FA429A" into
// vessel name and voyage number. The voyage is taken as the last token when
// it looks like a voyage code (contains a digit).
func splitVesselVoyage(s string) (vessel, voyage string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	fields := strings.Fields(s)
	if len(fields) >= 2 {
		last := fields[len(fields)-1]
		if strings.ContainsAny(last, "0123456789") {
			return strings.Join(fields[:len(fields)-1], " "), last
		}
	}
	return s, ""
}

func extractParty(raw string, lp labelPatterns) model.Party {
	line := lp.extract(raw)
	if line == "" {
		return model.Party{}
	}
	// The label line sometimes runs into address text after two spaces.
	if i := strings.Index(line, "  "); i > 0 {
		return model.Party{Name: strings.TrimSpace(line[:i]), Address: strings.TrimSpace(line[i:])}
	}
	return model.Party{Name: line}
}

func (p *Parser) extractContainers(raw string, doc *model.CanonicalBoL) {
	seal := sealPattern.FindStringSubmatch(raw)
	seen := make(map[string]bool)
	for _, m := range containerPattern.FindAllStringSubmatch(raw, -1) {
		num := m[1] + m[2]
		// Maersk-style B/L numbers share the 4-letter+7-digit shape.
		if num == doc.BoLNumber {
			continue
		}
		if seen[num] {
			continue
		}
		seen[num] = true
		c := model.Container{Number: num}
		if seal != nil && len(doc.Containers) == 0 {
			c.SealNumber = seal[1]
		}
		doc.AddContainer(c)
	}
}

func (p *Parser) extractCargo(raw string, doc *model.CanonicalBoL) {
	desc := descriptionPatterns.extract(raw)
	hs := ""
	if m := hsCodePattern.FindStringSubmatch(raw); m != nil {
		hs = m[1]
	}
	gross := parseWeight(grossWeightPattern, raw)
	net := parseWeight(netWeightPattern, raw)

	var qty *float64
	unit := ""
	if m := quantityPattern.FindStringSubmatch(raw); m != nil {
		if v := parseFloat(m[1]); v != nil {
			qty = v
			unit = strings.ToUpper(m[2])
		}
	}

	if desc == "" && hs == "" && gross == nil && net == nil && qty == nil {
		return
	}
	doc.Cargo = append(doc.Cargo, model.CargoLine{
		Description:   desc,
		HSCode:        hs,
		Quantity:      qty,
		Unit:          unit,
		GrossWeightKg: gross,
		NetWeightKg:   net,
	})
}

func parseWeight(re *regexp.Regexp, raw string) *float64 {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return parseFloat(m[1])
}

func parseFloat(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// confidence scales the count of successfully extracted signal fields to
// [0,1]. A placeholder value is present-but-meaningless and contributes
// nothing.
func confidence(doc *model.CanonicalBoL) float64 {
	n := 0
	if doc.BoLNumber != "" && !model.IsPlaceholder(doc.BoLNumber) {
		n++
	}
	if doc.Shipper.IsReal() {
		n++
	}
	if doc.Consignee.IsReal() {
		n++
	}
	if len(doc.Containers) > 0 {
		n++
	}
	if doc.VesselName != "" && !model.IsPlaceholder(doc.VesselName) {
		n++
	}
	if (doc.PortOfLoading != "" && !model.IsPlaceholder(doc.PortOfLoading)) ||
		(doc.PortOfDischarge != "" && !model.IsPlaceholder(doc.PortOfDischarge)) {
		n++
	}
	return float64(n) / float64(signalFieldTotal)
}
