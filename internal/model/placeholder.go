package model

import "strings"

// placeholderLiterals are values an upstream system writes when a field could
// not actually be extracted. They must never be treated as real data.
var placeholderLiterals = map[string]bool{
	"UNKNOWN":           true,
	"UNKNOWN SHIPPER":   true,
	"UNKNOWN CONSIGNEE": true,
	"TBD":               true,
	"TBC":               true,
	"PENDING":           true,
	"N/A":               true,
	"NA":                true,
	"NONE":              true,
	"-":                 true,
	"":                  true,
}

// IsPlaceholder reports whether a field value is a known "not really
// extracted" literal rather than real data. Matching is case-insensitive and
// tolerates prefixes like "Unknown Shipper Ltd" only for the bare "unknown"
// family, since suppliers sometimes pad the literal.
func IsPlaceholder(v string) bool {
	s := strings.ToUpper(strings.TrimSpace(v))
	if placeholderLiterals[s] {
		return true
	}
	return strings.HasPrefix(s, "UNKNOWN ")
}
