// Package registry is the product-type-aware lookup for which validation
// rules apply to a shipment. It is a pure table over the HS taxonomy: no
// state, no side effects.
package registry

import (
	"strings"

	"github.com/tradeware/exportguard/internal/model"
)

// eudrPrefixes are the 4-digit HS prefixes of EUDR-covered commodities:
// cocoa, coffee, palm oil, rubber, soya.
var eudrPrefixes = map[string]bool{
	"1801": true, // cocoa beans
	"0901": true, // coffee
	"1511": true, // palm oil
	"4001": true, // natural rubber
	"1201": true, // soya beans
}

// eudrExcludedPrefixes are categories that must never be classified as
// EUDR-applicable: animal by-products (0506/0507) fall under veterinary
// import control, and the listed plant products (sweet potato, hibiscus,
// ginger) are outside the regulation's commodity scope.
var eudrExcludedPrefixes = map[string]bool{
	"0506": true, // bones
	"0507": true, // horns, hooves
	"0714": true, // sweet potato
	"0902": true, // hibiscus/tea
	"0910": true, // ginger
}

// NormalizeHS strips separators from an HS code: "0507.90" -> "050790".
func NormalizeHS(hs string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, hs)
}

// IsEUDRRequired reports whether an HS code (base code or any sub-code
// sharing the 4-digit prefix) falls under EUDR due-diligence requirements.
// Excluded prefixes win over everything.
func IsEUDRRequired(hs string) bool {
	n := NormalizeHS(hs)
	if len(n) < 4 {
		return false
	}
	prefix := n[:4]
	if eudrExcludedPrefixes[prefix] {
		return false
	}
	return eudrPrefixes[prefix]
}

// hsProductTypes maps 4-digit HS prefixes to product types.
var hsProductTypes = map[string]model.ProductType{
	"0506": model.ProductHornHoof,
	"0507": model.ProductHornHoof,
	"0714": model.ProductSweetPotato,
	"0902": model.ProductHibiscus,
	"0910": model.ProductGinger,
	"1801": model.ProductCocoa,
	"0901": model.ProductCoffee,
	"1511": model.ProductPalmOil,
	"4001": model.ProductRubber,
	"1201": model.ProductSoya,
}

// ProductTypeForHS returns the product type for an HS code, defaulting to
// GENERAL for unmapped prefixes.
func ProductTypeForHS(hs string) model.ProductType {
	n := NormalizeHS(hs)
	if len(n) >= 4 {
		if pt, ok := hsProductTypes[n[:4]]; ok {
			return pt
		}
	}
	return model.ProductGeneral
}

// IsAnimalByProduct reports whether the product type is under veterinary
// import control.
func IsAnimalByProduct(pt model.ProductType) bool {
	return pt == model.ProductHornHoof
}

// IsEUDRProduct reports whether the product type is an EUDR commodity.
func IsEUDRProduct(pt model.ProductType) bool {
	switch pt {
	case model.ProductCocoa, model.ProductCoffee, model.ProductPalmOil,
		model.ProductRubber, model.ProductSoya:
		return true
	}
	return false
}
