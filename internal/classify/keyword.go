package classify

import (
	"context"
	"strings"

	"github.com/tradeware/exportguard/internal/model"
)

// docTypeKeywords scores document types by marker phrases. Phrases are
// matched case-insensitively; the type with the highest hit count wins.
var docTypeKeywords = map[model.DocumentType][]string{
	model.DocTypeBillOfLading: {
		"bill of lading", "b/l no", "shipped on board", "port of loading",
		"port of discharge", "ocean vessel", "freight prepaid", "freight collect",
	},
	model.DocTypePackingList: {
		"packing list", "total packages", "net weight", "gross weight", "carton",
	},
	model.DocTypeCommercialInvoice: {
		"commercial invoice", "invoice no", "unit price", "total amount", "payment terms",
	},
	model.DocTypeCertificateOrigin: {
		"certificate of origin", "country of origin", "chamber of commerce",
	},
	model.DocTypeVeterinaryCert: {
		"veterinary certificate", "health certificate", "veterinary authority",
		"animal by-product", "traces", "ched",
	},
	model.DocTypePhytosanitaryCert: {
		"phytosanitary certificate", "plant protection", "fumigation treatment",
	},
	model.DocTypeDueDiligence: {
		"due diligence statement", "deforestation", "eudr", "geolocation", "dds reference",
	},
	model.DocTypeFumigationCert: {
		"fumigation certificate", "methyl bromide", "phosphine",
	},
}

// classifyOrder fixes the evaluation order so ties resolve the same way on
// every run.
var classifyOrder = []model.DocumentType{
	model.DocTypeBillOfLading,
	model.DocTypePackingList,
	model.DocTypeCommercialInvoice,
	model.DocTypeCertificateOrigin,
	model.DocTypeVeterinaryCert,
	model.DocTypePhytosanitaryCert,
	model.DocTypeDueDiligence,
	model.DocTypeFumigationCert,
}

// KeywordClassifier is the deterministic, offline document-type detector.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a KeywordClassifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify scores each known document type by keyword hits. Confidence is
// the winner's hit count over its keyword count, so a fully matching
// template approaches 1.0.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (model.ClassificationResult, error) {
	res := model.ClassificationResult{
		DocumentType: model.DocTypeUnknown,
		Method:       "keyword",
		Provider:     "builtin",
	}
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return res, nil
	}

	bestHits := 0
	for _, dt := range classifyOrder {
		keywords := docTypeKeywords[dt]
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		conf := float64(hits) / float64(len(keywords))
		// Strictly-better wins; ties keep the earlier type.
		if hits > bestHits || (hits == bestHits && conf > res.Confidence) {
			bestHits = hits
			res.DocumentType = dt
			res.Confidence = conf
		}
	}
	return res, nil
}
