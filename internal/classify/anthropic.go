package classify

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradeware/exportguard/internal/model"
	"github.com/tradeware/exportguard/internal/resilience"
)

const classifySystemPrompt = `You classify trade documents. Reply with a single JSON object:
{"document_type": "<TYPE>", "confidence": <0.0-1.0>}
where TYPE is one of: BILL_OF_LADING, PACKING_LIST, COMMERCIAL_INVOICE,
CERTIFICATE_OF_ORIGIN, VETERINARY_CERTIFICATE, PHYTOSANITARY_CERTIFICATE,
EUDR_DUE_DILIGENCE_STATEMENT, FUMIGATION_CERTIFICATE, UNKNOWN.
No prose, JSON only.`

// maxClassifyChars caps how much document text is sent to the model; type
// markers sit in the first page.
const maxClassifyChars = 6000

// messageCreator is the slice of the Anthropic API the classifier uses,
// extracted for test fakes.
type messageCreator interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClassifier uses a Claude model to type documents. Calls are
// rate-limited and retried on transient failures; the response contract is
// the JSON object above.
type AnthropicClassifier struct {
	messages messageCreator
	model    string
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewAnthropicClassifier creates a classifier backed by the Anthropic API.
func NewAnthropicClassifier(apiKey, modelName string) *AnthropicClassifier {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClassifier{
		messages: &client.Messages,
		model:    modelName,
		limiter:  rate.NewLimiter(2, 1),
		retry:    resilience.DefaultRetryConfig(),
	}
}

// Classify sends the document head to the model and parses the JSON verdict.
func (a *AnthropicClassifier) Classify(ctx context.Context, text string) (model.ClassificationResult, error) {
	unknown := model.ClassificationResult{
		DocumentType: model.DocTypeUnknown,
		Method:       "ai",
		Provider:     "anthropic",
	}

	if strings.TrimSpace(text) == "" {
		return unknown, nil
	}
	if len(text) > maxClassifyChars {
		text = text[:maxClassifyChars]
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return unknown, eris.Wrap(err, "classify: rate limit wait")
	}

	msg, err := resilience.DoVal(ctx, a.retry, "anthropic classify",
		func(ctx context.Context) (*sdk.Message, error) {
			return a.messages.New(ctx, sdk.MessageNewParams{
				Model:     sdk.Model(a.model),
				MaxTokens: 128,
				System: []sdk.TextBlockParam{
					{Text: classifySystemPrompt},
				},
				Messages: []sdk.MessageParam{
					sdk.NewUserMessage(sdk.NewTextBlock(text)),
				},
			})
		})
	if err != nil {
		return unknown, eris.Wrap(err, "classify: anthropic message")
	}

	var raw strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}

	var verdict struct {
		DocumentType string  `json:"document_type"`
		Confidence   float64 `json:"confidence"`
	}
	payload := extractJSONObject(raw.String())
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		zap.L().Warn("classify: unparseable model verdict",
			zap.String("raw", raw.String()),
			zap.Error(err),
		)
		return unknown, nil
	}

	res := unknown
	res.Confidence = verdict.Confidence
	if dt := model.DocumentType(verdict.DocumentType); knownDocType(dt) {
		res.DocumentType = dt
	}
	return res, nil
}

func knownDocType(dt model.DocumentType) bool {
	switch dt {
	case model.DocTypeBillOfLading, model.DocTypePackingList, model.DocTypeCommercialInvoice,
		model.DocTypeCertificateOrigin, model.DocTypeVeterinaryCert, model.DocTypePhytosanitaryCert,
		model.DocTypeDueDiligence, model.DocTypeFumigationCert, model.DocTypeUnknown:
		return true
	}
	return false
}

// extractJSONObject pulls the first {...} block out of a model reply that
// may be wrapped in prose or code fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
