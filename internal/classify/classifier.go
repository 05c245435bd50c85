// Package classify detects the type of an uploaded trade document. The
// engine only depends on the result contract, never on how classification
// was done: concrete providers are injected.
package classify

import (
	"context"

	"github.com/tradeware/exportguard/internal/model"
)

// Classifier determines the document type of raw extracted text.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.ClassificationResult, error)
}

// Chain tries classifiers in order and returns the first confident answer.
// A provider error or an UNKNOWN result falls through to the next entry;
// the last result wins regardless.
type Chain struct {
	classifiers   []Classifier
	minConfidence float64
}

// NewChain builds a fallback chain. minConfidence is the score below which
// the chain keeps trying later entries.
func NewChain(minConfidence float64, classifiers ...Classifier) *Chain {
	return &Chain{classifiers: classifiers, minConfidence: minConfidence}
}

// Classify runs the chain.
func (c *Chain) Classify(ctx context.Context, text string) (model.ClassificationResult, error) {
	var last model.ClassificationResult
	var lastErr error
	for _, cl := range c.classifiers {
		res, err := cl.Classify(ctx, text)
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		last = res
		if res.DocumentType != model.DocTypeUnknown && res.Confidence >= c.minConfidence {
			return res, nil
		}
	}
	if lastErr != nil && last.DocumentType == "" {
		return model.ClassificationResult{DocumentType: model.DocTypeUnknown}, lastErr
	}
	if last.DocumentType == "" {
		last.DocumentType = model.DocTypeUnknown
	}
	return last, nil
}

// Fake is a deterministic classifier for tests.
type Fake struct {
	Result model.ClassificationResult
	Err    error
	Calls  int
}

// Classify returns the canned result.
func (f *Fake) Classify(_ context.Context, _ string) (model.ClassificationResult, error) {
	f.Calls++
	if f.Err != nil {
		return model.ClassificationResult{DocumentType: model.DocTypeUnknown}, f.Err
	}
	return f.Result, nil
}
