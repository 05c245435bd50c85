// Package pipeline wires the engine's collaborators into the two
// entry-point flows: document ingestion and shipment evaluation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tradeware/exportguard/internal/classify"
	"github.com/tradeware/exportguard/internal/config"
	"github.com/tradeware/exportguard/internal/decision"
	"github.com/tradeware/exportguard/internal/lifecycle"
	"github.com/tradeware/exportguard/internal/model"
	"github.com/tradeware/exportguard/internal/parser"
	"github.com/tradeware/exportguard/internal/registry"
	"github.com/tradeware/exportguard/internal/rules"
	"github.com/tradeware/exportguard/internal/store"
)

// Evaluator orchestrates ingestion and compliance evaluation against a
// Store. It owns the parser, classifier chain, rule registry, decision
// aggregator and lifecycle machine; callers hold one Evaluator per process.
type Evaluator struct {
	cfg        *config.Config
	store      store.Store
	parser     *parser.Parser
	classifier classify.Classifier
	registry   *registry.Registry
	aggregator *decision.Aggregator
	engine     *rules.Engine
	machine    *lifecycle.Machine
	now        func() time.Time
}

// New creates an Evaluator. classifier may be nil, in which case every
// ingested document starts UNKNOWN and waits for manual classification.
func New(cfg *config.Config, st store.Store, classifier classify.Classifier) (*Evaluator, error) {
	overrides, err := registry.LoadOverrides(cfg.Engine.RulesFile)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load rule overrides")
	}
	reg := registry.New(cfg.Engine.WeightTolerance, overrides)
	agg := decision.New(decision.Config{
		AutoSyncConfidence: cfg.Engine.AutoSyncConfidence,
		WeightTolerance:    reg.WeightTolerance(),
	})
	return &Evaluator{
		cfg:        cfg,
		store:      st,
		parser:     parser.New(),
		classifier: classifier,
		registry:   reg,
		aggregator: agg,
		engine:     rules.NewEngine(),
		machine:    lifecycle.NewMachine(st),
		now:        time.Now,
	}, nil
}

// WithNow fixes the clock for testing.
func (e *Evaluator) WithNow(now func() time.Time) *Evaluator {
	e.now = now
	e.aggregator = e.aggregator.WithNow(now)
	e.engine = e.engine.WithNow(now)
	e.machine = e.machine.WithNow(now)
	return e
}

// Ingest takes one raw extracted document text for a shipment and runs the
// intake flow: classify, parse (Bill of Lading only), persist, advance the
// lifecycle to VALIDATED, and auto-sync confidently parsed fields onto the
// shipment record. The returned document reflects its persisted state.
func (e *Evaluator) Ingest(ctx context.Context, orgID, reference, raw string) (*model.Document, error) {
	log := zap.L().With(
		zap.String("organization_id", orgID),
		zap.String("reference", reference),
	)

	shipment, err := e.store.GetShipmentByReference(ctx, orgID, reference)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load shipment")
	}

	cls := model.ClassificationResult{DocumentType: model.DocTypeUnknown}
	if e.classifier != nil {
		res, cerr := e.classifier.Classify(ctx, raw)
		if cerr != nil {
			log.Warn("pipeline: classification failed, document stays UNKNOWN",
				zap.Error(cerr))
		} else {
			cls = res
		}
	}

	doc := model.NewDocument(shipment.ID, orgID, cls.DocumentType)
	var parseConfidence float64
	switch cls.DocumentType {
	case model.DocTypeBillOfLading:
		doc.Canonical, parseConfidence = e.parser.Parse(raw)
		doc.Confidence = parseConfidence
	case model.DocTypeUnknown:
		// No payload until someone classifies it.
	default:
		// Supporting documents keep their raw text so cross-document rules
		// (CHED references, DDS geolocation) can inspect it.
		doc.Canonical = &model.CanonicalBoL{RawText: raw}
	}

	if err := e.store.CreateDocument(ctx, doc); err != nil {
		return nil, eris.Wrap(err, "pipeline: create document")
	}
	log.Info("pipeline: document ingested",
		zap.String("document_id", doc.ID),
		zap.String("document_type", string(doc.DocumentType)),
		zap.String("classification_method", cls.Method),
		zap.Float64("parse_confidence", parseConfidence),
	)

	// UNKNOWN documents wait in UPLOADED for manual classification; the
	// shipment decision holds until they are resolved.
	if doc.DocumentType != model.DocTypeUnknown {
		tr, terr := e.machine.Transition(ctx, doc, model.StatusValidated,
			lifecycle.SystemActor, "intake classification complete",
			transitionMetadata(cls, parseConfidence))
		if terr != nil {
			return nil, eris.Wrap(terr, "pipeline: validate document")
		}
		if !tr.Success {
			log.Warn("pipeline: validation transition refused",
				zap.String("document_id", doc.ID),
				zap.String("reason", tr.Reason))
		}
	}

	if doc.Canonical != nil {
		changes, applied := e.aggregator.ApplySync(shipment, doc.Canonical, doc.Confidence)
		if applied {
			if err := e.store.UpdateShipment(ctx, shipment); err != nil {
				return nil, eris.Wrap(err, "pipeline: sync shipment fields")
			}
			log.Info("pipeline: shipment fields auto-synced",
				zap.Int("fields", len(changes)))
		}
	}

	return doc, nil
}

func transitionMetadata(cls model.ClassificationResult, parseConfidence float64) map[string]string {
	md := map[string]string{
		"classification_method":     cls.Method,
		"classification_confidence": fmt.Sprintf("%.2f", cls.Confidence),
	}
	if cls.Provider != "" {
		md["classification_provider"] = cls.Provider
	}
	if parseConfidence > 0 {
		md["parse_confidence"] = fmt.Sprintf("%.2f", parseConfidence)
	}
	return md
}

// DocumentOutcome is one document's slice of an evaluation run.
type DocumentOutcome struct {
	DocumentID   string               `json:"document_id"`
	DocumentType model.DocumentType   `json:"document_type"`
	Status       model.DocumentStatus `json:"status"`
	Decision     model.Decision       `json:"decision"`
	Results      []model.RuleResult   `json:"results"`
}

// Result is the outcome of one shipment evaluation run.
type Result struct {
	ShipmentID string            `json:"shipment_id"`
	Reference  string            `json:"reference"`
	Decision   model.Decision    `json:"decision"`
	Documents  []DocumentOutcome `json:"documents"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// FailedResults filters a run down to its failing rule results.
func (r *Result) FailedResults() []model.RuleResult {
	var out []model.RuleResult
	for _, d := range r.Documents {
		for _, rr := range d.Results {
			if !rr.Passed {
				out = append(out, rr)
			}
		}
	}
	return out
}

// EvaluateShipment runs the product-type rule set against every document of
// the shipment, persists issues and audit results, advances each document's
// lifecycle, and rolls the documents up into the shipment decision.
func (e *Evaluator) EvaluateShipment(ctx context.Context, orgID, reference string) (*Result, error) {
	log := zap.L().With(
		zap.String("organization_id", orgID),
		zap.String("reference", reference),
	)

	shipment, err := e.store.GetShipmentByReference(ctx, orgID, reference)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load shipment")
	}
	listed, err := e.store.ListDocuments(ctx, orgID, store.DocumentFilter{ShipmentID: shipment.ID})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list documents")
	}
	products, err := e.store.ListProducts(ctx, orgID, shipment.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list products")
	}

	// Reload each document with its issues; override state feeds decisions.
	docs := make([]*model.Document, 0, len(listed))
	for _, d := range listed {
		full, gerr := e.store.GetDocument(ctx, orgID, d.ID)
		if gerr != nil {
			return nil, eris.Wrap(gerr, "pipeline: load document")
		}
		docs = append(docs, full)
	}

	shipCtx := &rules.ShipmentContext{
		Shipment:  shipment,
		Documents: docs,
		Products:  products,
	}
	ruleList := e.registry.RulesFor(shipment.ProductType)
	log.Info("pipeline: evaluating shipment",
		zap.String("product_type", string(shipment.ProductType)),
		zap.Int("documents", len(docs)),
		zap.Int("rules", len(ruleList)),
	)

	res := &Result{
		ShipmentID: shipment.ID,
		Reference:  shipment.Reference,
		CheckedAt:  e.now().UTC(),
	}
	var audit []model.ComplianceResult
	for _, doc := range docs {
		outcome, derr := e.evaluateDocument(ctx, doc, shipCtx, ruleList)
		if derr != nil {
			return nil, derr
		}
		res.Documents = append(res.Documents, outcome)
		for _, rr := range outcome.Results {
			audit = append(audit, auditResult(rr, shipment))
		}
	}
	if err := e.store.SaveComplianceResults(ctx, audit); err != nil {
		return nil, eris.Wrap(err, "pipeline: save compliance results")
	}

	res.Decision = e.aggregator.ShipmentDecision(shipment, docs)
	log.Info("pipeline: shipment evaluated",
		zap.String("decision", string(res.Decision)),
		zap.Int("results", len(audit)),
	)
	return res, nil
}

// evaluateDocument runs the rule list against one document, persists its
// issues and lifecycle transition, and updates its cached decision.
func (e *Evaluator) evaluateDocument(ctx context.Context, doc *model.Document, shipCtx *rules.ShipmentContext, ruleList []rules.Rule) (DocumentOutcome, error) {
	// A settled document returns to VALIDATED before re-evaluation so the
	// outcome transition below is always taken from the same state. A prior
	// COMPLIANCE_OK does not survive a re-run: shipment facts may have
	// changed since it was recorded.
	if doc.Status == model.StatusComplianceFailed || doc.Status == model.StatusComplianceOK {
		if _, err := e.machine.Transition(ctx, doc, model.StatusValidated,
			lifecycle.SystemActor, "re-evaluation", nil); err != nil {
			return DocumentOutcome{}, eris.Wrap(err, "pipeline: re-validate document")
		}
	}

	// Doc-scoped rules see the parsed payload only for the Bill of Lading;
	// for supporting documents they skip, and the document is judged by the
	// shipment-context rules alone.
	ecDoc := doc.Canonical
	if doc.DocumentType != model.DocTypeBillOfLading {
		ecDoc = nil
	}
	ec := &rules.EvalContext{
		Doc:          ecDoc,
		DocumentID:   doc.ID,
		DocumentType: doc.DocumentType,
		Shipment:     shipCtx,
	}
	results := e.engine.Evaluate(ec, ruleList)

	// Failures for rules already overridden keep their overridden row and
	// are not re-opened.
	overridden := overriddenRuleIDs(doc.Issues)
	var issues []model.DocumentIssue
	for _, rr := range results {
		if !rr.Passed && !overridden[rr.RuleID] {
			issues = append(issues, model.IssueFromResult(rr, doc.ID))
		}
	}
	if err := e.store.SaveIssues(ctx, doc.ID, issues); err != nil {
		return DocumentOutcome{}, eris.Wrap(err, "pipeline: save issues")
	}
	// Refresh issue state: SaveIssues keeps previously overridden rows.
	refreshed, err := e.store.GetDocument(ctx, doc.OrganizationID, doc.ID)
	if err != nil {
		return DocumentOutcome{}, eris.Wrap(err, "pipeline: reload document")
	}
	*doc = *refreshed

	target := model.StatusComplianceOK
	if unresolvedErrors(doc, results) {
		target = model.StatusComplianceFailed
	}
	if doc.Status == model.StatusValidated {
		tr, terr := e.machine.Transition(ctx, doc, target,
			lifecycle.SystemActor, "compliance evaluation", nil)
		if terr != nil {
			return DocumentOutcome{}, eris.Wrap(terr, "pipeline: record outcome")
		}
		if !tr.Success {
			zap.L().Warn("pipeline: outcome transition refused",
				zap.String("document_id", doc.ID),
				zap.String("reason", tr.Reason))
		}
	}

	now := e.now().UTC()
	doc.ComplianceStatus = e.aggregator.DocumentDecision(doc, results)
	doc.ComplianceCheckedAt = &now
	if err := e.store.UpdateDocument(ctx, doc); err != nil {
		return DocumentOutcome{}, eris.Wrap(err, "pipeline: update document")
	}

	return DocumentOutcome{
		DocumentID:   doc.ID,
		DocumentType: doc.DocumentType,
		Status:       doc.Status,
		Decision:     doc.ComplianceStatus,
		Results:      results,
	}, nil
}

func overriddenRuleIDs(issues []model.DocumentIssue) map[string]bool {
	m := make(map[string]bool)
	for _, is := range issues {
		if is.IsOverridden {
			m[is.RuleID] = true
		}
	}
	return m
}

// unresolvedErrors reports whether any ERROR-severity failure in this run
// lacks an override on the document.
func unresolvedErrors(doc *model.Document, results []model.RuleResult) bool {
	overridden := overriddenRuleIDs(doc.Issues)
	for _, rr := range results {
		if !rr.Passed && rr.Severity == model.SeverityError && !overridden[rr.RuleID] {
			return true
		}
	}
	return false
}

func auditResult(rr model.RuleResult, shipment *model.Shipment) model.ComplianceResult {
	return model.ComplianceResult{
		OrganizationID: shipment.OrganizationID,
		ShipmentID:     shipment.ID,
		DocumentID:     rr.DocumentID,
		RuleID:         rr.RuleID,
		RuleName:       rr.RuleName,
		Passed:         rr.Passed,
		Severity:       rr.Severity,
		Message:        rr.Message,
		FieldPath:      rr.FieldPath,
		CheckedAt:      rr.CheckedAt,
	}
}

// BatchItem is the per-shipment outcome of a batch run. Err carries the
// rendered failure for shipments whose evaluation did not complete.
type BatchItem struct {
	Reference string         `json:"reference"`
	Decision  model.Decision `json:"decision,omitempty"`
	Err       string         `json:"error,omitempty"`
}

// EvaluateBatch evaluates many shipments concurrently, bounded by the
// configured concurrency. Per-shipment failures are reported in the items,
// never aborting the batch; the order of refs is preserved.
func (e *Evaluator) EvaluateBatch(ctx context.Context, orgID string, refs []string) []BatchItem {
	limit := e.cfg.Batch.MaxConcurrentShipments
	if limit < 1 {
		limit = 1
	}
	items := make([]BatchItem, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			items[i] = BatchItem{Reference: ref}
			res, err := e.EvaluateShipment(gctx, orgID, ref)
			if err != nil {
				zap.L().Error("pipeline: batch shipment failed",
					zap.String("reference", ref), zap.Error(err))
				items[i].Err = err.Error()
				return nil
			}
			items[i].Decision = res.Decision
			return nil
		})
	}
	_ = g.Wait()
	return items
}
