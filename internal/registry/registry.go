package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/tradeware/exportguard/internal/model"
	"github.com/tradeware/exportguard/internal/rules"
)

// Overrides adjusts rule parameters without a rebuild. Loaded from an
// optional YAML file; zero value means defaults.
type Overrides struct {
	// WeightTolerance replaces the configured cross-check tolerance when > 0.
	WeightTolerance float64 `yaml:"weight_tolerance"`
	// DisabledRules lists rule IDs to leave out entirely.
	DisabledRules []string `yaml:"disabled_rules"`
}

// LoadOverrides reads an overrides file. A missing path is not an error.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return &Overrides{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Overrides{}, nil
		}
		return nil, eris.Wrap(err, "registry: read overrides file")
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, eris.Wrap(err, "registry: parse overrides file")
	}
	return &o, nil
}

// Registry selects the ordered rule list for a product type. The standard
// hygiene set always comes first, then the product-specific set, then the
// cross-document set. Animal by-products never receive EUDR rules.
type Registry struct {
	weightTolerance float64
	disabled        map[string]bool
}

// New creates a Registry. weightTolerance is the CROSS-001 relative
// tolerance (e.g. 0.10).
func New(weightTolerance float64, overrides *Overrides) *Registry {
	r := &Registry{
		weightTolerance: weightTolerance,
		disabled:        make(map[string]bool),
	}
	if overrides != nil {
		if overrides.WeightTolerance > 0 {
			r.weightTolerance = overrides.WeightTolerance
		}
		for _, id := range overrides.DisabledRules {
			r.disabled[id] = true
		}
	}
	return r
}

// RulesFor returns the ordered rule list for a product type.
func (r *Registry) RulesFor(pt model.ProductType) []rules.Rule {
	out := append([]rules.Rule{}, rules.StandardRules()...)

	switch {
	case IsAnimalByProduct(pt):
		out = append(out, rules.AnimalProductRules()...)
	case IsEUDRProduct(pt):
		out = append(out, rules.EUDRRules()...)
	}

	out = append(out, rules.CrossRules(r.weightTolerance)...)

	if len(r.disabled) == 0 {
		return out
	}
	kept := out[:0]
	for _, rule := range out {
		if !r.disabled[rule.ID] {
			kept = append(kept, rule)
		}
	}
	return kept
}

// WeightTolerance returns the effective cross-check tolerance.
func (r *Registry) WeightTolerance() float64 {
	return r.weightTolerance
}
