package engine

import (
	"github.com/rs/zerolog"
)

// CostAccountant totals the token cost of a run from recorded results and a
// configured PricingConfig (C9). Costs are only computed when
// EngineConfig.Pricing is set; an unpriced model or a result missing token
// metadata contributes zero, never treated as fatal. Only the unpriced-model
// case is logged.
type CostAccountant struct {
	pricing *PricingConfig
	log     zerolog.Logger
}

// NewCostAccountant builds a CostAccountant. pricing may be nil, in which
// case Compute always returns nil.
func NewCostAccountant(pricing *PricingConfig, log zerolog.Logger) *CostAccountant {
	return &CostAccountant{pricing: pricing, log: log}
}

// Compute walks every recorded result in state and returns the aggregated
// Costs, or nil if no pricing is configured.
func (c *CostAccountant) Compute(state *ProcessState) *Costs {
	if c.pricing == nil {
		return nil
	}

	out := &Costs{
		Currency:    "USD",
		ByDimension: map[string]DimensionCost{},
		ByProvider:  map[string]DimensionCost{},
	}

	for dim, r := range state.GlobalResultsSnapshot() {
		c.accumulate(out, dim, r)
	}
	for i := 0; i < state.sectionCount(); i++ {
		for dim, r := range state.SectionResultsForIndex(i) {
			c.accumulate(out, dim, r)
		}
	}

	return out
}

func (c *CostAccountant) accumulate(out *Costs, dim string, r Result) {
	if r.IsError() || r.IsSkipped() || r.Metadata == nil || r.Metadata.Tokens == nil {
		return
	}
	model := r.Metadata.Model
	price, ok := c.pricing.Models[model]
	if !ok {
		c.log.Warn().Str("dimension", dim).Str("model", model).Msg("no pricing configured for model, contributing zero cost")
		return
	}

	tokens := r.Metadata.Tokens
	cost := (float64(tokens.InputTokens)*price.InputPer1M + float64(tokens.OutputTokens)*price.OutputPer1M) / 1_000_000

	out.TotalCost += cost
	out.TotalTokens += tokens.TotalTokens

	dc := out.ByDimension[dim]
	dc.Cost += cost
	dc.Tokens += tokens.TotalTokens
	dc.Model = model
	dc.Provider = r.Metadata.Provider
	out.ByDimension[dim] = dc

	if r.Metadata.Provider != "" {
		pc := out.ByProvider[r.Metadata.Provider]
		pc.Cost += cost
		pc.Tokens += tokens.TotalTokens
		pc.Models = appendUniqueModel(pc.Models, model)
		out.ByProvider[r.Metadata.Provider] = pc
	}
}

// appendUniqueModel appends model to models if not already present.
func appendUniqueModel(models []string, model string) []string {
	for _, m := range models {
		if m == model {
			return models
		}
	}
	return append(models, model)
}
