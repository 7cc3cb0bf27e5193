package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostAccountant_NilPricingReturnsNil(t *testing.T) {
	acc := NewCostAccountant(nil, zerolog.Nop())
	state := NewProcessState("p1", []Section{{Content: "x"}}, map[string]any{}, 0)
	assert.Nil(t, acc.Compute(state))
}

func TestCostAccountant_ComputesPerModelCost(t *testing.T) {
	pricing := &PricingConfig{Models: map[string]ModelPricing{
		"gpt-4o-mini": {InputPer1M: 1.0, OutputPer1M: 2.0},
	}}
	acc := NewCostAccountant(pricing, zerolog.Nop())

	state := NewProcessState("p1", []Section{{Content: "a"}, {Content: "b"}}, map[string]any{}, 1)
	state.SetSectionResult(0, "summary", Result{
		Data: "ok",
		Metadata: &ResultMetadata{
			Model: "gpt-4o-mini", Provider: "openai",
			Tokens: &TokenUsage{InputTokens: 1000, OutputTokens: 500, TotalTokens: 1500},
		},
	})
	state.SetSectionResult(1, "summary", Result{
		Data: "ok",
		Metadata: &ResultMetadata{
			Model: "gpt-4o-mini", Provider: "openai",
			Tokens: &TokenUsage{InputTokens: 2000, OutputTokens: 1000, TotalTokens: 3000},
		},
	})
	state.SetGlobalResult("report", Result{
		Data: "ok",
		Metadata: &ResultMetadata{
			Model: "gpt-4o-mini", Provider: "openai",
			Tokens: &TokenUsage{InputTokens: 500, OutputTokens: 500, TotalTokens: 1000},
		},
	})

	costs := acc.Compute(state)
	require.NotNil(t, costs)

	expectedSummaryCost := (1000.0*1.0+500.0*2.0)/1_000_000 + (2000.0*1.0+1000.0*2.0)/1_000_000
	expectedReportCost := (500.0*1.0 + 500.0*2.0) / 1_000_000

	assert.InDelta(t, expectedSummaryCost+expectedReportCost, costs.TotalCost, 1e-9)
	assert.Equal(t, 1500+3000+1000, costs.TotalTokens)
	assert.InDelta(t, expectedSummaryCost, costs.ByDimension["summary"].Cost, 1e-9)
	assert.Equal(t, 4500, costs.ByDimension["summary"].Tokens)
	assert.Equal(t, "gpt-4o-mini", costs.ByDimension["summary"].Model)
	assert.Equal(t, "openai", costs.ByDimension["summary"].Provider)
	assert.InDelta(t, expectedReportCost, costs.ByDimension["report"].Cost, 1e-9)
	assert.InDelta(t, expectedSummaryCost+expectedReportCost, costs.ByProvider["openai"].Cost, 1e-9)
	assert.Equal(t, []string{"gpt-4o-mini"}, costs.ByProvider["openai"].Models)
}

func TestCostAccountant_UnknownModelContributesZero(t *testing.T) {
	pricing := &PricingConfig{Models: map[string]ModelPricing{"known": {InputPer1M: 1, OutputPer1M: 1}}}
	acc := NewCostAccountant(pricing, zerolog.Nop())

	state := NewProcessState("p1", []Section{{Content: "a"}}, map[string]any{}, 1)
	state.SetSectionResult(0, "dim", Result{
		Data:     "ok",
		Metadata: &ResultMetadata{Model: "unknown-model", Tokens: &TokenUsage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20}},
	})

	costs := acc.Compute(state)
	require.NotNil(t, costs)
	assert.Equal(t, 0.0, costs.TotalCost)
	assert.Equal(t, 0, costs.TotalTokens)
	_, ok := costs.ByDimension["dim"]
	assert.False(t, ok)
}

func TestCostAccountant_MissingTokenMetadataContributesZero(t *testing.T) {
	pricing := &PricingConfig{Models: map[string]ModelPricing{"m": {InputPer1M: 1, OutputPer1M: 1}}}
	acc := NewCostAccountant(pricing, zerolog.Nop())

	state := NewProcessState("p1", []Section{{Content: "a"}}, map[string]any{}, 1)
	state.SetSectionResult(0, "dim", Result{Data: "ok", Metadata: &ResultMetadata{Model: "m"}})

	costs := acc.Compute(state)
	require.NotNil(t, costs)
	assert.Equal(t, 0.0, costs.TotalCost)
}

func TestCostAccountant_ErrorAndSkippedResultsContributeNothing(t *testing.T) {
	pricing := &PricingConfig{Models: map[string]ModelPricing{"m": {InputPer1M: 1, OutputPer1M: 1}}}
	acc := NewCostAccountant(pricing, zerolog.Nop())

	state := NewProcessState("p1", []Section{{Content: "a"}}, map[string]any{}, 2)
	state.SetSectionResult(0, "failed", Result{Error: "boom", Metadata: &ResultMetadata{Model: "m", Tokens: &TokenUsage{TotalTokens: 999}}})
	state.SetSectionResult(0, "skipped", SkipResult("not needed"))

	costs := acc.Compute(state)
	require.NotNil(t, costs)
	assert.Equal(t, 0.0, costs.TotalCost)
	assert.Equal(t, 0, costs.TotalTokens)
}

func TestCostAccountant_TotalsAreMonotonicWithByDimensionAndByProvider(t *testing.T) {
	pricing := &PricingConfig{Models: map[string]ModelPricing{
		"m1": {InputPer1M: 3, OutputPer1M: 6},
		"m2": {InputPer1M: 1, OutputPer1M: 1},
		"m3": {InputPer1M: 2, OutputPer1M: 2},
	}}
	acc := NewCostAccountant(pricing, zerolog.Nop())

	state := NewProcessState("p1", []Section{{Content: "a"}, {Content: "b"}}, map[string]any{}, 2)
	state.SetSectionResult(0, "dimA", Result{Data: "ok", Metadata: &ResultMetadata{Model: "m1", Provider: "p1", Tokens: &TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}}})
	state.SetSectionResult(1, "dimA", Result{Data: "ok", Metadata: &ResultMetadata{Model: "m1", Provider: "p1", Tokens: &TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}}})
	state.SetSectionResult(0, "dimB", Result{Data: "ok", Metadata: &ResultMetadata{Model: "m2", Provider: "p2", Tokens: &TokenUsage{InputTokens: 200, OutputTokens: 200, TotalTokens: 400}}})
	state.SetGlobalResult("dimC", Result{Data: "ok", Metadata: &ResultMetadata{Model: "m3", Provider: "p2", Tokens: &TokenUsage{InputTokens: 50, OutputTokens: 50, TotalTokens: 100}}})

	costs := acc.Compute(state)
	require.NotNil(t, costs)

	var sumByDim, sumByProv float64
	var tokensByDim int
	for _, dc := range costs.ByDimension {
		sumByDim += dc.Cost
		tokensByDim += dc.Tokens
	}
	for _, pc := range costs.ByProvider {
		sumByProv += pc.Cost
	}

	assert.InDelta(t, costs.TotalCost, sumByDim, 1e-9)
	assert.InDelta(t, costs.TotalCost, sumByProv, 1e-9)
	assert.Equal(t, costs.TotalTokens, tokensByDim)
	assert.ElementsMatch(t, []string{"m2", "m3"}, costs.ByProvider["p2"].Models)
}
