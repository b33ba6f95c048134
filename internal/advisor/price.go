package advisor

import (
	"context"
	"encoding/json"
	"fmt"

	"agrohub/internal/core"
)

const resolverPrice = "price"

// PriceSuggestion returns a fair-market price estimate for a crop.
// It never fails; see PriceSuggestionResult for provenance.
func (s *Service) PriceSuggestion(ctx context.Context, cropName, region, currency string) core.PriceSuggestion {
	return s.PriceSuggestionResult(ctx, cropName, region, currency).Value
}

// PriceSuggestionResult asks the upstream model for a price estimate.
// Answers are not cached.
func (s *Service) PriceSuggestionResult(ctx context.Context, cropName, region, currency string) Result[core.PriceSuggestion] {
	prompt := pricePrompt(cropName, region, currency)

	raw, err := s.generate(ctx, resolverPrice, prompt, priceSchema)
	if err != nil {
		return fallback(ctx, s, resolverPrice, prompt, FallbackPriceSuggestion(currency), err)
	}

	var suggestion core.PriceSuggestion
	if err := json.Unmarshal(raw, &suggestion); err != nil {
		return fallback(ctx, s, resolverPrice, prompt, FallbackPriceSuggestion(currency), fmt.Errorf("%w: %v", errInvalidResponse, err))
	}
	return success(ctx, s, resolverPrice, SourceUpstream, suggestion)
}
