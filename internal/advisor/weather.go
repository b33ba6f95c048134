package advisor

import (
	"context"
	"encoding/json"
	"fmt"

	"agrohub/internal/core"
)

const resolverWeather = "weather"

// WeatherAdvice returns an agricultural outlook for a location.
// It never fails; see WeatherAdviceResult for provenance.
func (s *Service) WeatherAdvice(ctx context.Context, location string) core.WeatherAdvice {
	return s.WeatherAdviceResult(ctx, location).Value
}

// WeatherAdviceResult asks the upstream model for an outlook, ordered advice
// and a risk level. Answers are not cached.
func (s *Service) WeatherAdviceResult(ctx context.Context, location string) Result[core.WeatherAdvice] {
	prompt := weatherPrompt(location)

	raw, err := s.generate(ctx, resolverWeather, prompt, weatherSchema)
	if err != nil {
		return fallback(ctx, s, resolverWeather, prompt, FallbackWeatherAdvice(), err)
	}

	var advice core.WeatherAdvice
	if err := json.Unmarshal(raw, &advice); err != nil {
		return fallback(ctx, s, resolverWeather, prompt, FallbackWeatherAdvice(), fmt.Errorf("%w: %v", errInvalidResponse, err))
	}
	return success(ctx, s, resolverWeather, SourceUpstream, advice)
}
