package advisor

import (
	"fmt"
	"strconv"
)

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func locationPrompt(lat, lng float64) string {
	return fmt.Sprintf(
		"The user is at latitude %s, longitude %s. Determine the country, ISO 4217 currency code, symbol, and region name. Return strictly JSON.",
		formatCoord(lat), formatCoord(lng),
	)
}

func pricePrompt(cropName, region, currency string) string {
	return fmt.Sprintf(
		"Fair market price for %s in %s (%s). Return JSON with suggestedPrice, reasoning, trends.",
		cropName, region, currency,
	)
}

func weatherPrompt(location string) string {
	return fmt.Sprintf(
		"Agricultural weather outlook/advice for %s. Return JSON with outlook, advice (array), riskLevel.",
		location,
	)
}
