package core

// LocationInfo is the country and currency context resolved for a coordinate.
type LocationInfo struct {
	Country        string `json:"country"`
	CurrencyCode   string `json:"currencyCode"`
	CurrencySymbol string `json:"currencySymbol"`
	RegionName     string `json:"regionName"`
}

// PriceSuggestion is a fair-market price estimate for a crop.
type PriceSuggestion struct {
	SuggestedPrice string `json:"suggestedPrice"`
	Reasoning      string `json:"reasoning"`
	Trends         string `json:"trends"`
}

// WeatherAdvice is an agricultural weather outlook.
type WeatherAdvice struct {
	Outlook   string   `json:"outlook"`
	Advice    []string `json:"advice"`
	RiskLevel string   `json:"riskLevel"`
}

// FieldType is a primitive type allowed in a response schema.
type FieldType string

const (
	FieldString      FieldType = "STRING"
	FieldNumber      FieldType = "NUMBER"
	FieldBoolean     FieldType = "BOOLEAN"
	FieldStringArray FieldType = "STRING_ARRAY"
)

// SchemaField declares one property of a structured response.
type SchemaField struct {
	Name string
	Type FieldType
}

// Schema declares the object an upstream model must emit.
// Field order is preserved when the schema is sent upstream.
type Schema struct {
	Fields   []SchemaField
	Required []string
}

// GenerateRequest is a provider-agnostic structured generation request.
type GenerateRequest struct {
	Model  string
	Prompt string
	Schema *Schema
}

// GenerateResponse carries the raw text returned by the model.
// An empty Text is treated by callers as a failed call.
type GenerateResponse struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// Usage contains token usage statistics reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
