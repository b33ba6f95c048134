// Package gemini provides structured generation against the native Google
// Gemini generateContent API.
package gemini

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"agrohub/internal/core"
	"agrohub/internal/pkg/llmclient"
)

const (
	providerName = "gemini"
	// DefaultBaseURL is the native Gemini REST endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when a request does not name one
	DefaultModel = "gemini-3-flash-preview"

	apiKeyHeader = "x-goog-api-key"
)

// Provider implements core.Generator for Google Gemini
type Provider struct {
	client *llmclient.Client
	apiKey string
}

// Options configures a Provider.
type Options struct {
	// BaseURL overrides DefaultBaseURL
	BaseURL string
	// HTTPClient is used for all requests; nil selects httpclient defaults
	HTTPClient *http.Client
	// Config carries hooks and is otherwise filled in by New
	Config llmclient.Config
}

// New creates a new Gemini provider. An empty apiKey is accepted; the
// upstream then rejects every call and resolvers fall back.
func New(apiKey string, opts Options) *Provider {
	p := &Provider{apiKey: apiKey}

	cfg := opts.Config
	cfg.ProviderName = providerName
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	p.client = llmclient.New(opts.HTTPClient, cfg, p.setHeaders)
	return p
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return providerName
}

// setHeaders sets the required headers for Gemini API requests
func (p *Provider) setHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set(apiKeyHeader, p.apiKey)
	}
}

// Generate runs one generateContent call and returns the concatenated text parts.
func (p *Provider) Generate(ctx context.Context, req *core.GenerateRequest) (*core.GenerateResponse, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("generate request is required", nil)
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/models/" + url.PathEscape(model) + ":generateContent",
		Body:     buildRequestBody(req),
		Model:    model,
	})
	if err != nil {
		return nil, err
	}

	return parseResponse(resp.Body)
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string      `json:"responseMimeType,omitempty"`
	ResponseSchema   *schemaNode `json:"responseSchema,omitempty"`
}

type schemaNode struct {
	Type             string                `json:"type"`
	Properties       map[string]schemaNode `json:"properties,omitempty"`
	Items            *schemaNode           `json:"items,omitempty"`
	Required         []string              `json:"required,omitempty"`
	PropertyOrdering []string              `json:"propertyOrdering,omitempty"`
}

func buildRequestBody(req *core.GenerateRequest) generateContentRequest {
	body := generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: req.Prompt}},
		}},
	}
	if req.Schema != nil {
		body.GenerationConfig = &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   convertSchema(req.Schema),
		}
	}
	return body
}

// convertSchema maps a core.Schema onto Gemini's OpenAPI subset.
func convertSchema(s *core.Schema) *schemaNode {
	node := &schemaNode{
		Type:       "OBJECT",
		Properties: make(map[string]schemaNode, len(s.Fields)),
		Required:   s.Required,
	}
	for _, f := range s.Fields {
		node.Properties[f.Name] = fieldNode(f.Type)
		node.PropertyOrdering = append(node.PropertyOrdering, f.Name)
	}
	return node
}

func fieldNode(t core.FieldType) schemaNode {
	switch t {
	case core.FieldStringArray:
		return schemaNode{Type: "ARRAY", Items: &schemaNode{Type: "STRING"}}
	case core.FieldNumber:
		return schemaNode{Type: "NUMBER"}
	case core.FieldBoolean:
		return schemaNode{Type: "BOOLEAN"}
	default:
		return schemaNode{Type: "STRING"}
	}
}

// parseResponse extracts the first candidate's text. A response without text
// (blocked prompt, empty candidate) yields an empty Text, not an error.
func parseResponse(body []byte) (*core.GenerateResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.NewUpstreamError(providerName, "invalid JSON in generateContent response", nil)
	}
	parsed := gjson.ParseBytes(body)

	var sb strings.Builder
	for _, t := range parsed.Get("candidates.0.content.parts.#.text").Array() {
		sb.WriteString(t.String())
	}

	resp := &core.GenerateResponse{
		Text:         sb.String(),
		FinishReason: parsed.Get("candidates.0.finishReason").String(),
	}
	if usage := parsed.Get("usageMetadata"); usage.Exists() {
		resp.Usage = &core.Usage{
			PromptTokens:     int(usage.Get("promptTokenCount").Int()),
			CompletionTokens: int(usage.Get("candidatesTokenCount").Int()),
			TotalTokens:      int(usage.Get("totalTokenCount").Int()),
		}
	}
	if resp.FinishReason == "" {
		resp.FinishReason = parsed.Get("promptFeedback.blockReason").String()
	}
	return resp, nil
}
