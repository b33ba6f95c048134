// Package server provides the HTTP surface for the advisory resolvers.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"agrohub/internal/advisor"
	"agrohub/internal/core"
	"agrohub/internal/quota"
)

// Response headers describing where a resolved value came from.
const (
	HeaderAdviceSource         = "X-Advice-Source"
	HeaderAdviceFallbackReason = "X-Advice-Fallback-Reason"
)

// Resolver is the subset of advisor.Service the handlers need.
type Resolver interface {
	ResolveLocationResult(ctx context.Context, lat, lng float64) advisor.Result[core.LocationInfo]
	PriceSuggestionResult(ctx context.Context, cropName, region, currency string) advisor.Result[core.PriceSuggestion]
	WeatherAdviceResult(ctx context.Context, location string) advisor.Result[core.WeatherAdvice]
}

// QuotaReporter exposes the breaker state.
type QuotaReporter interface {
	State() quota.State
}

// Handler holds the HTTP handlers
type Handler struct {
	resolver Resolver
	quota    QuotaReporter
}

// NewHandler creates a new handler. guard may be nil.
func NewHandler(resolver Resolver, guard QuotaReporter) *Handler {
	return &Handler{
		resolver: resolver,
		quota:    guard,
	}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Location handles GET /v1/location?lat=&lng=
func (h *Handler) Location(c echo.Context) error {
	lat, err := parseCoordinate(c.QueryParam("lat"), "lat", 90)
	if err != nil {
		return handleError(c, err)
	}
	lng, err := parseCoordinate(c.QueryParam("lng"), "lng", 180)
	if err != nil {
		return handleError(c, err)
	}

	return writeResult(c, h.resolver.ResolveLocationResult(c.Request().Context(), lat, lng))
}

// PriceSuggestion handles GET /v1/price-suggestion?crop=&region=&currency=
// A missing currency defaults to the fallback location's currency.
func (h *Handler) PriceSuggestion(c echo.Context) error {
	crop := strings.TrimSpace(c.QueryParam("crop"))
	if crop == "" {
		return handleError(c, core.NewInvalidRequestError("crop is required", nil))
	}
	region := strings.TrimSpace(c.QueryParam("region"))
	currency := strings.ToUpper(strings.TrimSpace(c.QueryParam("currency")))
	if currency == "" {
		currency = advisor.FallbackLocation().CurrencyCode
	}

	return writeResult(c, h.resolver.PriceSuggestionResult(c.Request().Context(), crop, region, currency))
}

// WeatherAdvice handles GET /v1/weather-advice?location=
func (h *Handler) WeatherAdvice(c echo.Context) error {
	location := strings.TrimSpace(c.QueryParam("location"))
	if location == "" {
		return handleError(c, core.NewInvalidRequestError("location is required", nil))
	}

	return writeResult(c, h.resolver.WeatherAdviceResult(c.Request().Context(), location))
}

type quotaResponse struct {
	Exhausted bool       `json:"exhausted"`
	ResetAt   *time.Time `json:"reset_at"`
	Trips     int64      `json:"trips"`
}

// Quota handles GET /v1/quota
func (h *Handler) Quota(c echo.Context) error {
	var state quota.State
	if h.quota != nil {
		state = h.quota.State()
	}
	resp := quotaResponse{Exhausted: state.Exhausted, Trips: state.Trips}
	if state.Exhausted {
		resetAt := state.ResetAt.UTC()
		resp.ResetAt = &resetAt
	}
	return c.JSON(http.StatusOK, resp)
}

func writeResult[T any](c echo.Context, res advisor.Result[T]) error {
	c.Response().Header().Set(HeaderAdviceSource, string(res.Source))
	if res.Reason != advisor.ReasonNone {
		c.Response().Header().Set(HeaderAdviceFallbackReason, string(res.Reason))
	}
	return c.JSON(http.StatusOK, res.Value)
}

func parseCoordinate(raw, name string, limit float64) (float64, error) {
	if raw == "" {
		return 0, core.NewInvalidRequestError(name+" is required", nil)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, core.NewInvalidRequestError(fmt.Sprintf("%s must be a number", name), err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -limit || v > limit {
		return 0, core.NewInvalidRequestError(fmt.Sprintf("%s must be within [-%g, %g]", name, limit, limit), nil)
	}
	return v, nil
}

// handleError converts service errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var svcErr *core.ServiceError
	if errors.As(err, &svcErr) {
		return c.JSON(svcErr.HTTPStatusCode(), svcErr.ToJSON())
	}

	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
