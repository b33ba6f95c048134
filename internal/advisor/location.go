package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"agrohub/internal/core"
)

const resolverLocation = "location"

// ResolveLocation returns the country and currency for a coordinate.
// It never fails; see ResolveLocationResult for provenance.
func (s *Service) ResolveLocation(ctx context.Context, lat, lng float64) core.LocationInfo {
	return s.ResolveLocationResult(ctx, lat, lng).Value
}

// ResolveLocationResult resolves a coordinate through the location cache and
// then the upstream model. Only validated upstream answers are cached.
func (s *Service) ResolveLocationResult(ctx context.Context, lat, lng float64) Result[core.LocationInfo] {
	prompt := locationPrompt(lat, lng)
	if !validCoordinate(lat, 90) || !validCoordinate(lng, 180) {
		err := core.NewInvalidRequestError("lat must be within [-90, 90] and lng within [-180, 180]", nil)
		return fallback(ctx, s, resolverLocation, prompt, FallbackLocation(), err)
	}

	key := CacheKey(s.namespace, lat, lng)
	if loc, ok := s.cachedLocation(ctx, key); ok {
		return success(ctx, s, resolverLocation, SourceCache, loc)
	}

	raw, err := s.generate(ctx, resolverLocation, prompt, locationSchema)
	if err != nil {
		return fallback(ctx, s, resolverLocation, prompt, FallbackLocation(), err)
	}

	var loc core.LocationInfo
	if err := json.Unmarshal(raw, &loc); err != nil {
		return fallback(ctx, s, resolverLocation, prompt, FallbackLocation(), fmt.Errorf("%w: %v", errInvalidResponse, err))
	}

	s.storeLocation(ctx, key, loc)
	return success(ctx, s, resolverLocation, SourceUpstream, loc)
}

// cachedLocation returns a cached entry. Entries that do not decode into a
// complete LocationInfo are evicted and reported as a miss.
func (s *Service) cachedLocation(ctx context.Context, key string) (core.LocationInfo, bool) {
	if s.cache == nil {
		return core.LocationInfo{}, false
	}

	value, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.hooks.SafeCacheLookup(ctx, "error")
		s.logger.WarnContext(ctx, "location cache read failed", "key", key, "error", err)
		return core.LocationInfo{}, false
	}
	if !ok {
		s.hooks.SafeCacheLookup(ctx, "miss")
		return core.LocationInfo{}, false
	}

	loc, err := decodeLocation([]byte(value))
	if err == nil {
		s.hooks.SafeCacheLookup(ctx, "hit")
		return loc, true
	}

	s.hooks.SafeCacheLookup(ctx, "corrupt")
	s.logger.WarnContext(ctx, "evicting corrupt location cache entry",
		"key", key,
		"error", core.NewCacheCorruptError(key, err),
	)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to evict location cache entry", "key", key, "error", err)
	}
	return core.LocationInfo{}, false
}

// storeLocation writes through to the cache. Write failures are logged only.
func (s *Service) storeLocation(ctx context.Context, key string, loc core.LocationInfo) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(loc)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode location for cache", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, string(data)); err != nil {
		s.logger.WarnContext(ctx, "location cache write failed", "key", key, "error", err)
	}
}

func decodeLocation(raw []byte) (core.LocationInfo, error) {
	var loc core.LocationInfo
	if err := validate(raw, locationSchema); err != nil {
		return loc, err
	}
	err := json.Unmarshal(raw, &loc)
	return loc, err
}

// validCoordinate rejects NaN, infinities and values beyond limit.
func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}
