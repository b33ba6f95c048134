package advisor

import (
	"math"
	"strconv"
)

// coordBucket rounds a coordinate to one decimal place and returns it scaled
// by ten, so nearby points (about 11 km) share a bucket. Halves round toward
// positive infinity: 0.05 -> 1, -0.05 -> 0.
func coordBucket(coord float64) int64 {
	return int64(math.Floor(coord*10 + 0.5))
}

// CacheKey returns the location cache key for a coordinate pair.
func CacheKey(namespace string, lat, lng float64) string {
	return namespace + "_" +
		strconv.FormatInt(coordBucket(lat), 10) + "_" +
		strconv.FormatInt(coordBucket(lng), 10)
}
