// Package domain models forward geocoding lookups and the cache-aside layer
// that sits in front of a remote geocoding provider.
//
// # Outcomes
//
// Every lookup produces exactly one [Outcome]: either [Coordinates] (the
// provider resolved the location) or [ErrorResult] (the provider reported a
// failure such as ZERO_RESULTS or OVER_QUERY_LIMIT). Callers discriminate
// with a type switch:
//
//	switch o := outcome.(type) {
//	case domain.Coordinates:
//	    use(o.Lat, o.Lon)
//	case domain.ErrorResult:
//	    report(o.Status)
//	}
//
// Provider failures are values, not errors. The error return of
// [Geocoder.Geocode] is reserved for conditions that prevent a lookup from
// being attempted at all: missing credentials, a malformed request, or a
// cancelled context.
//
// # Provenance
//
// Coordinates carry two provenance flags that are fixed when the value is
// built and cannot be changed afterwards:
//
//	FromCache  the value was served from the cache; no provider call was made
//	Cached     the value came from the provider and was persisted during this call
//
// At most one of the two is ever true.
//
// # Cache keys
//
// The location string is the cache key, byte for byte. "New York, NY" and
// "new york, ny " are different entries. Normalising keys would change which
// provider query a cached value answers, so it is left to callers.
//
// # Concurrency
//
// [CachingGeocoder] takes no locks of its own. Two concurrent misses for the
// same location both call the provider and both write the cache (last write
// wins). [WithSingleFlight] opts in to per-location coalescing of in-flight
// misses. A coalesced fetch outlives the caller that started it, so one
// caller cancelling does not fail the others waiting on the same location.
package domain
