// Package ratelimit throttles outbound requests.
//
// A Limiter combines three limits that a scheduled function must pass
// before it starts:
//   - a concurrency cap on functions in flight
//   - a reservoir of starts that is refilled on a fixed interval
//   - a minimum spacing between two starts
//
// A Group keys Limiters by origin, or shares one Limiter across all keys.
package ratelimit
