// Package throttle decides whether a client may run one more conversion.
//
// Each client id owns a token bucket of Capacity tokens that refills
// continuously at Capacity per Window. A request costs one token; a client
// with less than one token is rejected until the bucket refills.
//
// Two backends implement [Limiter]:
//   - [Memory] keeps buckets in process using golang.org/x/time/rate.
//     Idle buckets are swept by a janitor once they are older than the idle
//     TTL, which must be at least one window so only full buckets are dropped.
//   - [Redis] keeps buckets in Redis so that several replicas share one budget
//     per client. The refill and decision run atomically in a Lua script.
//
// [StatsRecorder] implementations count admitted and rejected decisions.
package throttle
