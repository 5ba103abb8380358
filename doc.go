// Package cascache implements a three-tier cache facade: an in-process
// memory tier (L1), a local on-disk tier (L2), and a distributed tier
// (L3, e.g. Redis). Reads fall through L1 -> L2 -> L3; writes fan out to
// all three; GetOrCreate collapses concurrent loads for the same key into
// a single factory execution, writes a computed result into every tier,
// and promotes an L2/L3 hit into L1.
//
// Components:
//   - memory.Tier: bounded in-RAM byte store with size accounting (L1).
//   - filecache.Cache: TTL + free-space bounded on-disk tier (L2).
//   - distributed.Adapter: circuit-breaker-wrapped distributed store with
//     key-change invalidation and distributed locking (L3).
//   - serializer.Serializer: pluggable (de)serialization with a tag that
//     is embedded into every key so changing codecs naturally invalidates
//     old entries.
//
// Keys are formatted as "<prefix>:<type>:<serializer-tag>:<user-key>" so
// the same user key stored under two different Go types, or encoded by
// two different serializers, never collides (see FormatKey).
package cascache
