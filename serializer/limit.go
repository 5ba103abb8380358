package serializer

import "fmt"

// Limit wraps another Serializer to enforce a maximum allowed payload
// size at Deserialize time. Serialize is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized or malicious payloads coming
// back from the distributed tier.
type Limit[V any] struct {
	Inner     Serializer[V]
	MaxDecode int
}

func (l Limit[V]) Serialize(v V) ([]byte, error) { return l.Inner.Serialize(v) }

func (l Limit[V]) Deserialize(b []byte) (V, error) {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		var zero V
		return zero, fmt.Errorf("serializer: payload too large: %d > %d", len(b), l.MaxDecode)
	}
	return l.Inner.Deserialize(b)
}

func (l Limit[V]) Description() string { return l.Inner.Description() }
