package serializer

// Raw is the identity Serializer for []byte values: Serialize/Deserialize
// return the input unchanged. Per spec.md §4.6, a byte-array value type
// bypasses serialization on writes and skips deserialization on reads;
// the coordinator detects []byte by reflection and routes through this
// codec (or an equivalent passthrough) automatically, but Raw is also
// exposed directly for callers who build their own Serializer[[]byte].
type Raw struct{}

func (Raw) Serialize(b []byte) ([]byte, error) { return b, nil }
func (Raw) Deserialize(b []byte) ([]byte, error) { return b, nil }
func (Raw) Description() string                  { return "raw" }
