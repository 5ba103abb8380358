// Package serializer provides the Serializer contract (spec.md §4.6) plus
// concrete implementations. The contract itself is treated as an external
// collaborator by the coordinator, but concrete codecs are shipped here
// exactly as the teacher ships concrete Codec[V] implementations under
// codec/ even though the abstract interface is the "contract".
package serializer

// Serializer converts a typed value to and from bytes, and carries a
// short description tag that is embedded into every FormattedKey so
// changing encoder versions naturally invalidates old entries.
type Serializer[V any] interface {
	Serialize(v V) ([]byte, error)
	Deserialize(b []byte) (V, error)
	Description() string
}
