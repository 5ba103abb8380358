package serializer

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is a Serializer backed by vmihailenco/msgpack/v5. The zero
// value is ready to use. Be mindful of struct tag differences vs JSON;
// use `msgpack:"fieldName"` tags for explicit control.
type Msgpack[V any] struct{}

func (Msgpack[V]) Serialize(v V) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack[V]) Deserialize(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}

func (Msgpack[V]) Description() string { return "msgpack" }
