package serializer

import "encoding/json"

// JSON is a Serializer backed by encoding/json. The zero value is ready
// to use.
type JSON[V any] struct{}

func (JSON[V]) Serialize(v V) ([]byte, error) { return json.Marshal(v) }

func (JSON[V]) Deserialize(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

func (JSON[V]) Description() string { return "json" }
