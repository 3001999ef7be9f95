package playlists

import "encoding/json"

// Field is a JSON value that remembers whether it was sent at all and
// whether it was sent as null, so partial updates can tell "leave alone"
// apart from "clear".
type Field[T any] struct {
	Present bool
	Null    bool
	Value   T
}

// Set returns a Field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: v}
}

// Null returns a Field that was sent as null.
func Null[T any]() Field[T] {
	return Field[T]{Present: true, Null: true}
}

// UnmarshalJSON is only called for keys present in the document.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Present = true
	if string(data) == "null" {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}
