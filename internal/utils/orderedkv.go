package utils

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"
)

// OrderedKV is a map value that remembers its position in the output object.
type OrderedKV[T any] struct {
	Value T
	Order int64
}

// OrderedKVMap marshals as a JSON object whose keys follow Order instead of
// the alphabetical order encoding/json uses for maps.
type OrderedKVMap[T any] map[string]OrderedKV[T]

func (om OrderedKVMap[T]) Keys() []string {
	keys := make([]string, 0, len(om))
	for k := range om {
		keys = append(keys, k)
	}
	slices.SortStableFunc(keys, func(a, b string) int {
		if c := cmp.Compare(om[a].Order, om[b].Order); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys
}

func (om OrderedKVMap[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range om.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(om[k].Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
