package ovsdb

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	// wire envelope tags of the OVSDB extended JSON notation
	tagUUID = "uuid"
	tagSet  = "set"
	tagMap  = "map"
)

// Set is a decoded OVSDB set value
type Set []interface{}

// Map is a decoded OVSDB map value. Keys are atoms or uuid.UUID values so
// they are always comparable.
type Map map[interface{}]interface{}

// Decode converts a value in OVSDB extended JSON notation into its native form.
//
// ["uuid", s] becomes a uuid.UUID, ["set", [...]] a Set and ["map", [[k, v]...]]
// a Map, each element decoded recursively. Anything else, including a two element
// array whose first element is not one of those tags, is returned unchanged.
func Decode(wire interface{}) (interface{}, error) {
	arr, ok := wire.([]interface{})
	if !ok || len(arr) != 2 {
		return wire, nil
	}
	tag, ok := arr[0].(string)
	if !ok {
		return wire, nil
	}
	switch tag {
	case tagUUID:
		s, ok := arr[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: uuid payload %v is not a string", ErrMalformedValue, arr[1])
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid uuid %q: %v", ErrMalformedValue, s, err)
		}
		return u, nil
	case tagSet:
		elems, ok := arr[1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: set payload %v is not an array", ErrMalformedValue, arr[1])
		}
		set := make(Set, 0, len(elems))
		for _, elem := range elems {
			v, err := Decode(elem)
			if err != nil {
				return nil, err
			}
			set = append(set, v)
		}
		return set, nil
	case tagMap:
		pairs, ok := arr[1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: map payload %v is not an array", ErrMalformedValue, arr[1])
		}
		m := make(Map, len(pairs))
		for _, p := range pairs {
			pair, ok := p.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: map entry %v is not a key/value pair", ErrMalformedValue, p)
			}
			k, err := Decode(pair[0])
			if err != nil {
				return nil, err
			}
			if !isComparable(k) {
				return nil, fmt.Errorf("%w: map key %v is not an atom", ErrMalformedValue, pair[0])
			}
			v, err := Decode(pair[1])
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	}
	return wire, nil
}

func isComparable(v interface{}) bool {
	switch v.(type) {
	case string, json.Number, float64, bool, uuid.UUID, nil:
		return true
	}
	return false
}

// Encode renders a scalar as a CLI token. Booleans become true/false and the
// empty string becomes "" so that it is not mistaken for an omitted value.
func Encode(value interface{}) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		if v == "" {
			return `""`
		}
		return v
	case []byte:
		return Encode(string(v))
	case nil:
		return ""
	}
	return fmt.Sprint(value)
}
