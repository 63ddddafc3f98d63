package ovsdb

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DefaultColumnOp is the operator used when a ColumnValue does not set one
const DefaultColumnOp = "="

// ColumnValue is one column argument of a database command. Op is emitted
// verbatim; the server interprets it.
type ColumnValue struct {
	Column string
	Op     string
	Value  interface{}
}

// Col returns a ColumnValue using the default operator
func Col(column string, value interface{}) ColumnValue {
	return ColumnValue{Column: column, Value: value}
}

// ColOp returns a ColumnValue with an explicit operator
func ColOp(column, op string, value interface{}) ColumnValue {
	return ColumnValue{Column: column, Op: op, Value: value}
}

// BuildArgs converts column values into CLI arguments in input order.
//
// Map values expand to one column:key<op>value argument per key, sorted by key.
// Sequences become column<op>v1,v2 or column<op>[] when empty. Scalars become
// column<op>value.
func BuildArgs(entries []ColumnValue) []string {
	args := make([]string, 0, len(entries))
	for _, entry := range entries {
		op := entry.Op
		if op == "" {
			op = DefaultColumnOp
		}
		args = append(args, entry.args(op)...)
	}
	return args
}

func (c ColumnValue) args(op string) []string {
	if c.Value == nil || isScalar(c.Value) {
		return []string{c.Column + op + Encode(c.Value)}
	}

	rv := reflect.ValueOf(c.Value)
	switch rv.Kind() {
	case reflect.Map:
		type keyed struct {
			key   string
			value interface{}
		}
		entries := make([]keyed, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, keyed{
				key:   fmt.Sprint(iter.Key().Interface()),
				value: iter.Value().Interface(),
			})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		args := make([]string, 0, len(entries))
		for _, e := range entries {
			args = append(args, fmt.Sprintf("%s:%s%s%s", c.Column, e.key, op, Encode(e.value)))
		}
		return args
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return []string{c.Column + op + "[]"}
		}
		elems := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elems = append(elems, Encode(rv.Index(i).Interface()))
		}
		return []string{c.Column + op + strings.Join(elems, ",")}
	}
	return []string{c.Column + op + Encode(c.Value)}
}

// isScalar reports values that must not be treated as collections even though
// their underlying kind is a slice or an array
func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, []byte, uuid.UUID, fmt.Stringer:
		return true
	}
	return false
}
