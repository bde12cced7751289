// Package adbcj holds the "known surface" façade types spec.md §1 treats
// as external collaborators: the SQL type catalog, field/value/row/result
// set types, and the result-streaming event handler. None of these carry
// interesting behavior; they exist so session, mysql, and postgres have a
// shared vocabulary to hand results back in.
package adbcj

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Type is one member of the closed SQL type catalog (spec §6).
type Type int

const (
	TinyInteger Type = iota
	Byte
	SmallInteger
	Short
	MediumInteger
	MediumUnsignedInteger
	Integer
	UnsignedInteger
	BigInteger
	BigUnsignedInteger
	Decimal
	Numeric
	Float
	Real
	Double
	Char
	Varchar
	Date
	Boolean
)

// typeInfo describes a catalog entry: its size in bytes (0 = variable),
// whether it is signed, and a human-readable name for error messages.
type typeInfo struct {
	name   string
	size   int
	signed bool
}

var catalog = map[Type]typeInfo{
	TinyInteger:           {"TINY_INTEGER", 1, true},
	Byte:                  {"BYTE", 1, false},
	SmallInteger:          {"SMALL_INTEGER", 2, true},
	Short:                 {"SHORT", 2, true},
	MediumInteger:         {"MEDIUM_INTEGER", 3, true},
	MediumUnsignedInteger: {"MEDIUM_UNSIGNED_INTEGER", 3, false},
	Integer:               {"INTEGER", 4, true},
	UnsignedInteger:       {"UNSIGNED_INTEGER", 4, false},
	BigInteger:            {"BIG_INTEGER", 8, true},
	BigUnsignedInteger:    {"BIG_UNSIGNED_INTEGER", 8, false},
	Decimal:               {"DECIMAL", 0, true},
	Numeric:               {"NUMERIC", 0, true},
	Float:                 {"FLOAT", 4, true},
	Real:                  {"REAL", 4, true},
	Double:                {"DOUBLE", 8, true},
	Char:                  {"CHAR", 0, false},
	Varchar:               {"VARCHAR", 0, false},
	Date:                  {"DATE", 0, false},
	Boolean:               {"BOOLEAN", 1, false},
}

// String returns the catalog name, e.g. "INTEGER".
func (t Type) String() string {
	if info, ok := catalog[t]; ok {
		return info.name
	}
	return "UNKNOWN"
}

// Size returns the on-the-wire host representation size in bytes, or 0 for
// variable-length types.
func (t Type) Size() int { return catalog[t].size }

// Signed reports whether the type's host representation is signed.
func (t Type) Signed() bool { return catalog[t].signed }

// HostZero returns the zero value of the type's Go host representation,
// useful for callers building accumulators without a type switch.
func (t Type) HostZero() any {
	switch t {
	case TinyInteger, SmallInteger, Short, MediumInteger, Integer, BigInteger:
		return int64(0)
	case Byte, MediumUnsignedInteger, UnsignedInteger, BigUnsignedInteger:
		return uint64(0)
	case Decimal, Numeric:
		return (*apd.Decimal)(nil)
	case Float, Real:
		return float32(0)
	case Double:
		return float64(0)
	case Char, Varchar:
		return ""
	case Date:
		return time.Time{}
	case Boolean:
		return false
	default:
		return nil
	}
}

// Field describes one column of a result set (spec §3).
type Field struct {
	Index int
	Name  string
	Type  Type
}

// Value pairs a Field with its decoded host-representation value. A nil
// Data means the column was SQL NULL.
type Value struct {
	Field *Field
	Data  any
}

// Row is one row of a ResultSet: a positional slice of Values aligned
// with the ResultSet's Fields.
type Row struct {
	Fields *[]Field
	Values []Value
}

// Get returns the value for the named column, or nil if not found.
func (r *Row) Get(name string) any {
	for i := range r.Values {
		if r.Values[i].Field != nil && r.Values[i].Field.Name == name {
			return r.Values[i].Data
		}
	}
	return nil
}

// ResultSet accumulates fields and rows for a query (spec §4.2 streaming
// results; the accumulator type driven by ResultEventHandler).
type ResultSet struct {
	Fields []Field
	Rows   []Row
}

// AddField appends a field descriptor.
func (rs *ResultSet) AddField(f Field) { rs.Fields = append(rs.Fields, f) }

// AddRow appends an empty row sized to the current field count and
// returns it so callers can fill in values positionally.
func (rs *ResultSet) AddRow() *Row {
	rs.Rows = append(rs.Rows, Row{Fields: &rs.Fields, Values: make([]Value, len(rs.Fields))})
	return &rs.Rows[len(rs.Rows)-1]
}

// Size returns the number of rows accumulated so far.
func (rs *ResultSet) Size() int { return len(rs.Rows) }

// Result is the accumulator for executeUpdate: an affected-row count and,
// where the backend reports them, generated keys.
type Result struct {
	RowsAffected int64
	GeneratedKeys []string
}

// ResultEventHandler drives an accumulator as protocol messages arrive
// (spec §4.2). A query's future value is the accumulator at EndResults.
type ResultEventHandler[T any] struct {
	StartFields func(accumulator T)
	Field       func(f Field, accumulator T)
	EndFields   func(accumulator T)
	StartResults func(accumulator T)
	StartRow    func(accumulator T)
	Value       func(v Value, accumulator T)
	EndRow      func(accumulator T)
	EndResults  func(accumulator T)
	Exception   func(err error, accumulator T)
}

func noop[T any](T)        {}
func noopErr[T any](error, T) {}

// DefaultResultSetHandler returns the handler used by Session.ExecuteQuery
// when the caller doesn't supply a custom one: it builds a *ResultSet the
// same way AbstractDbSession.executeQuery's anonymous ResultEventHandler
// does in the original source.
func DefaultResultSetHandler() *ResultEventHandler[*ResultSet] {
	return &ResultEventHandler[*ResultSet]{
		StartFields: noop[*ResultSet],
		Field: func(f Field, acc *ResultSet) { acc.AddField(f) },
		EndFields:    noop[*ResultSet],
		StartResults: noop[*ResultSet],
		StartRow:     func(acc *ResultSet) { acc.AddRow() },
		Value: func(v Value, acc *ResultSet) {
			row := &acc.Rows[len(acc.Rows)-1]
			row.Values[v.Field.Index] = v
		},
		EndRow:     noop[*ResultSet],
		EndResults: noop[*ResultSet],
		Exception:  noopErr[*ResultSet],
	}
}
