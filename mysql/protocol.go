// Package mysql implements the MySQL client/server wire protocol: the
// codec (decoder/encoder), the protocol handler wiring decoded messages
// into a session.ProtocolOps, and the connection manager (spec §4.3, §4.5).
package mysql

import "github.com/adbcj-go/adbcj"

// ServerGreeting is the initial handshake packet MySQL sends on connect
// (spec §4.3 "Greeting").
type ServerGreeting struct {
	ProtocolVersion byte
	ServerVersion   string
	ThreadID        uint32
	Salt            []byte // 8 + 12 bytes, concatenated
	ServerCapabilities uint16
	CharsetID       byte
	ServerStatus    uint16
}

// OkResponse is the OK packet: affected rows, last insert id, status,
// warnings, and a trailing message (spec §4.3 "Ok / Error").
type OkResponse struct {
	AffectedRows uint64
	InsertID     uint64
	ServerStatus uint16
	WarningCount uint16
	Message      string
}

// ErrorResponse is the ERR packet.
type ErrorResponse struct {
	ErrorNumber uint16
	SQLState    string
	Message     string
}

// ResultSetResponse announces a result set is coming, carrying the field
// count read as a length-encoded integer.
type ResultSetResponse struct {
	FieldCount uint64
}

// ResultSetFieldResponse describes one column (spec §6's type catalog, but
// the wire-level subset MySQL sends per field).
type ResultSetFieldResponse struct {
	Name    string
	Table   string
	Type    byte
	Length  uint32
	Decimals byte
	Flags   uint16
}

// EofKind distinguishes the two EOF markers the state machine emits (spec
// §4.3 table: FIELD_EOF transitions with type=FIELD, ROW transitions with
// type=ROW).
type EofKind int

const (
	EofField EofKind = iota
	EofRow
)

// EofResponse is the 0xFE marker packet.
type EofResponse struct {
	Kind         EofKind
	WarningCount uint16
	ServerStatus uint16
}

// ResultSetRowResponse is one decoded row: parallel to the preceding
// ResultSetFieldResponse sequence, each value already narrowed to its
// declared column type (spec §4.3 "Row values") or nil for SQL NULL.
type ResultSetRowResponse struct {
	Values []any
}

// ToField converts a wire field descriptor into the façade type, mapping
// MySQL's column-type byte into the closed SQL type catalog (§6).
func (f *ResultSetFieldResponse) ToField(index int) adbcj.Field {
	return adbcj.Field{Index: index, Name: f.Name, Type: columnTypeToCatalog(f.Type)}
}
