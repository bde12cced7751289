// Package postgres implements the PostgreSQL frontend/backend wire protocol
// v3.0: the codec (decoder/encoder), the protocol handler wiring decoded
// messages into a session.ProtocolOps, and the connection manager (spec
// §4.4, §4.5).
package postgres

import "github.com/adbcj-go/adbcj"

// AuthKind distinguishes the authentication sub-messages the backend can
// send in response to StartupMessage (spec §4.4 "Startup").
type AuthKind int

const (
	AuthOk AuthKind = iota
	AuthMD5Password
	AuthUnsupported
)

// Authentication is the decoded 'R' message.
type Authentication struct {
	Kind AuthKind
	Salt []byte // 4 bytes, only set for AuthMD5Password
}

// Key is the decoded 'K' BackendKeyData message: the pid/secret pair
// needed to build a CancelRequest (spec §3 "backend-assigned identifiers").
type Key struct {
	ProcessID uint32
	SecretKey uint32
}

// ParameterStatus is the decoded 'S' message (spec §4.4 "PARAMETER_STATUS").
type ParameterStatus struct {
	Name  string
	Value string
}

// RowDescription is the decoded 'T' message: one entry per column.
type RowDescription struct {
	Fields []FieldDescription
}

// FieldDescription describes one column of a RowDescription.
type FieldDescription struct {
	Name         string
	TableOID     uint32
	ColumnNumber int16
	TypeOID      uint32
	TypeSize     int16
	TypeModifier int32
	FormatCode   int16 // 0 = text, 1 = binary
}

// ToField converts a wire field descriptor into the façade type (§6).
func (f *FieldDescription) ToField(index int) adbcj.Field {
	return adbcj.Field{Index: index, Name: f.Name, Type: oidToCatalog(f.TypeOID)}
}

// DataRow is the decoded 'D' message: one row, column values still as raw
// bytes (nil for SQL NULL) paired with the RowDescription that preceded it.
type DataRow struct {
	Values [][]byte
}

// CommandComplete is the decoded 'C' message: the parsed `tag rows` text
// (spec §4.4 "COMMAND_COMPLETE", regex `(\w+)\s*(\d*)\s*(\d*)`).
type CommandComplete struct {
	Command string
	Rows    int64
}

// ErrorResponse is the decoded 'E' message: the fields of interest for
// adbcj.ServerError (code, message); the full field list is richer but not
// otherwise consumed.
type ErrorResponse struct {
	Severity string
	Code     string
	Message  string
}

// TxStatus is ReadyForQuery's transaction-status byte (spec §4.4
// "READY_FOR_QUERY").
type TxStatus byte

const (
	TxIdle        TxStatus = 'I'
	TxInBlock     TxStatus = 'T'
	TxFailedBlock TxStatus = 'E'
)

// ReadyForQuery is the decoded 'Z' message.
type ReadyForQuery struct {
	Status TxStatus
}

// ParseComplete/BindComplete/NoData/EmptyQueryResponse are no-op
// acknowledgement messages the handler consumes without producing any
// session-visible effect; each still needs a distinct Go type so the
// decoder's emit callback can dispatch on it.
type (
	ParseComplete       struct{}
	BindComplete        struct{}
	NoData              struct{}
	EmptyQueryResponse   struct{}
)
