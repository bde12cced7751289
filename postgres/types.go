package postgres

import "github.com/adbcj-go/adbcj"

// PostgreSQL built-in type OIDs relevant to the closed catalog (spec §6).
// Values are PostgreSQL's fixed, documented OIDs for pg_type entries —
// protocol constants, not configurable.
const (
	oidBool      = 16
	oidInt8      = 20
	oidInt2      = 21
	oidInt4      = 23
	oidText      = 25
	oidFloat4    = 700
	oidFloat8    = 701
	oidVarchar   = 1043
	oidDate      = 1082
	oidTimestamp = 1114
	oidTimestamptz = 1184
	oidNumeric   = 1700
	oidBpchar    = 1042
)

// oidToCatalog maps a PostgreSQL type OID into the closed SQL type catalog
// (spec §6). Unknown OIDs degrade to Varchar (text representation), mirroring
// MySQL's columnTypeToCatalog default; unlike MySQL's decodeRowValue, which
// fails loudly on a column type it does not narrow, nothing fails here: Postgres's
// TEXT format sends everything as a string regardless of declared type, so an
// unrecognized OID still has a safe textual decoding (§4.4 "DATA_ROW").
func oidToCatalog(oid uint32) adbcj.Type {
	switch oid {
	case oidBool:
		return adbcj.Boolean
	case oidInt2:
		return adbcj.SmallInteger
	case oidInt4:
		return adbcj.Integer
	case oidInt8:
		return adbcj.BigInteger
	case oidFloat4:
		return adbcj.Float
	case oidFloat8:
		return adbcj.Double
	case oidNumeric:
		return adbcj.Numeric
	case oidDate, oidTimestamp, oidTimestamptz:
		return adbcj.Date
	case oidBpchar:
		return adbcj.Char
	case oidText, oidVarchar:
		return adbcj.Varchar
	default:
		return adbcj.Varchar
	}
}
