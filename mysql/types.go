package mysql

import "github.com/adbcj-go/adbcj"

// MySQL column-type byte codes (protocol constants, not configurable).
const (
	typeDecimal    = 0x00
	typeTiny       = 0x01
	typeShort      = 0x02
	typeLong       = 0x03
	typeFloat      = 0x04
	typeDouble     = 0x05
	typeNull       = 0x06
	typeTimestamp  = 0x07
	typeLongLong   = 0x08
	typeInt24      = 0x09
	typeDate       = 0x0a
	typeTime       = 0x0b
	typeDatetime   = 0x0c
	typeYear       = 0x0d
	typeVarchar    = 0x0f
	typeBit        = 0x10
	typeNewDecimal = 0xf6
	typeBlob       = 0xfc
	typeVarString  = 0xfd
	typeString     = 0xfe
)

// columnTypeToCatalog maps a MySQL column-type byte into the closed SQL
// type catalog (spec §6). This covers field *description*; actual value
// decoding in decodeRowValue only narrows the subset spec §9's open
// question resolved to support (see ErrUnsupportedColumnType).
func columnTypeToCatalog(t byte) adbcj.Type {
	switch t {
	case typeTiny:
		return adbcj.TinyInteger
	case typeShort:
		return adbcj.SmallInteger
	case typeInt24:
		return adbcj.MediumInteger
	case typeLong:
		return adbcj.Integer
	case typeLongLong:
		return adbcj.BigInteger
	case typeFloat:
		return adbcj.Float
	case typeDouble:
		return adbcj.Double
	case typeDecimal, typeNewDecimal:
		return adbcj.Decimal
	case typeDate, typeTimestamp, typeDatetime:
		return adbcj.Date
	case typeVarchar, typeVarString, typeString, typeBlob:
		return adbcj.Varchar
	default:
		return adbcj.Varchar
	}
}

// decodeRowValue narrows a length-encoded field value to its declared
// column type. Per spec §9's open question, unsupported types fail loudly
// rather than guess a conversion — matching original_source's
// `default: throw IllegalStateException`.
func decodeRowValue(columnType byte, raw []byte) (any, error) {
	switch columnType {
	case typeTiny:
		if len(raw) == 0 {
			return int8(0), nil
		}
		v, err := parseInt(raw)
		if err != nil {
			return nil, err
		}
		return int8(v), nil
	case typeLong, typeInt24, typeShort:
		v, err := parseInt(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	case typeLongLong:
		v, err := parseInt(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	case typeVarchar, typeVarString, typeString:
		return string(raw), nil
	default:
		return nil, ErrUnsupportedColumnType(columnType)
	}
}
