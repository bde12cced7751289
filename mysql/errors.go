package mysql

import (
	"strconv"

	"github.com/adbcj-go/adbcj"
)

// ErrUnsupportedColumnType reports a row value whose declared column type
// isn't one of the column types decodeRowValue narrows (spec §9's open
// question on MySQL row-value type coverage — resolved: fail loudly).
func ErrUnsupportedColumnType(columnType byte) error {
	return adbcj.NewProtocolError("mysql: unsupported column type 0x%02x", columnType)
}

func parseInt(raw []byte) (int64, error) {
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, adbcj.WrapProtocol(err, "mysql: malformed integer value %q", raw)
	}
	return v, nil
}
