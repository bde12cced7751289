package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adbcj-go/adbcj"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func packet(seq byte, payload []byte) []byte {
	n := len(payload)
	out := []byte{byte(n), byte(n >> 8), byte(n >> 16), seq}
	return append(out, payload...)
}

func TestDecodeGreeting(t *testing.T) {
	payload := []byte{10}
	payload = append(payload, []byte("5.7.30")...)
	payload = append(payload, 0)
	payload = append(payload, 7, 0, 0, 0) // thread id
	payload = append(payload, []byte("abcdefgh")...) // salt part 1
	payload = append(payload, 0) // filler
	payload = append(payload, 0x0f, 0x82) // server capabilities
	payload = append(payload, 0x21)       // charset
	payload = append(payload, 0x02, 0x00) // server status
	payload = append(payload, make([]byte, 13)...) // reserved
	payload = append(payload, []byte("ijklmnopqrst")...) // salt part 2
	payload = append(payload, 0) // trailing pad decodeGreeting's length check expects

	d := NewDecoder()
	var got []any
	require.NoError(t, d.Decode(packet(0, payload), func(msg any) { got = append(got, msg) }))
	require.Len(t, got, 1)

	g := got[0].(*ServerGreeting)
	require.Equal(t, byte(10), g.ProtocolVersion)
	require.Equal(t, "5.7.30", g.ServerVersion)
	require.Equal(t, uint32(7), g.ThreadID)
	require.Equal(t, byte(0x21), g.CharsetID)
	require.Equal(t, []byte("abcdefghijklmnopqrst"), g.Salt)
}

func TestDecodeOkAfterGreeting(t *testing.T) {
	d := NewDecoder()
	var got []any
	emit := func(msg any) { got = append(got, msg) }

	greeting := []byte{10}
	greeting = append(greeting, []byte("5.7.30")...)
	greeting = append(greeting, 0)
	greeting = append(greeting, make([]byte, 4+8+1+2+1+2+13+12+1)...)
	require.NoError(t, d.Decode(packet(0, greeting), emit))

	ok := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	require.NoError(t, d.Decode(packet(1, ok), emit))

	require.Len(t, got, 2)
	okMsg, isOk := got[1].(*OkResponse)
	require.True(t, isOk)
	require.Equal(t, uint64(0), okMsg.AffectedRows)
}

func TestDecodeErrorAfterGreeting(t *testing.T) {
	d := NewDecoder()
	var got []any
	emit := func(msg any) { got = append(got, msg) }

	greeting := []byte{10}
	greeting = append(greeting, []byte("5.7.30")...)
	greeting = append(greeting, 0)
	greeting = append(greeting, make([]byte, 4+8+1+2+1+2+13+12+1)...)
	require.NoError(t, d.Decode(packet(0, greeting), emit))

	errPayload := []byte{0xff}
	errPayload = append(errPayload, 0x15, 0x04) // error number 1045 LE
	errPayload = append(errPayload, '#')
	errPayload = append(errPayload, []byte("28000")...)
	errPayload = append(errPayload, []byte("Access denied")...)
	require.NoError(t, d.Decode(packet(1, errPayload), emit))

	require.Len(t, got, 2)
	e, isErr := got[1].(*ErrorResponse)
	require.True(t, isErr)
	require.Equal(t, uint16(1045), e.ErrorNumber)
	require.Equal(t, "28000", e.SQLState)
	require.Equal(t, "Access denied", e.Message)
}

// TestDecodeSelectOne walks a full SELECT 1 round trip: field-count
// response, one field descriptor, field EOF, one row, row EOF. This
// mirrors spec.md's end-to-end scenario 1.
func TestDecodeSelectOne(t *testing.T) {
	d := NewDecoder()
	var got []any
	emit := func(msg any) { got = append(got, msg) }

	greeting := []byte{10}
	greeting = append(greeting, []byte("5.7.30")...)
	greeting = append(greeting, 0)
	greeting = append(greeting, make([]byte, 4+8+1+2+1+2+13+12+1)...)
	require.NoError(t, d.Decode(packet(0, greeting), emit))

	require.NoError(t, d.Decode(packet(1, []byte{1}), emit)) // field count = 1

	field := encodeFieldFixture("1", typeLong)
	require.NoError(t, d.Decode(packet(2, field), emit))

	require.NoError(t, d.Decode(packet(3, []byte{0xfe, 0, 0, 2, 0}), emit)) // field EOF

	row := []byte{1, '1'} // length-encoded string "1"
	require.NoError(t, d.Decode(packet(4, row), emit))

	require.NoError(t, d.Decode(packet(5, []byte{0xfe, 0, 0, 2, 0}), emit)) // row EOF

	require.Len(t, got, 6)
	rs, ok := got[1].(*ResultSetResponse)
	require.True(t, ok)
	require.Equal(t, uint64(1), rs.FieldCount)

	f, ok := got[2].(*ResultSetFieldResponse)
	require.True(t, ok)
	require.Equal(t, "1", f.Name)
	require.Equal(t, adbcj.Integer, columnTypeToCatalog(f.Type))

	fieldEof, ok := got[3].(*EofResponse)
	require.True(t, ok)
	require.Equal(t, EofField, fieldEof.Kind)

	dataRow, ok := got[4].(*ResultSetRowResponse)
	require.True(t, ok)
	require.Equal(t, []any{int64(1)}, dataRow.Values)

	rowEof, ok := got[5].(*EofResponse)
	require.True(t, ok)
	require.Equal(t, EofRow, rowEof.Kind)
}

// encodeFieldFixture builds a minimal field-descriptor packet body: four
// empty length-encoded strings (catalog/db/table/origTable), the column
// name, an empty orig name, the 0x0c filler length, charset, length, type,
// flags, decimals.
func encodeFieldFixture(name string, typ byte) []byte {
	var b []byte
	emptyLE := func() { b = append(b, 0) }
	emptyLE() // catalog
	emptyLE() // db
	emptyLE() // table
	emptyLE() // orig table
	b = append(b, byte(len(name)))
	b = append(b, name...)
	emptyLE() // orig name
	b = append(b, 0x0c)
	b = append(b, 0x21, 0x00) // charset
	b = append(b, 0x0b, 0, 0, 0) // length
	b = append(b, typ)
	b = append(b, 0, 0) // flags
	b = append(b, 0)    // decimals
	b = append(b, 0, 0) // trailing filler
	return b
}

func TestDecodeUnsupportedColumnType(t *testing.T) {
	_, err := decodeRowValue(typeBit, []byte("x"))
	require.Error(t, err)
}

// TestReadLengthEncodedIntRejectsHighBitSet guards against a malformed
// 8-byte length-encoded integer being used as a slice length: the decoder
// must surface adbcj.ErrProtocol instead of panicking on an out-of-bounds
// slice access.
func TestReadLengthEncodedIntRejectsHighBitSet(t *testing.T) {
	// 0xfe prefix + 8 bytes all 0xff: top bit of the decoded uint64 is set.
	p := append([]byte{0xfe}, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)

	_, _, err := readLengthEncodedInt(p)
	require.Error(t, err)
	require.ErrorIs(t, err, adbcj.ErrProtocol)
}

// TestReadLengthEncodedIntRejectsTruncatedEightByteForm guards the other
// half of the same defect: fewer than 8 bytes following the 0xfe prefix
// must not panic Uint64LE with an out-of-range slice.
func TestReadLengthEncodedIntRejectsTruncatedEightByteForm(t *testing.T) {
	p := []byte{0xfe, 1, 2, 3}

	_, _, err := readLengthEncodedInt(p)
	require.Error(t, err)
	require.ErrorIs(t, err, adbcj.ErrProtocol)
}

func TestDecodeOkRejectsMalformedAffectedRowsLength(t *testing.T) {
	p := append([]byte{0xfe}, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)

	_, err := decodeOk(p)
	require.Error(t, err)
	require.ErrorIs(t, err, adbcj.ErrProtocol)
}
