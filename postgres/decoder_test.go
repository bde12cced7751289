package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func be16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func pgFrame(tag byte, payload []byte) []byte {
	out := []byte{tag}
	out = append(out, be32(uint32(len(payload)+4))...)
	return append(out, payload...)
}

func decodeOneFixture(t *testing.T, frame []byte) any {
	t.Helper()
	d := NewDecoder()
	var got []any
	require.NoError(t, d.Decode(frame, func(msg any) { got = append(got, msg) }))
	require.Len(t, got, 1)
	return got[0]
}

func TestDecodeAuthenticationOk(t *testing.T) {
	msg := decodeOneFixture(t, pgFrame('R', be32(0)))
	auth := msg.(*Authentication)
	require.Equal(t, AuthOk, auth.Kind)
}

func TestDecodeAuthenticationMD5(t *testing.T) {
	payload := append(be32(5), []byte{1, 2, 3, 4}...)
	msg := decodeOneFixture(t, pgFrame('R', payload))
	auth := msg.(*Authentication)
	require.Equal(t, AuthMD5Password, auth.Kind)
	require.Equal(t, []byte{1, 2, 3, 4}, auth.Salt)
}

func TestDecodeKey(t *testing.T) {
	payload := append(be32(1234), be32(5678)...)
	msg := decodeOneFixture(t, pgFrame('K', payload))
	key := msg.(*Key)
	require.Equal(t, uint32(1234), key.ProcessID)
	require.Equal(t, uint32(5678), key.SecretKey)
}

func TestDecodeParameterStatus(t *testing.T) {
	var payload []byte
	payload = append(payload, "server_version\x00"...)
	payload = append(payload, "15.2\x00"...)
	msg := decodeOneFixture(t, pgFrame('S', payload))
	ps := msg.(*ParameterStatus)
	require.Equal(t, "server_version", ps.Name)
	require.Equal(t, "15.2", ps.Value)
}

func TestDecodeRowDescriptionAndDataRow(t *testing.T) {
	var fieldPayload []byte
	fieldPayload = append(fieldPayload, be16(1)...) // one field
	fieldPayload = append(fieldPayload, "?column?\x00"...)
	fieldPayload = append(fieldPayload, be32(0)...)      // table oid
	fieldPayload = append(fieldPayload, be16(0)...)      // column number
	fieldPayload = append(fieldPayload, be32(oidInt4)...) // type oid
	fieldPayload = append(fieldPayload, be16(4)...)      // type size
	fieldPayload = append(fieldPayload, []byte{0, 0, 0, 0}...) // type modifier
	fieldPayload = append(fieldPayload, be16(0)...)      // format code

	msg := decodeOneFixture(t, pgFrame('T', fieldPayload))
	rd := msg.(*RowDescription)
	require.Len(t, rd.Fields, 1)
	require.Equal(t, "?column?", rd.Fields[0].Name)
	require.Equal(t, uint32(oidInt4), rd.Fields[0].TypeOID)

	var rowPayload []byte
	rowPayload = append(rowPayload, be16(1)...)
	rowPayload = append(rowPayload, be32(1)...)
	rowPayload = append(rowPayload, '1')

	msg2 := decodeOneFixture(t, pgFrame('D', rowPayload))
	dr := msg2.(*DataRow)
	require.Equal(t, [][]byte{[]byte("1")}, dr.Values)
}

func TestDecodeDataRowNull(t *testing.T) {
	var rowPayload []byte
	rowPayload = append(rowPayload, be16(1)...)
	rowPayload = append(rowPayload, []byte{0xff, 0xff, 0xff, 0xff}...) // -1 length: NULL

	msg := decodeOneFixture(t, pgFrame('D', rowPayload))
	dr := msg.(*DataRow)
	require.Nil(t, dr.Values[0])
}

func TestDecodeCommandCompleteSelect(t *testing.T) {
	msg := decodeOneFixture(t, pgFrame('C', []byte("SELECT 1\x00")))
	cc := msg.(*CommandComplete)
	require.Equal(t, "SELECT", cc.Command)
	require.Equal(t, int64(1), cc.Rows)
}

func TestDecodeCommandCompleteInsert(t *testing.T) {
	msg := decodeOneFixture(t, pgFrame('C', []byte("INSERT 0 5\x00")))
	cc := msg.(*CommandComplete)
	require.Equal(t, "INSERT", cc.Command)
	require.Equal(t, int64(5), cc.Rows)
}

func TestDecodeErrorResponse(t *testing.T) {
	var payload []byte
	payload = append(payload, 'S')
	payload = append(payload, "ERROR\x00"...)
	payload = append(payload, 'C')
	payload = append(payload, "28P01\x00"...)
	payload = append(payload, 'M')
	payload = append(payload, "password authentication failed\x00"...)
	payload = append(payload, 0) // terminator

	msg := decodeOneFixture(t, pgFrame('E', payload))
	e := msg.(*ErrorResponse)
	require.Equal(t, "28P01", e.Code)
	require.Equal(t, "password authentication failed", e.Message)
}

func TestDecodeReadyForQuery(t *testing.T) {
	msg := decodeOneFixture(t, pgFrame('Z', []byte{'I'}))
	rfq := msg.(*ReadyForQuery)
	require.Equal(t, TxIdle, rfq.Status)
}

func TestDecodePartialFrameBuffered(t *testing.T) {
	frame := pgFrame('Z', []byte{'I'})
	d := NewDecoder()
	var got []any
	emit := func(msg any) { got = append(got, msg) }

	require.NoError(t, d.Decode(frame[:3], emit))
	require.Empty(t, got)

	require.NoError(t, d.Decode(frame[3:], emit))
	require.Len(t, got, 1)
}
