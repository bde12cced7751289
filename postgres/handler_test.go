package postgres

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adbcj-go/adbcj"
	"github.com/adbcj-go/adbcj/session"
	"github.com/adbcj-go/adbcj/transport"
)

// pipedHandler wires h to one end of an in-memory net.Pipe(), draining
// everything the handler writes on the other end so the handler's
// writeLoop never blocks. Returns the server-side conn to script scripted
// server bytes onto, and a cleanup func.
func pipedHandler(t *testing.T, h *Handler) (server net.Conn, cleanup func()) {
	t.Helper()
	client, server := net.Pipe()
	conn := transport.NewConn(client, h, transport.DialOptions{})

	drainDone := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, server)
		close(drainDone)
	}()

	return server, func() {
		conn.Close()
		_ = server.Close()
		<-drainDone
	}
}

// TestPostgresMD5AuthAndSelectOne drives a Handler through spec.md §8
// scenario 2: startup, MD5 authentication request, AuthenticationOk,
// BackendKeyData, ReadyForQuery settling the connect future, then a full
// SELECT 1 result set (RowDescription/DataRow/CommandComplete/
// ReadyForQuery) settling the query future.
func TestPostgresMD5AuthAndSelectOne(t *testing.T) {
	h := NewHandler("postgres", "secret", "test", nil)
	server, cleanup := pipedHandler(t, h)
	defer cleanup()

	salt := []byte{1, 2, 3, 4}
	_, err := server.Write(pgFrame('R', append(be32(5), salt...)))
	require.NoError(t, err)

	_, err = server.Write(pgFrame('R', be32(0)))
	require.NoError(t, err)

	_, err = server.Write(pgFrame('K', append(be32(1234), be32(5678)...)))
	require.NoError(t, err)

	_, err = server.Write(pgFrame('Z', []byte{byte(TxIdle)}))
	require.NoError(t, err)

	sess, err := h.ConnectFuture().GetTimeout(2 * time.Second)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Same(t, h.Session(), sess)

	handler := adbcj.DefaultResultSetHandler()
	acc := &adbcj.ResultSet{}
	sf, err := session.ExecuteQuery(sess, "SELECT 1", handler, acc)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sess.ActiveRequest() != nil
	}, 2*time.Second, 10*time.Millisecond)

	var fieldPayload []byte
	fieldPayload = append(fieldPayload, be16(1)...)
	fieldPayload = append(fieldPayload, "?column?\x00"...)
	fieldPayload = append(fieldPayload, be32(0)...)
	fieldPayload = append(fieldPayload, be16(0)...)
	fieldPayload = append(fieldPayload, be32(oidInt4)...)
	fieldPayload = append(fieldPayload, be16(4)...)
	fieldPayload = append(fieldPayload, []byte{0, 0, 0, 0}...)
	fieldPayload = append(fieldPayload, be16(0)...)
	_, err = server.Write(pgFrame('T', fieldPayload))
	require.NoError(t, err)

	var rowPayload []byte
	rowPayload = append(rowPayload, be16(1)...)
	rowPayload = append(rowPayload, be32(1)...)
	rowPayload = append(rowPayload, '1')
	_, err = server.Write(pgFrame('D', rowPayload))
	require.NoError(t, err)

	_, err = server.Write(pgFrame('C', []byte("SELECT 1\x00")))
	require.NoError(t, err)

	_, err = server.Write(pgFrame('Z', []byte{byte(TxIdle)}))
	require.NoError(t, err)

	value, err := sf.GetTimeout(2 * time.Second)
	require.NoError(t, err)
	rs := value.(*adbcj.ResultSet)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, int64(1), rs.Rows[0].Values[0].Data)
}

// TestPostgresAuthErrorFailsConnectFuture drives spec §4.4's authentication
// failure path: an ErrorResponse in place of AuthenticationOk fails the
// connect future with a ServerError instead of settling it.
func TestPostgresAuthErrorFailsConnectFuture(t *testing.T) {
	h := NewHandler("postgres", "wrong", "test", nil)
	server, cleanup := pipedHandler(t, h)
	defer cleanup()

	salt := []byte{1, 2, 3, 4}
	_, err := server.Write(pgFrame('R', append(be32(5), salt...)))
	require.NoError(t, err)

	var payload []byte
	payload = append(payload, 'S')
	payload = append(payload, "ERROR\x00"...)
	payload = append(payload, 'C')
	payload = append(payload, "28P01\x00"...)
	payload = append(payload, 'M')
	payload = append(payload, "password authentication failed\x00"...)
	payload = append(payload, 0)
	_, err = server.Write(pgFrame('E', payload))
	require.NoError(t, err)

	_, err = h.ConnectFuture().GetTimeout(2 * time.Second)
	require.Error(t, err)
	serverErr, ok := err.(*adbcj.ServerError)
	require.True(t, ok)
	require.Equal(t, "28P01", serverErr.SQLState)
}

// TestPostgresReadyForQueryRaisesOnDivergedTransactionStatus covers
// spec.md:117's defensive check: a ReadyForQuery reporting an open
// transaction block after the connect future has already settled, with no
// transaction active on the session, must raise and fail whatever request
// is in flight rather than being ignored.
func TestPostgresReadyForQueryRaisesOnDivergedTransactionStatus(t *testing.T) {
	h := NewHandler("postgres", "secret", "test", nil)
	server, cleanup := pipedHandler(t, h)
	defer cleanup()

	_, err := server.Write(pgFrame('R', be32(0)))
	require.NoError(t, err)
	_, err = server.Write(pgFrame('Z', []byte{byte(TxIdle)}))
	require.NoError(t, err)

	sess, err := h.ConnectFuture().GetTimeout(2 * time.Second)
	require.NoError(t, err)
	require.False(t, sess.IsInTransaction())

	handler := adbcj.DefaultResultSetHandler()
	acc := &adbcj.ResultSet{}
	sf, err := session.ExecuteQuery(sess, "SELECT 1", handler, acc)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sess.ActiveRequest() != nil
	}, 2*time.Second, 10*time.Millisecond)

	// A ReadyForQuery reporting TxInBlock with no transaction active on the
	// session diverges from spec.md:117's expectations; the still-pending
	// query request must fail rather than hang.
	_, err = server.Write(pgFrame('Z', []byte{byte(TxInBlock)}))
	require.NoError(t, err)

	_, err = sf.GetTimeout(2 * time.Second)
	require.Error(t, err)
	require.ErrorIs(t, err, adbcj.ErrProtocol)
}
