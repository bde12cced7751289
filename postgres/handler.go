package postgres

import (
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/adbcj-go/adbcj"
	"github.com/adbcj-go/adbcj/future"
	"github.com/adbcj-go/adbcj/session"
	"github.com/adbcj-go/adbcj/transport"
)

// Handler is the PostgreSQL protocol handler (spec §4.4): it implements
// transport.Handler to receive raw bytes, runs them through Decoder, and
// drives both the connect future and the session's request pipeline. It
// also implements session.ProtocolOps. Grounded on PgIoHandler
// (original_source) generalized per spec §9's ProtocolOps redesign.
type Handler struct {
	log     hclog.Logger
	conn    *transport.Conn
	decoder *Decoder
	sess    *session.Session

	user, password, database string

	connectFut *future.DbFuture[*session.Session]

	processID, secretKey uint32
	fields                []adbcj.Field
	stmtCache             *statementCache
}

// NewHandler constructs a handler and its owned Session.
func NewHandler(user, password, database string, log hclog.Logger) *Handler {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	h := &Handler{
		log:        log.Named("postgres"),
		decoder:    NewDecoder(),
		user:       user,
		password:   password,
		database:   database,
		connectFut: future.New[*session.Session](nil),
		stmtCache:  newStatementCache(),
	}
	h.sess = session.New(h, h.log)
	return h
}

// ConnectFuture settles with the usable session once the startup and
// authentication round-trip completes, or with a ServerError/transport
// error.
func (h *Handler) ConnectFuture() *future.DbFuture[*session.Session] { return h.connectFut }

// Session returns the handler's session.
func (h *Handler) Session() *session.Session { return h.sess }

// --- transport.Handler ---

func (h *Handler) SessionOpened(c *transport.Conn) {
	h.conn = c
	h.write(encodeStartup(h.user, h.database))
}

func (h *Handler) MessageReceived(c *transport.Conn, data []byte) {
	if err := h.decoder.Decode(data, h.dispatch); err != nil {
		h.onError(err)
	}
}

func (h *Handler) SessionClosed(c *transport.Conn) {
	err := adbcj.ErrTransport
	if !h.connectFut.IsDone() {
		_ = h.connectFut.SetException(err)
	}
	_ = h.sess.ErrorAllPending(err)
}

func (h *Handler) ExceptionCaught(c *transport.Conn, err error) {
	h.onError(err)
}

func (h *Handler) onError(err error) {
	if !h.connectFut.IsDone() {
		_ = h.connectFut.SetException(err)
		return
	}
	_ = h.sess.ErrorAllPending(err)
}

// --- session.ProtocolOps ---

// transactionStatementName returns the cached (or freshly minted) statement
// name for one of the three transaction keywords, and whether Parse can be
// elided (spec §4.4 "Query execution").
func (h *Handler) transactionStatementName(sql string) (name string, parseSkipped bool) {
	return h.stmtCache.lookup(sql)
}

func (h *Handler) SendBegin() error    { return h.sendCached("BEGIN") }
func (h *Handler) SendCommit() error   { return h.sendCached("COMMIT") }
func (h *Handler) SendRollback() error { return h.sendCached("ROLLBACK") }

func (h *Handler) sendCached(sql string) error {
	name, hit := h.transactionStatementName(sql)
	h.write(encodeQuerySequence(name, sql, hit))
	return nil
}

func (h *Handler) SendQuery(req *session.Request) error {
	h.write(encodeQuerySequence("", req.SQL, false))
	return nil
}

func (h *Handler) SendTerminate() error {
	h.write(encodeTerminate())
	return nil
}

func (h *Handler) write(packet []byte) {
	buf := transport.AcquireWriteBuffer()
	buf.B = append(buf.B, packet...)
	h.conn.Send(buf)
}

// --- dispatch ---

func (h *Handler) dispatch(msg any) {
	switch m := msg.(type) {
	case *Authentication:
		h.handleAuth(m)
	case *Key:
		h.processID, h.secretKey = m.ProcessID, m.SecretKey
	case *ParameterStatus:
		h.sess.ServerParameters[m.Name] = m.Value
	case *RowDescription:
		h.handleRowDescription(m)
	case *DataRow:
		h.handleDataRow(m)
	case *CommandComplete:
		h.handleCommandComplete(m)
	case *ErrorResponse:
		h.handleError(m)
	case *ReadyForQuery:
		h.handleReadyForQuery(m)
	case *ParseComplete, *BindComplete, *NoData, *EmptyQueryResponse:
		// Acknowledgements with no session-visible effect.
	}
}

func (h *Handler) handleAuth(m *Authentication) {
	switch m.Kind {
	case AuthOk:
		// Nothing to send; wait for ReadyForQuery.
	case AuthMD5Password:
		h.write(encodePassword(hashMD5Password(h.password, h.user, m.Salt)))
	case AuthUnsupported:
		h.onError(adbcj.NewProtocolError("postgres: unsupported authentication method"))
	}
}

func (h *Handler) handleRowDescription(m *RowDescription) {
	req := h.sess.ActiveRequest()
	h.fields = h.fields[:0]
	if req != nil {
		req.InvokeStartFields()
	}
	for _, fd := range m.Fields {
		f := fd.ToField(len(h.fields))
		h.fields = append(h.fields, f)
		if req != nil {
			req.InvokeField(f)
		}
	}
	if req != nil {
		req.InvokeEndFields()
		req.InvokeStartResults()
	}
}

func (h *Handler) handleDataRow(m *DataRow) {
	req := h.sess.ActiveRequest()
	if req == nil {
		return
	}
	req.InvokeStartRow()
	for i, raw := range m.Values {
		f := h.fields[i]
		req.InvokeValue(adbcj.Value{Field: &f, Data: decodeTextValue(f.Type, raw)})
	}
	req.InvokeEndRow()
}

func (h *Handler) handleCommandComplete(m *CommandComplete) {
	req := h.sess.ActiveRequest()
	if req == nil {
		return
	}
	switch m.Command {
	case "SELECT":
		req.InvokeEndResults()
		h.sess.Complete(req, req.Accumulator())
	case "BEGIN", "COMMIT", "ROLLBACK":
		h.sess.Complete(req, nil)
	default:
		h.sess.Complete(req, &adbcj.Result{RowsAffected: m.Rows})
	}
}

func (h *Handler) handleError(m *ErrorResponse) {
	err := adbcj.NewServerError(m.Code, m.Code, m.Message)
	if !h.connectFut.IsDone() {
		_ = h.connectFut.SetException(err)
		return
	}
	req := h.sess.ActiveRequest()
	if req == nil {
		return
	}
	h.sess.Fail(req, err)
}

// handleReadyForQuery settles the connect future the first time it arrives
// (the startup/auth round-trip is complete, spec §4.4 "READY_FOR_QUERY").
// Once connected, ReadyForQuery always follows the Sync that closed the
// current extended-query pipeline; the active request was already settled
// by CommandComplete or ErrorResponse, and that settle already promoted
// the next one, so there's nothing further to do on the IDLE/TRANSACTION
// happy path. The two remaining cases in spec §4.4 — status=TRANSACTION
// with no active transaction on the session, or status=ERROR — mean the
// backend and this session's bookkeeping have diverged, matching
// PgIoHandler.doReadyForQuery (original_source): raise rather than
// silently continue.
func (h *Handler) handleReadyForQuery(m *ReadyForQuery) {
	if !h.connectFut.IsDone() {
		_ = h.connectFut.SetResult(h.sess)
		return
	}

	switch {
	case m.Status == TxFailedBlock:
		h.onError(adbcj.NewProtocolError("postgres: server reported a failed transaction block"))
	case m.Status == TxInBlock && !h.sess.IsInTransaction():
		h.onError(adbcj.NewProtocolError("postgres: server reports an open transaction the session does not"))
	}
}

func decodeTextValue(t adbcj.Type, raw []byte) any {
	if raw == nil {
		return nil
	}
	switch t {
	case adbcj.SmallInteger, adbcj.Integer, adbcj.BigInteger:
		v, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return string(raw)
		}
		return v
	case adbcj.Boolean:
		return len(raw) == 1 && raw[0] == 't'
	default:
		return string(raw)
	}
}
