package mysql

import (
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/adbcj-go/adbcj"
	"github.com/adbcj-go/adbcj/future"
	"github.com/adbcj-go/adbcj/session"
	"github.com/adbcj-go/adbcj/transport"
)

// Handler is the MySQL protocol handler (spec §4.3): it implements
// transport.Handler to receive raw bytes, runs them through Decoder, and
// drives both the connect future and the session's request pipeline. It
// also implements session.ProtocolOps, so Session calls back into it to
// emit frames. Grounded on MysqlConnectionManager's IoHandler
// (original_source) generalized per spec §9's ProtocolOps redesign.
type Handler struct {
	log     hclog.Logger
	conn    *transport.Conn
	decoder *Decoder
	sess    *session.Session

	user, password, database string

	connectFut *future.DbFuture[*session.Session]
	salt       []byte
	charsetID  byte

	fields []adbcj.Field
}

// NewHandler constructs a handler and its owned Session. Call Session() to
// get the session usable once ConnectFuture() settles.
func NewHandler(user, password, database string, log hclog.Logger) *Handler {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	h := &Handler{
		log:        log.Named("mysql"),
		decoder:    NewDecoder(),
		user:       user,
		password:   password,
		database:   database,
		connectFut: future.New[*session.Session](nil),
	}
	h.sess = session.New(h, h.log)
	return h
}

// ConnectFuture settles with the usable session once the handshake and
// login round-trip completes, or with a ServerError/transport error.
func (h *Handler) ConnectFuture() *future.DbFuture[*session.Session] { return h.connectFut }

// Session returns the handler's session immediately (usable once
// ConnectFuture settles; enqueuing before then just queues behind the
// handshake, since SendQuery et al. go through the same Conn.Send).
func (h *Handler) Session() *session.Session { return h.sess }

// --- transport.Handler ---

func (h *Handler) SessionOpened(c *transport.Conn) {
	h.conn = c
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

func (h *Handler) SendBegin() error    { return h.write(encodeQuery("BEGIN")) }
func (h *Handler) SendCommit() error   { return h.write(encodeQuery("COMMIT")) }
func (h *Handler) SendRollback() error { return h.write(encodeQuery("ROLLBACK")) }

func (h *Handler) SendQuery(req *session.Request) error {
	return h.write(encodeQuery(req.SQL))
}

func (h *Handler) SendTerminate() error {
	return h.write(encodeQuit())
}

func (h *Handler) write(packet []byte) error {
	buf := transport.AcquireWriteBuffer()
	buf.B = append(buf.B, packet...)
	h.conn.Send(buf)
	return nil
}

// --- dispatch ---

func (h *Handler) dispatch(msg any) {
	switch m := msg.(type) {
	case *ServerGreeting:
		h.charsetID = m.CharsetID
		h.salt = m.Salt
		_ = h.write(encodeLogin(&LoginRequest{
			Username:  h.user,
			Password:  h.password,
			Database:  h.database,
			Salt:      h.salt,
			CharsetID: h.charsetID,
		}))
	case *OkResponse:
		h.handleOk(m)
	case *ErrorResponse:
		h.handleError(m)
	case *ResultSetResponse:
		h.fields = h.fields[:0]
		req := h.sess.ActiveRequest()
		if req != nil {
			req.InvokeStartFields()
		}
	case *ResultSetFieldResponse:
		req := h.sess.ActiveRequest()
		f := m.ToField(len(h.fields))
		h.fields = append(h.fields, f)
		if req != nil {
			req.InvokeField(f)
		}
	case *EofResponse:
		h.handleEof(m)
	case *ResultSetRowResponse:
		h.handleRow(m)
	}
}

func (h *Handler) handleOk(m *OkResponse) {
	if !h.connectFut.IsDone() {
		_ = h.connectFut.SetResult(h.sess)
		return
	}
	req := h.sess.ActiveRequest()
	if req == nil {
		return
	}
	switch req.Kind {
	case session.KindBegin, session.KindCommit, session.KindRollback, session.KindClose:
		h.sess.Complete(req, nil)
	default:
		h.sess.Complete(req, &adbcj.Result{RowsAffected: int64(m.AffectedRows)})
	}
}

func (h *Handler) handleError(m *ErrorResponse) {
	err := adbcj.NewServerError(strconv.Itoa(int(m.ErrorNumber)), m.SQLState, m.Message)
	if !h.connectFut.IsDone() {
		_ = h.connectFut.SetException(err)
		return
	}
	req := h.sess.ActiveRequest()
	if req == nil {
		return
	}
	if req.Handler() != nil {
		req.InvokeEndResults() // best-effort: accumulator may be partially built
	}
	h.sess.Fail(req, err)
}

func (h *Handler) handleEof(m *EofResponse) {
	req := h.sess.ActiveRequest()
	if req == nil {
		return
	}
	switch m.Kind {
	case EofField:
		req.InvokeEndFields()
		req.InvokeStartResults()
	case EofRow:
		req.InvokeEndResults()
		h.sess.Complete(req, req.Accumulator())
	}
}

func (h *Handler) handleRow(m *ResultSetRowResponse) {
	req := h.sess.ActiveRequest()
	if req == nil {
		return
	}
	req.InvokeStartRow()
	for i, v := range m.Values {
		f := h.fields[i]
		req.InvokeValue(adbcj.Value{Field: &f, Data: v})
	}
	req.InvokeEndRow()
}

