// Package session implements the per-session request pipeline: the
// transactional, pipelinable, cancellable queue of outstanding operations
// on top of a single network session (spec §4.2). It is protocol-neutral,
// parameterized by the ProtocolOps capability set a MySQL or PostgreSQL
// handler supplies.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/adbcj-go/adbcj"
	"github.com/adbcj-go/adbcj/future"
	"github.com/adbcj-go/adbcj/internal/metrics"
)

// Session is the unit that owns one transport connection and all
// per-connection state (spec §3): request queue, active request,
// transaction, pipelining flag, and the deferred close slot.
type Session struct {
	ID uuid.UUID

	ops ProtocolOps
	log hclog.Logger

	// ServerParameters records backend PARAMETER_STATUS values
	// (SPEC_FULL.md supplemented feature 4).
	ServerParameters map[string]string

	mu               sync.Mutex
	queue            []*Request
	activeRequest    *Request
	transaction      *Transaction
	pipeliningEnabled bool
	pipelining       bool
	closeRequest     *Request
	transportClosing bool
}

// New constructs a Session over ops. Spec §4.2's pipelining-enabled flag
// starts on (matching the original source); SetPipeliningEnabled changes it.
func New(ops ProtocolOps, log hclog.Logger) *Session {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Session{
		ID:                uuid.New(),
		ops:               ops,
		log:               log.Named("session"),
		ServerParameters:  make(map[string]string),
		pipeliningEnabled: true,
	}
}

// SetPipeliningEnabled toggles pipelining. Disabling it also clears the
// in-progress pipelining flag immediately (spec §4.2).
func (s *Session) SetPipeliningEnabled(enabled bool) {
	s.mu.Lock()
	s.pipeliningEnabled = enabled
	if !enabled {
		s.pipelining = false
	}
	s.mu.Unlock()
}

// IsPipeliningEnabled reports the current pipelining-enabled setting.
func (s *Session) IsPipeliningEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeliningEnabled
}

// IsInTransaction reports whether a transaction is currently active.
func (s *Session) IsInTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transaction != nil
}

// IsClosed is true whenever closeRequest is non-nil or the transport has
// reported itself closing (spec §4.2).
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeRequest != nil || s.transportClosing
}

// NotifyTransportClosing is called by the transport layer's sessionClosed
// callback.
func (s *Session) NotifyTransportClosing() {
	s.mu.Lock()
	s.transportClosing = true
	s.mu.Unlock()
}

func (s *Session) checkClosed() error {
	if s.IsClosed() {
		return adbcj.ErrSessionClosed
	}
	return nil
}

// ExecuteQuery enqueues a SELECT-shaped request driven by handler against
// accumulator (spec §4.2). If handler is nil, adbcj.DefaultResultSetHandler
// is used and accumulator should be a *adbcj.ResultSet.
func ExecuteQuery[T any](s *Session, sql string, handler *adbcj.ResultEventHandler[T], accumulator T) (*future.DbSessionFuture[any, *Session], error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if handler == nil {
		if h, ok := any(adbcj.DefaultResultSetHandler()).(*adbcj.ResultEventHandler[T]); ok {
			handler = h
		}
	}
	req := defaultRequestPool.acquire(KindQuery, true, true, func(r *Request) error {
		return s.ops.SendQuery(r)
	})
	req.SQL = sql
	req.handler = adaptHandler(handler)
	req.accumulator = accumulator
	s.finishRelease(req)
	s.bindCancel(req)

	sf := future.NewSession[any](req.fut, s)
	if s.enqueueTransactional(req) {
		return sf, nil
	}
	s.enqueueRequest(req)
	return sf, nil
}

// ExecuteUpdate enqueues an INSERT/UPDATE/DELETE-shaped request (spec
// §4.2).
func (s *Session) ExecuteUpdate(sql string) (*future.DbSessionFuture[any, *Session], error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	req := defaultRequestPool.acquire(KindUpdate, true, true, func(r *Request) error {
		return s.ops.SendQuery(r)
	})
	req.SQL = sql
	s.finishRelease(req)
	s.bindCancel(req)

	sf := future.NewSession[any](req.fut, s)
	if s.enqueueTransactional(req) {
		return sf, nil
	}
	s.enqueueRequest(req)
	return sf, nil
}

// finishRelease arranges for req to be returned to the arena once its
// future settles and every listener has fired (spec §9 "Arenas for
// requests?").
func (s *Session) finishRelease(req *Request) {
	req.fut.AddListener(func(value any, err error) {
		defaultRequestPool.release(req)
	})
}

// bindCancel wires req's future so that a caller invoking Cancel on it
// routes into Session.cancelRequest (queue removal, promotion, and the
// request-kind/executed-state legality check) rather than settling the
// future directly. Must be called once per request, before the future is
// handed to a caller.
func (s *Session) bindCancel(req *Request) {
	req.fut.SetCancelFunc(func(mayInterrupt bool) bool {
		return s.cancelRequest(req, mayInterrupt)
	})
}

// BeginTransaction starts a new transaction. Programmer error (calling
// this while already in a transaction) surfaces synchronously, per spec
// §7.
func (s *Session) BeginTransaction() error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transaction != nil {
		return adbcj.ErrTransactionFailed
	}
	s.transaction = &Transaction{}
	return nil
}

// Commit commits the active transaction (spec §4.2). If BEGIN was never
// actually scheduled, it completes immediately with no server round-trip.
func (s *Session) Commit() (*future.DbSessionFuture[any, *Session], error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	txn := s.transaction
	if txn == nil {
		s.mu.Unlock()
		return nil, adbcj.ErrTransactionFailed
	}
	if !txn.isBeginScheduled() {
		s.transaction = nil
		s.mu.Unlock()
		return future.NewSession[any](future.Completed[any](nil), s), nil
	}
	s.transaction = nil
	s.mu.Unlock()

	req := defaultRequestPool.acquire(KindCommit, false, false, func(r *Request) error {
		// txn.isCanceled() covers a sibling that already failed before
		// Commit was even called; r.IsCancelled() covers one that fails
		// after Commit enqueued but before this request executes (spec
		// §4.2 "Commit" — degrades a cancelled commit to ROLLBACK).
		if txn.isCanceled() || r.IsCancelled() {
			if txn.isStarted() {
				return s.ops.SendRollback()
			}
			return nil
		}
		return s.ops.SendCommit()
	})
	s.finishRelease(req)
	s.bindCancel(req)
	txn.addMember(req)
	sf := future.NewSession[any](req.fut, s)
	s.enqueueRequest(req)
	return sf, nil
}

// Rollback rolls back the active transaction (spec §4.2), cancelling all
// pending members first.
func (s *Session) Rollback() (*future.DbSessionFuture[any, *Session], error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	txn := s.transaction
	if txn == nil {
		s.mu.Unlock()
		return nil, adbcj.ErrTransactionFailed
	}
	if !txn.isBeginScheduled() {
		s.transaction = nil
		s.mu.Unlock()
		return future.NewSession[any](future.Completed[any](nil), s), nil
	}
	s.transaction = nil
	s.mu.Unlock()

	txn.cancelMembers(s)

	req := defaultRequestPool.acquire(KindRollback, false, false, func(r *Request) error {
		return s.ops.SendRollback()
	})
	s.finishRelease(req)
	s.bindCancel(req)
	txn.addMember(req)
	sf := future.NewSession[any](req.fut, s)
	s.enqueueRequest(req)
	return sf, nil
}

// enqueueTransactional implements spec §4.2 "Transactional enqueue". It
// returns true if the request was already (immediately) settled because
// the transaction is cancelled, in which case the caller must not also
// call enqueueRequest.
func (s *Session) enqueueTransactional(req *Request) bool {
	s.mu.Lock()
	txn := s.transaction
	if txn == nil {
		s.mu.Unlock()
		return false
	}
	if txn.isCanceled() {
		s.mu.Unlock()
		_ = req.fut.SetException(adbcj.ErrTransactionFailed)
		return true
	}
	var beginReq *Request
	if !txn.isBeginScheduled() {
		txn.setBeginScheduled(true)
		beginReq = defaultRequestPool.acquire(KindBegin, false, true, func(r *Request) error {
			txn.setStarted(true)
			return s.ops.SendBegin()
		})
		s.finishRelease(beginReq)
		s.bindCancel(beginReq)
	}
	s.mu.Unlock()

	if beginReq != nil {
		txn.addMember(beginReq)
		s.enqueueRequest(beginReq)
	}
	txn.addMember(req)
	return false
}

// enqueueRequest is the enqueue algorithm of spec §4.2.
func (s *Session) enqueueRequest(req *Request) {
	s.mu.Lock()
	if req.IsPipelinable() {
		if s.pipelining {
			s.mu.Unlock()
			s.invokeExecuteWithCatch(req)
			if req.fut.IsDone() {
				return
			}
			s.mu.Lock()
		}
	} else {
		s.pipelining = false
	}
	s.queue = append(s.queue, req)
	becomeActive := s.activeRequest == nil
	s.mu.Unlock()

	if becomeActive {
		s.makeNextRequestActive()
	}
}

// makeNextRequestActive implements spec §4.2 "Promotion on completion".
func (s *Session) makeNextRequestActive() *Request {
	s.mu.Lock()
	var next *Request
	if len(s.queue) > 0 {
		next = s.queue[0]
		s.queue = s.queue[1:]
	}

	executePipelining := false
	if s.pipeliningEnabled && next != nil {
		if next.IsPipelinable() {
			executePipelining = !s.pipelining
		} else {
			s.pipelining = false
		}
	}
	s.activeRequest = next
	s.mu.Unlock()

	// RequestsInFlight is a single process-wide gauge shared across every
	// session, so promotion only ever increments it; the corresponding Dec
	// lives at each of the three places a request settles (complete, error,
	// cancel), not here.
	if next != nil {
		metrics.RequestsInFlight.Inc()
	}

	if next != nil {
		s.invokeExecuteWithCatch(next)
	}

	if executePipelining {
		s.walkPipelinablePrefix()
	}
	return next
}

// walkPipelinablePrefix walks forward through the queue executing every
// pipelinable predecessor's thunk in order until a non-pipelinable request
// or the end is found; if the end is reached, pipelining mode is enabled
// for subsequent arrivals (spec §4.2).
func (s *Session) walkPipelinablePrefix() {
	depth := 0
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.pipelining = true
			s.mu.Unlock()
			metrics.PipeliningDepth.Observe(float64(depth))
			return
		}
		next := s.queue[0]
		if !next.IsPipelinable() {
			s.mu.Unlock()
			metrics.PipeliningDepth.Observe(float64(depth))
			return
		}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.invokeExecuteWithCatch(next)
		depth++
	}
}

// invokeExecuteWithCatch runs req's executeFn unless it was cancelled out
// from under us between being queued and being handed its execution turn.
// That race is only possible for a request becoming active via
// makeNextRequestActive (pipelined requests are executed synchronously by
// their own enqueue/walk call, with no window for a concurrent cancel), so
// the gauge Inc that promotion already did is paired with a Dec here.
func (s *Session) invokeExecuteWithCatch(req *Request) {
	alreadyHandled, err := req.markExecuted()
	if alreadyHandled {
		if req.fut.IsDone() && s.isActive(req) {
			metrics.RequestsInFlight.Dec()
			s.makeNextRequestActive()
		}
		return
	}
	if err != nil {
		s.failRequest(req, err)
	}
}

// ActiveRequest returns the request currently awaiting its protocol
// response, or nil. Used by protocol handlers (mysql, postgres) to route
// decoded messages to the right request without the session exposing its
// whole queue.
func (s *Session) ActiveRequest() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRequest
}

// Complete is the exported entry point protocol handlers use to settle
// the active request with a successful result.
func (s *Session) Complete(req *Request, result any) { s.completeRequest(req, result) }

// Fail is the exported entry point protocol handlers use to settle the
// active request with an error.
func (s *Session) Fail(req *Request, err error) { s.failRequest(req, err) }

// ErrorAllPending is the exported entry point for a transport-level
// failure (lost socket, unexpected EOF): it settles every outstanding
// request on the session with err (spec §7 propagation policy: "if
// neither [active request nor connect-future], the transport is torn
// down and the manager is notified").
func (s *Session) ErrorAllPending(err error) error {
	s.NotifyTransportClosing()
	return s.errorPendingRequests(err)
}

func (s *Session) isActive(req *Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRequest == req
}

// completeRequest settles req with result and, if it was the active
// request, promotes the next one (spec §4.2 Request.complete).
func (s *Session) completeRequest(req *Request, result any) {
	_ = req.fut.SetResult(result)
	if s.isActive(req) {
		metrics.RequestsInFlight.Dec()
		s.makeNextRequestActive()
	}
}

// failRequest settles req with err, cancels its transaction's other
// members, and, if active, promotes the next request (spec §4.2
// Request.error).
func (s *Session) failRequest(req *Request, err error) {
	_ = req.fut.SetException(err)
	if req.transaction != nil {
		req.transaction.cancelMembers(s)
	}
	if s.isActive(req) {
		metrics.RequestsInFlight.Dec()
		s.makeNextRequestActive()
	}
}

// cancelRequest is the future CancelFunc bound to every request (via
// bindCancel): it decides whether cancellation is legal and performs the
// session-side effects, but does not settle the future itself — the
// caller is always future.DbFuture.Cancel, which settles the future to
// cancelled only after this returns true (spec §4.2 Cancellation).
//
// ROLLBACK refuses cancellation outright. Otherwise, if the request has
// already been handed to the wire, tryCancel fails and so does this.
// Removable requests still sitting in the queue (or currently active) are
// pulled out and, if they were active, the next request is promoted.
func (s *Session) cancelRequest(req *Request, mayInterrupt bool) bool {
	if req.Kind == KindRollback {
		return false
	}
	if !req.tryCancel() {
		return false
	}
	if !req.IsRemovable() {
		return true
	}

	s.mu.Lock()
	for i, r := range s.queue {
		if r == req {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	wasActive := s.activeRequest == req
	if wasActive {
		s.activeRequest = nil
	}
	s.mu.Unlock()

	if wasActive {
		metrics.RequestsInFlight.Dec()
		s.makeNextRequestActive()
	}
	return true
}

// errorPendingRequests settles the active request (if unsettled) with err
// and best-effort settles every queued request, aggregating any settle
// failures with go-multierror instead of silently swallowing them (spec
// §4.2, ambient stack per SPEC_FULL.md).
func (s *Session) errorPendingRequests(err error) error {
	s.mu.Lock()
	active := s.activeRequest
	queued := append([]*Request(nil), s.queue...)
	s.mu.Unlock()

	var result *multierror.Error
	if active != nil && !active.fut.IsDone() {
		if serr := active.fut.SetException(err); serr != nil {
			result = multierror.Append(result, serr)
		}
	}
	for _, r := range queued {
		if r.fut.IsDone() {
			continue
		}
		if serr := r.fut.SetException(err); serr != nil {
			result = multierror.Append(result, serr)
		}
	}
	s.log.Debug("errored out pending requests", "error", err)
	return result.ErrorOrNil()
}

// Close implements spec §4.2's immediate/deferred close semantics.
func (s *Session) Close(immediate bool) (*future.DbSessionFuture[any, *Session], error) {
	s.mu.Lock()
	if s.closeRequest != nil {
		existing := s.closeRequest
		s.mu.Unlock()
		return future.NewSession[any](existing.fut, s), nil
	}
	s.mu.Unlock()

	if immediate {
		s.cancelAllPending()
		req := defaultRequestPool.acquire(KindClose, false, false, func(r *Request) error {
			return s.ops.SendTerminate()
		})
		s.finishRelease(req)

		s.mu.Lock()
		s.closeRequest = req
		s.mu.Unlock()

		_ = s.ops.SendTerminate()
		_ = req.fut.SetResult(nil)
		return future.NewSession[any](req.fut, s), nil
	}

	// Deferred close is just a request like any other: pipelinable=false
	// (it must drain everything ahead of it), removable=true (cancelling it
	// before it executes "uncloses" the session, spec §4.2 Close). Its
	// executeFn settles its own future on success since SendTerminate has
	// no response to wait for.
	req := defaultRequestPool.acquire(KindClose, false, true, func(r *Request) error {
		if err := s.ops.SendTerminate(); err != nil {
			return err
		}
		s.completeRequest(r, nil)
		return nil
	})
	s.finishRelease(req)
	s.bindCancel(req)
	req.fut.AddListener(func(value any, err error) {
		if err == nil {
			return
		}
		// Cancelled before executing: "unclose" the session.
		s.mu.Lock()
		if s.closeRequest == req {
			s.closeRequest = nil
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.closeRequest = req
	s.mu.Unlock()

	sf := future.NewSession[any](req.fut, s)
	s.enqueueRequest(req)
	return sf, nil
}

// cancelAllPending is immediate close's best-effort sweep: every queued and
// the active request are cancelled through their futures, so cancelRequest
// runs as the bound CancelFunc and the settle path (listeners, arena
// release) fires exactly as it would for a caller-initiated cancel.
func (s *Session) cancelAllPending() {
	s.mu.Lock()
	queued := append([]*Request(nil), s.queue...)
	active := s.activeRequest
	s.mu.Unlock()
	for _, r := range queued {
		r.fut.Cancel(true)
	}
	if active != nil {
		active.fut.Cancel(true)
	}
}
