package session

import (
	"sync"

	"github.com/adbcj-go/adbcj"
	"github.com/adbcj-go/adbcj/future"
)

// Kind is the closed request-variant sum type of spec §9's redesign flag,
// replacing the original source's per-variant Request subclasses.
type Kind int

const (
	KindQuery Kind = iota
	KindUpdate
	KindBegin
	KindCommit
	KindRollback
	KindClose
)

// erasedHandler type-erases adbcj.ResultEventHandler[T] so the session
// core can drive it without being generic over every accumulator type a
// query might use. Built once per request by adaptHandler.
type erasedHandler struct {
	startFields  func(acc any)
	field        func(f adbcj.Field, acc any)
	endFields    func(acc any)
	startResults func(acc any)
	startRow     func(acc any)
	value        func(v adbcj.Value, acc any)
	endRow       func(acc any)
	endResults   func(acc any)
	exception    func(err error, acc any)
}

// adaptHandler wraps a typed ResultEventHandler so it can be invoked
// against an any-typed accumulator. The accumulator is always actually of
// type T; the type assertion cannot fail when used through ExecuteQuery.
func adaptHandler[T any](h *adbcj.ResultEventHandler[T]) *erasedHandler {
	return &erasedHandler{
		startFields:  func(acc any) { h.StartFields(acc.(T)) },
		field:        func(f adbcj.Field, acc any) { h.Field(f, acc.(T)) },
		endFields:    func(acc any) { h.EndFields(acc.(T)) },
		startResults: func(acc any) { h.StartResults(acc.(T)) },
		startRow:     func(acc any) { h.StartRow(acc.(T)) },
		value:        func(v adbcj.Value, acc any) { h.Value(v, acc.(T)) },
		endRow:       func(acc any) { h.EndRow(acc.(T)) },
		endResults:   func(acc any) { h.EndResults(acc.(T)) },
		exception:    func(err error, acc any) { h.Exception(err, acc.(T)) },
	}
}

// Request is a future combined with a side-effect thunk (spec §3). The
// accumulator/event-handler pair populate query results as rows stream
// in; executed/cancelled are guarded by the request's own mutex so the
// I/O goroutine and a user-thread Cancel never race on double-execution
// (spec §5).
type Request struct {
	Kind Kind
	SQL  string

	fut         *future.DbFuture[any]
	handler     *erasedHandler
	accumulator any

	payload     any // field descriptors stashed between protocol messages
	transaction *Transaction

	pipelinable bool
	removable   bool

	executeFn func(*Request) error

	mu        sync.Mutex
	executed  bool
	cancelled bool
}

// newRequest builds a Request with a future that cannot yet be cancelled.
// The owning Session binds the real CancelFunc immediately afterward, via
// Session.bindCancel, so that Cancel() on the future a caller holds routes
// back into Session.cancelRequest's queue-removal/promotion logic instead
// of just flipping a flag nobody else observes.
func newRequest(kind Kind, pipelinable, removable bool, executeFn func(*Request) error) *Request {
	return &Request{
		Kind:        kind,
		pipelinable: pipelinable,
		removable:   removable,
		executeFn:   executeFn,
		fut:         future.New[any](nil),
	}
}

// Future returns the request's underlying future.
func (r *Request) Future() *future.DbFuture[any] { return r.fut }

// IsPipelinable reports whether this request may be executed before its
// predecessor's response arrives.
func (r *Request) IsPipelinable() bool { return r.pipelinable }

// IsRemovable reports whether a cancelled instance of this request may be
// removed from the queue (false for ROLLBACK, COMMIT and the immediate-close
// request).
func (r *Request) IsRemovable() bool { return r.removable }

// Payload returns the value attached via SetPayload (used to carry field
// descriptors between protocol messages, spec §3).
func (r *Request) Payload() any { return r.payload }

// SetPayload attaches a value to the request.
func (r *Request) SetPayload(p any) { r.payload = p }

// Accumulator returns the request's result accumulator.
func (r *Request) Accumulator() any { return r.accumulator }

// Handler returns the request's type-erased event handler, or nil for
// non-query requests.
func (r *Request) Handler() *erasedHandler { return r.handler }

// Transaction returns the transaction this request is a member of, or nil.
func (r *Request) Transaction() *Transaction { return r.transaction }

// The Invoke* methods drive r's type-erased event handler (spec §4.2
// "Streaming results"). They are how mysql/handler.go and
// postgres/handler.go — which live outside this package and so cannot see
// erasedHandler's unexported fields — feed decoded protocol messages into
// a query's accumulator. Each is a no-op if r has no handler (e.g. an
// ExecuteUpdate request, or Begin/Commit/Rollback/Close).

func (r *Request) InvokeStartFields() {
	if r.handler != nil {
		r.handler.startFields(r.accumulator)
	}
}

func (r *Request) InvokeField(f adbcj.Field) {
	if r.handler != nil {
		r.handler.field(f, r.accumulator)
	}
}

func (r *Request) InvokeEndFields() {
	if r.handler != nil {
		r.handler.endFields(r.accumulator)
	}
}

func (r *Request) InvokeStartResults() {
	if r.handler != nil {
		r.handler.startResults(r.accumulator)
	}
}

func (r *Request) InvokeStartRow() {
	if r.handler != nil {
		r.handler.startRow(r.accumulator)
	}
}

func (r *Request) InvokeValue(v adbcj.Value) {
	if r.handler != nil {
		r.handler.value(v, r.accumulator)
	}
}

func (r *Request) InvokeEndRow() {
	if r.handler != nil {
		r.handler.endRow(r.accumulator)
	}
}

func (r *Request) InvokeEndResults() {
	if r.handler != nil {
		r.handler.endResults(r.accumulator)
	}
}

// markExecuted mirrors Request.invokeExecute in the original source: if
// already executed, or cancelled and removable, it's a no-op signalling the
// caller to check for promotion; otherwise it flips executed and runs
// executeFn. A cancelled non-removable request (COMMIT) still runs
// executeFn, which is how a cancelled commit degrades to ROLLBACK.
func (r *Request) markExecuted() (alreadyHandled bool, err error) {
	r.mu.Lock()
	if r.executed || (r.cancelled && r.removable) {
		r.mu.Unlock()
		return true, nil
	}
	r.executed = true
	r.mu.Unlock()
	return false, r.executeFn(r)
}

// tryCancel attempts to mark the request cancelled. Returns false if it
// has already been handed to the wire (cannot cancel an in-flight
// round-trip, spec §4.2).
func (r *Request) tryCancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.executed {
		return false
	}
	r.cancelled = true
	return true
}

func (r *Request) isExecuted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executed
}

// IsCancelled reports whether the request has been marked cancelled.
// CommitRequest's execute thunk uses this to decide whether to degrade to
// ROLLBACK (spec §4.2 "Commit").
func (r *Request) IsCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Transaction groups requests enqueued while a transaction is active
// (spec §3). Its member list has its own lock, independent of the
// session's lock, per spec §5.
type Transaction struct {
	mu             sync.Mutex
	beginScheduled bool
	started        bool
	canceled       bool
	members        []*Request
}

func (t *Transaction) isBeginScheduled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.beginScheduled
}

func (t *Transaction) setBeginScheduled(v bool) {
	t.mu.Lock()
	t.beginScheduled = v
	t.mu.Unlock()
}

func (t *Transaction) isStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *Transaction) setStarted(v bool) {
	t.mu.Lock()
	t.started = v
	t.mu.Unlock()
}

func (t *Transaction) isCanceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

func (t *Transaction) addMember(r *Request) {
	t.mu.Lock()
	r.transaction = t
	t.members = append(t.members, r)
	t.mu.Unlock()
}

// cancelMembers marks the transaction canceled and cancels every member
// request that hasn't settled yet. The caller is responsible for actually
// promoting the session's queue afterward.
func (t *Transaction) cancelMembers(s *Session) {
	t.mu.Lock()
	t.canceled = true
	members := append([]*Request(nil), t.members...)
	t.mu.Unlock()

	for _, m := range members {
		s.cancelRequest(m, false)
	}
}
