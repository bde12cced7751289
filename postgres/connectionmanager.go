package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/adbcj-go/adbcj"
	"github.com/adbcj-go/adbcj/future"
	"github.com/adbcj-go/adbcj/session"
	"github.com/adbcj-go/adbcj/transport"
)

// ConnectionManager opens PostgreSQL sessions and tracks the live ones
// (spec §4.5), mirroring mysql.ConnectionManager's shape.
type ConnectionManager struct {
	addr     string
	user     string
	password string
	database string

	log         hclog.Logger
	dialTimeout time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	closing  bool
	closeFut *future.DbFuture[struct{}]
}

// Option configures a ConnectionManager.
type Option func(*ConnectionManager)

// WithUser sets the login username.
func WithUser(user string) Option { return func(m *ConnectionManager) { m.user = user } }

// WithPassword sets the login password.
func WithPassword(password string) Option {
	return func(m *ConnectionManager) { m.password = password }
}

// WithLogger overrides the manager's logger.
func WithLogger(log hclog.Logger) Option { return func(m *ConnectionManager) { m.log = log } }

// WithDialTimeout bounds the initial TCP dial.
func WithDialTimeout(d time.Duration) Option {
	return func(m *ConnectionManager) { m.dialTimeout = d }
}

// NewConnectionManager builds a manager for the given database, identified
// by an `adbcj:postgresql://host:port/database`-style addr/database pair
// (spec.md §6 URL convention).
func NewConnectionManager(addr, database string, opts ...Option) *ConnectionManager {
	m := &ConnectionManager{
		addr:     addr,
		database: database,
		log:      hclog.NewNullLogger(),
		sessions: make(map[uuid.UUID]*session.Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect dials addr and performs the startup/authentication handshake,
// returning a future that settles with a usable Session.
func (m *ConnectionManager) Connect(ctx context.Context) (*future.DbFuture[*session.Session], error) {
	m.mu.Lock()
	closing := m.closing
	m.mu.Unlock()
	if closing {
		return nil, errors.Wrapf(adbcj.ErrSessionClosed, "postgres: manager is closed")
	}

	h := NewHandler(m.user, m.password, m.database, m.log)

	_, err := transport.Dial(ctx, m.addr, h, transport.DialOptions{
		Log:         m.log,
		DialTimeout: m.dialTimeout,
	})
	if err != nil {
		return nil, adbcj.WrapTransport(err, "postgres: connect to %s", m.addr)
	}

	h.ConnectFuture().AddListener(func(sess *session.Session, err error) {
		if err != nil {
			return
		}
		m.mu.Lock()
		m.sessions[sess.ID] = sess
		m.mu.Unlock()
	})
	return h.ConnectFuture(), nil
}

func (m *ConnectionManager) untrack(sess *session.Session) {
	m.mu.Lock()
	delete(m.sessions, sess.ID)
	m.mu.Unlock()
}

// Close closes the manager (spec.md §4.5: "close(immediate) → DbFuture<Void>").
// immediate=true forces every tracked session closed right away, discarding
// their pending work; immediate=false rejects new Connect calls immediately
// but lets each tracked session drain through its own deferred Close(false),
// finishing whatever is already queued. Either way the returned future
// settles once every session this manager was tracking at the time of the
// call has closed. Calling Close a second time returns the same future.
func (m *ConnectionManager) Close(immediate bool) (*future.DbFuture[struct{}], error) {
	m.mu.Lock()
	if m.closeFut != nil {
		fut := m.closeFut
		m.mu.Unlock()
		return fut, nil
	}
	m.closing = true
	fut := future.New[struct{}](nil)
	m.closeFut = fut
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	if len(sessions) == 0 {
		_ = fut.SetResult(struct{}{})
		return fut, nil
	}

	var wg sync.WaitGroup
	wg.Add(len(sessions))
	for _, s := range sessions {
		s := s
		sessFut, err := s.Close(immediate)
		if err != nil {
			m.log.Warn("closing tracked session", "session", s.ID, "error", err)
			m.untrack(s)
			wg.Done()
			continue
		}
		sessFut.AddListener(func(_ any, err error) {
			if err != nil {
				m.log.Warn("session close settled with error", "session", s.ID, "error", err)
			}
			m.untrack(s)
			wg.Done()
		})
	}

	go func() {
		wg.Wait()
		_ = fut.SetResult(struct{}{})
	}()

	return fut, nil
}

// CloseAll is a synchronous convenience wrapper around Close(true) for
// callers that don't need the settlement future.
func (m *ConnectionManager) CloseAll() {
	fut, err := m.Close(true)
	if err != nil {
		m.log.Warn("closing manager", "error", err)
		return
	}
	_, _ = fut.Get()
}

// Len reports how many sessions this manager currently tracks.
func (m *ConnectionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
