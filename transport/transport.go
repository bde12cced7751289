// Package transport implements the byte-transport abstraction of spec §2
// item 1: a non-blocking-from-the-caller's-perspective socket wrapper that
// delivers sessionOpened/messageReceived/sessionClosed/exceptionCaught
// events to a Handler on a single per-connection goroutine, and accepts
// outbound buffers from any goroutine. Grounded on carlolib/conn.go's
// Conn (writer-queue + condvar) and carlolib/net.go's Handler/HandShaker
// interface shapes, generalized from carlo's length-prefixed RPC framing
// to raw byte delivery: MySQL and PostgreSQL each frame differently, so
// framing is the decoder's job (mysql/postgres packages), not the
// transport's.
package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jpillora/backoff"
	"github.com/valyala/bytebufferpool"

	"github.com/adbcj-go/adbcj"
)

// Handler receives the connection's lifecycle events. All four methods are
// invoked from the same goroutine (the connection's read loop), so a
// Handler implementation needs no internal synchronization against
// itself — this is the "single cooperative I/O execution context" of spec
// §5.
type Handler interface {
	// SessionOpened fires once, after the TCP connection is established
	// and before the first MessageReceived.
	SessionOpened(c *Conn)
	// MessageReceived delivers a chunk of inbound bytes exactly as read
	// from the socket. The handler (via its protocol decoder) is
	// responsible for buffering partial frames across calls.
	MessageReceived(c *Conn, data []byte)
	// SessionClosed fires once, when the read loop exits for any reason
	// (peer close, write error, explicit Close).
	SessionClosed(c *Conn)
	// ExceptionCaught reports a transport-level error (read/write
	// failure). SessionClosed still follows.
	ExceptionCaught(c *Conn, err error)
}

// Conn wraps one TCP connection to a database server. Field shape mirrors
// carlolib/conn.go's Conn: a handler, a mutex+cond-guarded outbound write
// queue, and read/write timeouts, generalized to carry an hclog.Logger
// (ambient stack) instead of nothing.
type Conn struct {
	handler Handler
	log     hclog.Logger

	nc net.Conn
	br *bufio.Reader

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu          sync.Mutex
	writerCond  *sync.Cond
	writerQueue []*bytebufferpool.ByteBuffer
	writerDone  bool

	closeOnce sync.Once
	closedCh  chan struct{}
}

// DialOptions configures Dial.
type DialOptions struct {
	Log          hclog.Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration

	// RetryMin/RetryMax/RetryAttempts bound the initial dial's backoff
	// retry (SPEC_FULL.md domain stack: jpillora/backoff wired to
	// ConnectionManager.Connect, initial dial only — never session
	// failover/reconnect, which stays a non-goal per spec §1).
	RetryMin      time.Duration
	RetryMax      time.Duration
	RetryAttempts int
}

// Dial opens a TCP connection to addr, retrying the dial itself (not the
// session) up to opts.RetryAttempts times with exponential backoff, and
// starts the read loop delivering events to handler.
func Dial(ctx context.Context, addr string, handler Handler, opts DialOptions) (*Conn, error) {
	if opts.Log == nil {
		opts.Log = hclog.NewNullLogger()
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}
	attempts := opts.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	b := &backoff.Backoff{
		Min:    orDefault(opts.RetryMin, 50*time.Millisecond),
		Max:    orDefault(opts.RetryMax, 2*time.Second),
		Jitter: true,
	}

	var nc net.Conn
	var err error
	d := net.Dialer{Timeout: dialTimeout}
	for i := 0; i < attempts; i++ {
		nc, err = d.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	if err != nil {
		return nil, adbcj.WrapTransport(err, "dial %s", addr)
	}

	return NewConn(nc, handler, opts), nil
}

// NewConn wraps an already-established net.Conn, starting the same
// write/read loops Dial does. Split out of Dial so tests can drive a
// Handler against an in-memory net.Pipe() connection instead of a real
// socket, without duplicating the loop wiring.
func NewConn(nc net.Conn, handler Handler, opts DialOptions) *Conn {
	if opts.Log == nil {
		opts.Log = hclog.NewNullLogger()
	}
	c := &Conn{
		handler:      handler,
		log:          opts.Log.Named("transport"),
		nc:           nc,
		br:           bufio.NewReader(nc),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		closedCh:     make(chan struct{}),
	}
	c.writerCond = sync.NewCond(&c.mu)

	go c.writeLoop()
	go c.readLoop()
	return c
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// Send enqueues buf for writing and returns immediately; the connection
// owns buf afterward and returns it to the pool once written (writepool.go).
func (c *Conn) Send(buf *bytebufferpool.ByteBuffer) {
	c.mu.Lock()
	if c.writerDone {
		c.mu.Unlock()
		releaseWriteBuffer(buf)
		return
	}
	c.writerQueue = append(c.writerQueue, buf)
	c.mu.Unlock()
	c.writerCond.Signal()
}

func (c *Conn) writeLoop() {
	for {
		c.mu.Lock()
		for len(c.writerQueue) == 0 && !c.writerDone {
			c.writerCond.Wait()
		}
		if c.writerDone && len(c.writerQueue) == 0 {
			c.mu.Unlock()
			return
		}
		queue := c.writerQueue
		c.writerQueue = nil
		c.mu.Unlock()

		for _, buf := range queue {
			if c.writeTimeout > 0 {
				_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			_, err := c.nc.Write(buf.B)
			releaseWriteBuffer(buf)
			if err != nil {
				c.handler.ExceptionCaught(c, adbcj.WrapTransport(err, "write"))
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) readLoop() {
	c.handler.SessionOpened(c)
	buf := make([]byte, 32*1024)
	for {
		if c.readTimeout > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		n, err := c.br.Read(buf)
		if n > 0 {
			// Copy: the decoder may retain data across MessageReceived
			// calls (partial frames), and buf is reused next iteration.
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.handler.MessageReceived(c, chunk)
		}
		if err != nil {
			c.handler.ExceptionCaught(c, adbcj.WrapTransport(err, "read"))
			break
		}
	}
	c.Close()
	c.handler.SessionClosed(c)
}

// Close tears down the connection. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.writerDone = true
		c.mu.Unlock()
		c.writerCond.Broadcast()
		close(c.closedCh)
		err = c.nc.Close()
	})
	return err
}

// Closed reports whether Close has run.
func (c *Conn) Closed() <-chan struct{} { return c.closedCh }

// RemoteAddr returns the peer address, for logging.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }
