package session

import (
	"sync"

	"github.com/adbcj-go/adbcj/future"
	"github.com/adbcj-go/adbcj/internal/metrics"
)

// requestPool is a per-process arena for *Request objects (spec §9 "Arenas
// for requests?" — resolved yes). Slots are reused once a request's
// listener fan-out has completed and nothing can reach it through the
// queue anymore, mirroring carlolib/contextpool.go's acquire/release over
// sync.Pool. One pool is shared across sessions, same as the teacher
// shares its pools package-wide rather than per-connection.
type requestPool struct {
	sp sync.Pool
}

var defaultRequestPool = &requestPool{}

func (p *requestPool) acquire(kind Kind, pipelinable, removable bool, executeFn func(*Request) error) *Request {
	v := p.sp.Get()
	if v == nil {
		metrics.RequestPoolAcquires.WithLabelValues("new").Inc()
		r := newRequest(kind, pipelinable, removable, executeFn)
		return r
	}
	metrics.RequestPoolAcquires.WithLabelValues("reuse").Inc()
	r := v.(*Request)
	r.Kind = kind
	r.SQL = ""
	r.pipelinable = pipelinable
	r.removable = removable
	r.executeFn = executeFn
	r.payload = nil
	r.transaction = nil
	r.handler = nil
	r.accumulator = nil
	r.executed = false
	r.cancelled = false
	r.fut = future.New[any](nil)
	return r
}

// release returns r to the pool. Only called once every listener on r's
// future has fired, so nothing still holds a reference to it.
func (p *requestPool) release(r *Request) {
	p.sp.Put(r)
	metrics.RequestPoolReleases.Inc()
}
