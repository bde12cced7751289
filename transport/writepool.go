package transport

import (
	"github.com/valyala/bytebufferpool"

	"github.com/adbcj-go/adbcj/internal/metrics"
)

// writeBufferPool generalizes carlolib/pendingwritepool.go's
// PendingWritePool: that pool recycled a small pendingWrite struct wrapping
// a payload buffer; here the payload buffer itself (a
// bytebufferpool.ByteBuffer) is the pooled resource, since transport no
// longer needs the wait/err/wg bookkeeping carlo's synchronous
// request/response model required — sending is fire-and-forget from the
// caller's perspective (spec §2 item 1, "accepting outbound buffers").
//
// bytebufferpool.Pool doesn't report whether Get returned a fresh or
// recycled buffer (unlike carlo's sync.Pool-based na/nr counters), so
// acquires are counted under a single "pool" source rather than fabricating
// a new/reuse split we can't actually observe.
var writeBufferPool bytebufferpool.Pool

// AcquireWriteBuffer returns an empty pooled buffer ready for an encoder to
// append frame bytes into. Exported so the mysql/postgres encoders, which
// live in separate packages, can build outbound frames directly into a
// pooled buffer and hand it to Conn.Send.
func AcquireWriteBuffer() *bytebufferpool.ByteBuffer {
	metrics.WriteBufferPoolAcquires.WithLabelValues("pool").Inc()
	return writeBufferPool.Get()
}

func acquireWriteBuffer() *bytebufferpool.ByteBuffer { return AcquireWriteBuffer() }

// releaseWriteBuffer returns buf to the pool once its bytes have been
// written to the socket.
func releaseWriteBuffer(buf *bytebufferpool.ByteBuffer) {
	writeBufferPool.Put(buf)
	metrics.WriteBufferPoolReleases.Inc()
}
