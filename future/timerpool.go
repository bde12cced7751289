package future

import (
	"sync"
	"time"
)

// timerPool recycles time.Timer instances used by GetTimeout, the same
// acquire/reset, release/drain pattern as carlolib/timerpool.go.
var timerPool = &struct {
	sp sync.Pool
}{}

func acquireTimer(timeout time.Duration) *time.Timer {
	v := timerPool.sp.Get()
	if v == nil {
		return time.NewTimer(timeout)
	}
	t := v.(*time.Timer)
	t.Reset(timeout)
	return t
}

func releaseTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.sp.Put(t)
}
