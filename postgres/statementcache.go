package postgres

import (
	"strconv"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
)

// statementCache maps the three transaction keywords to server-assigned
// anonymous statement names, so repeat BEGIN/COMMIT/ROLLBACK elide the
// Parse step (spec §4.4 "Query execution": "the cache maps the three
// transaction keywords to server-assigned statement names S_<n>").
// go-cache is a generalization over original_source's plain HashMap: these
// names are only ever invalidated by session lifetime, but using the
// library keeps this cache built the way the rest of the pack (vitessio's
// plan-cache use) builds bounded lookup caches, rather than a bespoke map.
type statementCache struct {
	c       *cache.Cache
	counter uint64
}

func newStatementCache() *statementCache {
	return &statementCache{c: cache.New(cache.NoExpiration, 0)}
}

// lookup returns the statement name for sql and whether it was already
// cached (a cache hit means the handler can skip re-sending Parse).
func (s *statementCache) lookup(sql string) (name string, hit bool) {
	if v, ok := s.c.Get(sql); ok {
		return v.(string), true
	}
	name = "S_" + strconv.FormatUint(atomic.AddUint64(&s.counter, 1), 10)
	s.c.Set(sql, name, cache.NoExpiration)
	return name, false
}
