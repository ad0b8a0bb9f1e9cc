package tangguh

import (
	"net/http"

	"golang.org/x/sync/singleflight"
)

// DeduplicationCondition determines whether a request may be coalesced
// with identical in-flight requests.
type DeduplicationCondition func(req *Request) bool

// DefaultDeduplicationCondition coalesces GET and HEAD requests only;
// methods with side effects always execute individually.
func DefaultDeduplicationCondition(req *Request) bool {
	return req.Method() == http.MethodGet || req.Method() == http.MethodHead
}

// deduplicator merges concurrent identical requests onto one physical
// execution.
type deduplicator struct {
	group singleflight.Group
}

// do executes fn at most once per key among concurrent callers; waiters
// block until the owner's fn returns and receive the same Result. Callers
// detect waiting via a flag set inside their own fn closure, since only
// the owner's closure runs.
func (d *deduplicator) do(key string, fn func() Result) Result {
	v, _, _ := d.group.Do(key, func() (any, error) {
		return fn(), nil
	})
	return v.(Result)
}
