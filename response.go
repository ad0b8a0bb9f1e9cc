package tangguh

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the immutable value produced for the terminal physical
// attempt of a logical call (or served from cache). Body is fully read
// and buffered; the underlying connection is already returned to the pool
// by the time a Response is visible to callers.
type Response struct {
	// StatusCode is the HTTP status of the terminal attempt (100-599).
	StatusCode int
	// Headers holds the response headers.
	Headers http.Header
	// Body is the buffered response body.
	Body []byte
	// Elapsed is the wall-clock duration of the logical call.
	Elapsed time.Duration
	// Attempts is the number of physical attempts performed (>=1, or 0 for
	// a cache-served response).
	Attempts int
	// Request references the originating request.
	Request *Request
	// FromCache reports whether the response was served by the cache plugin
	// without a network attempt.
	FromCache bool
}

// IsError reports whether the response carries an HTTP error status (>=400).
// Such responses are still successful Results; see package documentation.
func (r *Response) IsError() bool { return r.StatusCode >= 400 }

// IsSuccess reports whether the status is in the 2xx range.
func (r *Response) IsSuccess() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error { return json.Unmarshal(r.Body, v) }

// Header returns the first value of the named response header.
func (r *Response) Header(key string) string { return r.Headers.Get(key) }

// clone returns a shallow copy with its own header map. Cached and
// de-duplicated responses are cloned per caller so after-hooks of one
// caller cannot leak mutations into another.
func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Headers = r.Headers.Clone()
	return &clone
}
