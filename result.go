package tangguh

// Result is the discriminated outcome of a logical call: either a Response
// (any HTTP status, including 4xx/5xx) or a failure (connection fault,
// timeout, breaker rejection, retry exhaustion, plugin error). Exactly one
// of the two is set.
type Result struct {
	resp *Response
	err  error
}

// Success wraps a terminal response.
func Success(resp *Response) Result { return Result{resp: resp} }

// Failure wraps a Result-level error.
func Failure(err error) Result { return Result{err: err} }

// IsSuccess reports whether a response was obtained.
func (r Result) IsSuccess() bool { return r.err == nil }

// IsFailure reports whether the call failed without a usable response.
func (r Result) IsFailure() bool { return r.err != nil }

// Response returns the terminal response, nil on failure.
func (r Result) Response() *Response { return r.resp }

// Err returns the failure, nil on success.
func (r Result) Err() error { return r.err }

// Unwrap returns the response and error as an ordinary Go pair.
func (r Result) Unwrap() (*Response, error) { return r.resp, r.err }
