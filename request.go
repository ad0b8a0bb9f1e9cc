package tangguh

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Request is an immutable outbound HTTP request. It is created once per
// logical call, flows by reference through the plugin pipeline and the
// retry loop, and is never mutated; derived requests are produced with
// Derive. All accessors return copies of mutable state.
type Request struct {
	method  string
	url     *url.URL
	headers http.Header
	params  url.Values
	body    []byte
	timeout time.Duration

	buildErr error
}

// RequestOption configures a Request during construction (or derivation).
type RequestOption func(*Request)

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// NewRequest constructs a validated Request. The URL must be absolute with
// an http or https scheme; query parameters present in rawURL are folded
// into the request's parameter set so a request has one canonical set of
// params regardless of how they were supplied.
func NewRequest(method, rawURL string, opts ...RequestOption) (*Request, error) {
	method = strings.ToUpper(method)
	if !knownMethods[method] {
		return nil, &ClientError{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("unsupported HTTP method %q", method),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ClientError{
			Type:    ErrorTypeValidation,
			Message: "invalid URL",
			Cause:   err,
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ClientError{
			Type:    ErrorTypeValidation,
			Message: fmt.Sprintf("unsupported URL scheme %q", u.Scheme),
		}
	}
	if u.Host == "" {
		return nil, &ClientError{
			Type:    ErrorTypeValidation,
			Message: "URL host must not be empty",
		}
	}

	req := &Request{
		method:  method,
		url:     u,
		headers: http.Header{},
		params:  u.Query(),
	}
	u.RawQuery = ""

	for _, opt := range opts {
		opt(req)
	}

	if req.buildErr != nil {
		return nil, req.buildErr
	}
	if req.timeout < 0 {
		return nil, &ClientError{
			Type:    ErrorTypeValidation,
			Message: "request timeout must be positive",
		}
	}

	return req, nil
}

// Derive returns a copy of the request with the given options applied.
// The receiver is left untouched.
func (r *Request) Derive(opts ...RequestOption) (*Request, error) {
	clone := &Request{
		method:  r.method,
		url:     cloneURL(r.url),
		headers: r.headers.Clone(),
		params:  cloneValues(r.params),
		body:    append([]byte(nil), r.body...),
		timeout: r.timeout,
	}
	for _, opt := range opts {
		opt(clone)
	}
	if clone.buildErr != nil {
		return nil, clone.buildErr
	}
	return clone, nil
}

// WithHeader sets a header on the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.headers.Set(key, value)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *Request) {
		r.params.Add(key, value)
	}
}

// WithParams merges a parameter set into the request's query parameters.
func WithParams(params url.Values) RequestOption {
	return func(r *Request) {
		for k, vs := range params {
			for _, v := range vs {
				r.params.Add(k, v)
			}
		}
	}
}

// WithBody sets a raw byte body and its content type.
func WithBody(body []byte, contentType string) RequestOption {
	return func(r *Request) {
		r.body = append([]byte(nil), body...)
		if contentType != "" {
			r.headers.Set("Content-Type", contentType)
		}
	}
}

// WithJSON marshals v as the request body and sets the JSON content type.
func WithJSON(v any) RequestOption {
	return func(r *Request) {
		data, err := json.Marshal(v)
		if err != nil {
			r.buildErr = &ClientError{
				Type:    ErrorTypeValidation,
				Message: "failed to marshal JSON body",
				Cause:   err,
			}
			return
		}
		r.body = data
		r.headers.Set("Content-Type", "application/json")
	}
}

// WithRequestTimeout overrides the client's default timeout for this request.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.timeout = d
	}
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// URL returns the fully assembled request URL including encoded parameters.
func (r *Request) URL() string {
	u := cloneURL(r.url)
	u.RawQuery = r.params.Encode()
	return u.String()
}

// Timeout returns the per-request timeout; zero means use the client default.
func (r *Request) Timeout() time.Duration { return r.timeout }

// Header returns the first value of the named header.
func (r *Request) Header(key string) string { return r.headers.Get(key) }

// Headers returns a copy of the request headers.
func (r *Request) Headers() http.Header { return r.headers.Clone() }

// Params returns a copy of the query parameters.
func (r *Request) Params() url.Values { return cloneValues(r.params) }

// Body returns a copy of the request body, nil when there is none.
func (r *Request) Body() []byte {
	if r.body == nil {
		return nil
	}
	return append([]byte(nil), r.body...)
}

// Endpoint returns host+path, used as a low-cardinality metrics label.
func (r *Request) Endpoint() string {
	if r.url == nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(r.url.Host)
	if r.url.Path != "" && r.url.Path != "/" {
		builder.WriteString(r.url.Path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}

// CacheKey returns a stable key derived from (method, normalized URL,
// sorted params). Two requests that differ only in parameter order hash
// to the same key.
func (r *Request) CacheKey() string {
	h := blake3.New()
	_, _ = h.Write([]byte(r.method))
	_, _ = h.Write([]byte{'\n'})
	_, _ = h.Write([]byte(strings.ToLower(r.url.Scheme)))
	_, _ = h.Write([]byte("://"))
	_, _ = h.Write([]byte(strings.ToLower(r.url.Host)))
	_, _ = h.Write([]byte(r.url.EscapedPath()))
	_, _ = h.Write([]byte{'\n'})
	_, _ = h.Write([]byte(r.params.Encode())) // Encode sorts keys
	return hex.EncodeToString(h.Sum(nil))
}

// toHTTP materializes a *http.Request for one physical attempt. A fresh
// body reader is created on every call so retries never share read state.
func (r *Request) toHTTP(ctx context.Context) (*http.Request, error) {
	var body *bytes.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, r.method, r.URL(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, r.method, r.URL(), nil)
	}
	if err != nil {
		return nil, err
	}

	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func cloneValues(v url.Values) url.Values {
	clone := make(url.Values, len(v))
	for k, vs := range v {
		clone[k] = append([]string(nil), vs...)
	}
	return clone
}
