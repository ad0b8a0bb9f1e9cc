package tangguh

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

// recordingPlugin appends its name to a shared trace on every hook.
type recordingPlugin struct {
	name  string
	trace *[]string

	beforeResp *Response
	beforeErr  error
	afterErr   error
}

func (p *recordingPlugin) BeforeRequest(ctx context.Context, req *Request) (*Request, *Response, error) {
	*p.trace = append(*p.trace, "before:"+p.name)
	return nil, p.beforeResp, p.beforeErr
}

func (p *recordingPlugin) AfterRequest(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	*p.trace = append(*p.trace, "after:"+p.name)
	return nil, p.afterErr
}

func (p *recordingPlugin) OnError(ctx context.Context, req *Request, err error) {
	*p.trace = append(*p.trace, "error:"+p.name)
}

func tracePipeline(plugins ...Plugin) *pipeline {
	return &pipeline{plugins: plugins}
}

func testRequest(t *testing.T) *Request {
	t.Helper()
	req, err := NewRequest("GET", "https://api.example.com/resource")
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func TestPipelineBeforeRunsInRegistrationOrder(t *testing.T) {
	var trace []string
	p := tracePipeline(
		&recordingPlugin{name: "A", trace: &trace},
		&recordingPlugin{name: "B", trace: &trace},
	)

	_, terminal, err := p.before(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("before() error = %v", err)
	}
	if terminal != nil {
		t.Fatal("unexpected short-circuit")
	}

	want := []string{"before:A", "before:B"}
	if len(trace) != 2 || trace[0] != want[0] || trace[1] != want[1] {
		t.Errorf("trace = %v, want %v", trace, want)
	}
}

func TestPipelineAfterRunsInReverseOrder(t *testing.T) {
	var trace []string
	p := tracePipeline(
		&recordingPlugin{name: "A", trace: &trace},
		&recordingPlugin{name: "B", trace: &trace},
	)

	_, err := p.after(context.Background(), testRequest(t), &Response{StatusCode: 200})
	if err != nil {
		t.Fatalf("after() error = %v", err)
	}

	want := []string{"after:B", "after:A"}
	if len(trace) != 2 || trace[0] != want[0] || trace[1] != want[1] {
		t.Errorf("trace = %v, want %v", trace, want)
	}
}

func TestPipelineShortCircuitSkipsRemainingBeforeHooks(t *testing.T) {
	var trace []string
	p := tracePipeline(
		&recordingPlugin{name: "A", trace: &trace},
		&recordingPlugin{name: "B", trace: &trace, beforeResp: &Response{StatusCode: 200}},
		&recordingPlugin{name: "C", trace: &trace},
	)

	_, terminal, err := p.before(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("before() error = %v", err)
	}
	if terminal == nil {
		t.Fatal("expected a terminal response")
	}

	for _, step := range trace {
		if step == "before:C" {
			t.Error("before-hook after the short-circuit must not run")
		}
	}
}

func TestPipelineAfterHooksRunForShortCircuitedResponses(t *testing.T) {
	var trace []string
	p := tracePipeline(
		&recordingPlugin{name: "A", trace: &trace},
		&recordingPlugin{name: "B", trace: &trace, beforeResp: &Response{StatusCode: 200}},
		&recordingPlugin{name: "C", trace: &trace},
	)
	ctx := context.Background()
	req := testRequest(t)

	_, terminal, _ := p.before(ctx, req)
	if terminal == nil {
		t.Fatal("expected a terminal response")
	}

	trace = trace[:0]
	if _, err := p.after(ctx, req, terminal); err != nil {
		t.Fatalf("after() error = %v", err)
	}

	// Every plugin's after-hook runs, including the one whose before-hook
	// was skipped by the short-circuit.
	want := []string{"after:C", "after:B", "after:A"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] = %q, want %q", i, trace[i], want[i])
		}
	}
}

func TestPipelineOnErrorRunsInReverseOrder(t *testing.T) {
	var trace []string
	p := tracePipeline(
		&recordingPlugin{name: "A", trace: &trace},
		&recordingPlugin{name: "B", trace: &trace},
	)

	p.onError(context.Background(), testRequest(t), errors.New("boom"))

	want := []string{"error:B", "error:A"}
	if len(trace) != 2 || trace[0] != want[0] || trace[1] != want[1] {
		t.Errorf("trace = %v, want %v", trace, want)
	}
}

func TestPipelineBeforeHookErrorIsFatal(t *testing.T) {
	var trace []string
	hookErr := errors.New("hook broke")
	p := tracePipeline(
		&recordingPlugin{name: "A", trace: &trace, beforeErr: hookErr},
		&recordingPlugin{name: "B", trace: &trace},
	)

	_, _, err := p.before(context.Background(), testRequest(t))
	if err == nil {
		t.Fatal("expected hook error to surface")
	}

	var clientErr *ClientError
	if !asClientError(err, &clientErr) || clientErr.Type != ErrorTypePlugin {
		t.Errorf("expected plugin error, got %v", err)
	}
	if !errors.Is(err, hookErr) {
		t.Error("expected the hook error as cause")
	}
	for _, step := range trace {
		if step == "before:B" {
			t.Error("hooks after a failed hook must not run")
		}
	}
}

func TestPipelineAfterHookErrorIsFatal(t *testing.T) {
	var trace []string
	p := tracePipeline(
		&recordingPlugin{name: "A", trace: &trace},
		&recordingPlugin{name: "B", trace: &trace, afterErr: errors.New("boom")},
	)

	_, err := p.after(context.Background(), testRequest(t), &Response{StatusCode: 200})
	if err == nil {
		t.Fatal("expected hook error to surface")
	}
	var clientErr *ClientError
	if !asClientError(err, &clientErr) || clientErr.Type != ErrorTypePlugin {
		t.Errorf("expected plugin error, got %v", err)
	}
}

func TestPipelineBeforeHookMayDeriveRequest(t *testing.T) {
	derive := pluginFuncs{
		before: func(ctx context.Context, req *Request) (*Request, *Response, error) {
			derived, err := req.Derive(WithHeader("X-Trace", "abc123"))
			return derived, nil, err
		},
	}
	var seen string
	observe := pluginFuncs{
		before: func(ctx context.Context, req *Request) (*Request, *Response, error) {
			seen = req.Header("X-Trace")
			return nil, nil, nil
		},
	}
	p := tracePipeline(derive, observe)

	cur, _, err := p.before(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("before() error = %v", err)
	}
	if seen != "abc123" {
		t.Error("downstream hook must see the derived request")
	}
	if cur.Header("X-Trace") != "abc123" {
		t.Error("pipeline must return the derived request")
	}
}

func TestPipelineAfterHookMayReplaceResponse(t *testing.T) {
	replace := pluginFuncs{
		after: func(ctx context.Context, req *Request, resp *Response) (*Response, error) {
			replaced := resp.clone()
			replaced.Headers.Set("X-Processed", "yes")
			return replaced, nil
		},
	}
	p := tracePipeline(replace)

	resp, err := p.after(context.Background(), testRequest(t), &Response{StatusCode: 200, Headers: http.Header{}})
	if err != nil {
		t.Fatalf("after() error = %v", err)
	}
	if resp.Header("X-Processed") != "yes" {
		t.Error("expected the replaced response")
	}
}

// pluginFuncs adapts bare funcs to the Plugin interface for tests.
type pluginFuncs struct {
	BasePlugin
	before func(context.Context, *Request) (*Request, *Response, error)
	after  func(context.Context, *Request, *Response) (*Response, error)
}

func (p pluginFuncs) BeforeRequest(ctx context.Context, req *Request) (*Request, *Response, error) {
	if p.before == nil {
		return nil, nil, nil
	}
	return p.before(ctx, req)
}

func (p pluginFuncs) AfterRequest(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if p.after == nil {
		return nil, nil
	}
	return p.after(ctx, req, resp)
}
