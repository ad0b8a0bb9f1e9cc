package tangguh

import (
	"context"
	"fmt"
)

// Plugin bundles the three hooks of one cross-cutting concern. Plugins are
// composed as nested middleware: before-hooks run in registration order
// (first registered is outermost), after-hooks and on-error hooks run in
// reverse registration order, so the first registered plugin is outermost
// on both legs.
//
// Hook errors are programmer errors: they surface as fatal plugin failures
// and are never swallowed. Panics inside hooks are not recovered.
type Plugin interface {
	// BeforeRequest may replace the request (return a derived request) or
	// short-circuit the call by returning a terminal response, in which
	// case the remaining before-hooks and the transport are skipped but
	// every after-hook still runs. Returning (nil, nil, nil) leaves the
	// request unchanged.
	BeforeRequest(ctx context.Context, req *Request) (*Request, *Response, error)

	// AfterRequest may replace the response. Returning (nil, nil) leaves
	// it unchanged. It runs for transported and short-circuited responses
	// alike.
	AfterRequest(ctx context.Context, req *Request, resp *Response) (*Response, error)

	// OnError observes a terminal Result-level failure. It cannot alter
	// the outcome.
	OnError(ctx context.Context, req *Request, err error)
}

// pipeline holds the registered plugins in registration order.
type pipeline struct {
	plugins []Plugin
}

// before runs before-hooks in registration order. It returns the possibly
// derived request and, on short-circuit, the terminal response.
func (p *pipeline) before(ctx context.Context, req *Request) (*Request, *Response, error) {
	cur := req
	for i, plugin := range p.plugins {
		derived, terminal, err := plugin.BeforeRequest(ctx, cur)
		if err != nil {
			return cur, nil, pluginError("BeforeRequest", i, err)
		}
		if derived != nil {
			cur = derived
		}
		if terminal != nil {
			return cur, terminal, nil
		}
	}
	return cur, nil, nil
}

// after runs every after-hook in reverse registration order, threading the
// possibly replaced response through.
func (p *pipeline) after(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	cur := resp
	for i := len(p.plugins) - 1; i >= 0; i-- {
		replaced, err := p.plugins[i].AfterRequest(ctx, req, cur)
		if err != nil {
			return cur, pluginError("AfterRequest", i, err)
		}
		if replaced != nil {
			cur = replaced
		}
	}
	return cur, nil
}

// onError notifies every plugin of a terminal failure in reverse
// registration order.
func (p *pipeline) onError(ctx context.Context, req *Request, err error) {
	for i := len(p.plugins) - 1; i >= 0; i-- {
		p.plugins[i].OnError(ctx, req, err)
	}
}

func pluginError(hook string, index int, err error) error {
	return &ClientError{
		Type:    ErrorTypePlugin,
		Message: fmt.Sprintf("plugin[%d] %s hook failed", index, hook),
		Cause:   err,
	}
}

// BasePlugin is a no-op Plugin intended for embedding, so concrete plugins
// only implement the hooks they care about.
type BasePlugin struct{}

func (BasePlugin) BeforeRequest(context.Context, *Request) (*Request, *Response, error) {
	return nil, nil, nil
}

func (BasePlugin) AfterRequest(context.Context, *Request, *Response) (*Response, error) {
	return nil, nil
}

func (BasePlugin) OnError(context.Context, *Request, error) {}
