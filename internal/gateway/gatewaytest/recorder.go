// Package gatewaytest provides a scriptable gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"net/url"
	"sync"

	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
)

// Call is one recorded Execute or ExecuteRaw invocation.
type Call struct {
	Op     gateway.Operation
	Params url.Values
	Raw    bool
}

// Handler answers one operation.
type Handler func(params url.Values) (gateway.Result, error)

// Recorder records every call and answers from per-operation handlers.
// Operations without a handler fall back to Next when set, and otherwise
// fail with gateway.ErrUnsupportedOperation.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	handlers map[gateway.Operation]Handler
	raw      map[gateway.Operation]string

	Next gateway.Gateway
}

func New() *Recorder {
	return &Recorder{
		handlers: map[gateway.Operation]Handler{},
		raw:      map[gateway.Operation]string{},
	}
}

// On installs h for op, replacing any previous handler.
func (r *Recorder) On(op gateway.Operation, h Handler) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[op] = h
	return r
}

// Reply makes op always answer res.
func (r *Recorder) Reply(op gateway.Operation, res gateway.Result) *Recorder {
	return r.On(op, func(url.Values) (gateway.Result, error) { return res, nil })
}

// Fail makes op always fail with err.
func (r *Recorder) Fail(op gateway.Operation, err error) *Recorder {
	return r.On(op, func(url.Values) (gateway.Result, error) { return nil, err })
}

// ReplyRaw sets the body returned by ExecuteRaw for op.
func (r *Recorder) ReplyRaw(op gateway.Operation, body string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw[op] = body
	return r
}

func (r *Recorder) Execute(ctx context.Context, op gateway.Operation, params url.Values) (gateway.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, Params: cloneValues(params)})
	h, ok := r.handlers[op]
	next := r.Next
	r.mu.Unlock()

	if ok {
		return h(params)
	}
	if next != nil {
		return next.Execute(ctx, op, params)
	}
	return nil, &gateway.CallError{Op: op, Err: gateway.ErrUnsupportedOperation}
}

func (r *Recorder) ExecuteRaw(_ context.Context, op gateway.Operation, params url.Values) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Params: cloneValues(params), Raw: true})
	body, ok := r.raw[op]
	if !ok {
		return "", &gateway.CallError{Op: op, Err: gateway.ErrUnsupportedOperation}
	}
	return body, nil
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many times op was invoked.
func (r *Recorder) Count(op gateway.Operation) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Last returns the most recent call to op.
func (r *Recorder) Last(op gateway.Operation) (Call, bool) {
	calls := r.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Op == op {
			return calls[i], true
		}
	}
	return Call{}, false
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
