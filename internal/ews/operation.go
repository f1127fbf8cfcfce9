package ews

import (
	"context"
	"net/http"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// Pending is an operation in progress. It completes exactly once.
type Pending[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Done is closed when the operation has completed.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Finish waits for completion and returns the result. On error the result
// holds whatever was parsed before the failure.
func (p *Pending[T]) Finish() (T, error) {
	<-p.done
	return p.result, p.err
}

// submit builds a node around msg and queues it on c. parse receives each
// response message together with the result under construction.
func submit[T any](ctx context.Context, c *Connection, priority Priority, msg *soap.Message, parse func(*soap.Parameter, *T) error) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}

	var parser responseParser
	if parse != nil {
		parser = func(param *soap.Parameter) error {
			return parse(param, &p.result)
		}
	}

	complete := func(err error) {
		p.err = err
		close(p.done)
	}

	n, err := newRequestNode(ctx, msg, priority, parser, complete)
	if err != nil {
		e := newError(msg.Operation(), KindUnknown, "failed to build request")
		e.Cause = err
		complete(e)
		return p
	}

	c.submitNode(n)
	return p
}

// submitRaw queues a request whose response is not a SOAP envelope. receive
// gets the final 200 response together with the result under construction.
func submitRaw[T any](ctx context.Context, c *Connection, priority Priority, operation, method, url string, receive func(*http.Response, *T) error) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}

	complete := func(err error) {
		p.err = err
		close(p.done)
	}

	n := newRawRequestNode(ctx, operation, method, url, priority, func(resp *http.Response) error {
		return receive(resp, &p.result)
	}, complete)

	c.submitNode(n)
	return p
}

// failed returns a Pending that has already completed with err.
func failed[T any](operation string, err error) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{}), err: err}
	close(p.done)
	if _, ok := err.(*Error); !ok {
		e := newError(operation, KindUnknown, err.Error())
		e.Cause = err
		p.err = e
	}
	return p
}

// newMessage starts an envelope using the connection's server version.
func (c *Connection) newMessage(operation, topAttr, topAttrValue string) *soap.Message {
	return soap.NewMessage(operation, topAttr, topAttrValue, c.config.ServerVersion)
}
