package ews

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

var errWorkerStopped = errors.New("transport worker stopped")

// transport is the connection's worker. It receives admitted nodes from the
// scheduler and runs each HTTP exchange on a goroutine it tracks, so Stop
// can abort and join all of them.
type transport struct {
	conn *Connection
	work chan *requestNode

	ctx    context.Context
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

func newTransport(ctx context.Context, conn *Connection, capacity int) *transport {
	tctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	return &transport{
		conn:   conn,
		work:   make(chan *requestNode, capacity),
		ctx:    tctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (t *transport) run() {
	defer close(t.done)

	for {
		select {
		case n := <-t.work:
			t.wg.Go(func() { t.exchange(n) })
		case <-t.stopCh:
			t.cancel(errWorkerStopped)
			t.drain()
			t.wg.Wait()
			return
		}
	}
}

// drain completes nodes that were admitted but never picked up.
func (t *transport) drain() {
	for {
		select {
		case n := <-t.work:
			t.conn.sched.complete(n, newCancelledError(n.operation, errWorkerStopped))
		default:
			return
		}
	}
}

// stop aborts in-flight exchanges and waits for the worker to exit.
func (t *transport) stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.done
}

// exchange sends n, answering up to MaxAuthRetries 401 challenges, and
// completes it with the demultiplexed result.
func (t *transport) exchange(n *requestNode) {
	ctx, cancel := context.WithCancelCause(n.ctx)
	defer cancel(nil)
	stopAbort := context.AfterFunc(t.ctx, func() { cancel(context.Cause(t.ctx)) })
	defer stopAbort()

	start := time.Now()
	err := t.roundTrip(ctx, n)
	t.conn.sched.complete(n, err)

	fields := n.logFields()
	fields["uri"] = t.conn.uri
	LogPerformance(t.conn.ctx, SubsystemCore, n.operation, time.Since(start), fields)
	if err != nil {
		LogEWSError(t.conn.ctx, n.operation, err, n.logFields())
	}
}

func (t *transport) roundTrip(ctx context.Context, n *requestNode) error {
	if ctx.Err() != nil {
		return newCancelledError(n.operation, context.Cause(ctx))
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		creds := t.conn.currentCredentials()

		r, err := t.send(ctx, n, creds)
		if err != nil {
			if ctx.Err() != nil {
				return newCancelledError(n.operation, context.Cause(ctx))
			}
			return newNoResponseError(n.operation, err.Error(), err)
		}

		resp = r
		if resp.StatusCode != http.StatusUnauthorized || attempt >= t.conn.config.MaxAuthRetries {
			break
		}

		challenge := resp.Header.Get("WWW-Authenticate")
		if !t.conn.reauthenticate(ctx, challenge, creds) {
			break
		}
		discard(resp)
	}
	defer resp.Body.Close()

	if n.receive != nil {
		return t.receiveRaw(ctx, n, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return newCancelledError(n.operation, context.Cause(ctx))
		}
		return newNoResponseError(n.operation, err.Error(), err)
	}
	dumpResponse(t.conn.ctx, resp, body)

	return demux(t.conn.ctx, n, resp.StatusCode, reasonPhrase(resp), body)
}

// receiveRaw hands a non-SOAP response to the node. Only 200 responses
// reach the receiver.
func (t *transport) receiveRaw(ctx context.Context, n *requestNode, resp *http.Response) error {
	switch {
	case n.cancelled():
		return newCancelledError(n.operation, context.Cause(n.ctx))
	case resp.StatusCode == http.StatusUnauthorized:
		return newError(n.operation, KindAuthenticationFailed, "Authentication failed")
	case resp.StatusCode != http.StatusOK:
		return newError(n.operation, KindUnknown,
			fmt.Sprintf("Code: %d - Unexpected response from server", resp.StatusCode))
	}

	if err := n.receive(resp); err != nil {
		if ctx.Err() != nil {
			return newCancelledError(n.operation, context.Cause(ctx))
		}
		var ewsErr *Error
		if errors.As(err, &ewsErr) {
			return ewsErr
		}
		e := newError(n.operation, KindUnknown, fmt.Sprintf("failed to read %s response", n.operation))
		e.Cause = err
		return e
	}
	return nil
}

// send issues one HTTP request for n. The caller closes the response body.
func (t *transport) send(ctx context.Context, n *requestNode, creds credentials) (*http.Response, error) {
	target := n.url
	if target == "" {
		target = t.conn.uri
	}

	var body io.Reader
	if n.payload != nil {
		body = bytes.NewReader(n.payload)
	}
	req, err := http.NewRequestWithContext(ctx, n.method, target, body)
	if err != nil {
		return nil, err
	}
	if n.payload != nil {
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	}
	req.Header.Set("User-Agent", t.conn.config.UserAgent)
	req.Header.Set("client-request-id", n.id)
	req.Header.Set("return-client-request-id", "true")
	t.conn.authorize(req, creds)

	client, err := t.conn.clientFor(ctx, creds)
	if err != nil {
		return nil, err
	}

	dumpRequest(t.conn.ctx, req, n.payload)

	return client.Do(req)
}

// discard drains and closes a response that will not be used, so the
// connection can be reused for the next authentication round.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// reasonPhrase returns the text after the status code in resp.Status.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
