package ews

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

type nodeState int

const (
	stateCreated nodeState = iota
	stateQueued
	stateInFlight
	stateDone
)

func (s nodeState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateQueued:
		return "queued"
	case stateInFlight:
		return "in_flight"
	case stateDone:
		return "done"
	default:
		return "invalid"
	}
}

// responseParser consumes one response message element. For most operations
// that is a <*ResponseMessage>; for OOF operations it is the element
// following the single <ResponseMessage>.
type responseParser func(*soap.Parameter) error

// rawReceiver consumes a non-SOAP response, such as an OAB manifest or file.
// It is only called for the final response, after authentication retries.
type rawReceiver func(resp *http.Response) error

// requestNode is one outbound request. All fields except the ones noted are
// immutable after construction.
type requestNode struct {
	id        string
	operation string
	priority  Priority
	method    string
	url       string // empty means the connection's EWS endpoint
	payload   []byte
	parse     responseParser
	receive   rawReceiver
	ctx       context.Context

	// Guarded by the scheduler mutex.
	seq      uint64
	state    nodeState
	index    int
	stop     func() bool // deregisters the queued-cancellation watcher
	enqueued time.Time

	once     sync.Once
	complete func(error)
}

func newRequestNode(ctx context.Context, msg *soap.Message, priority Priority, parse responseParser, complete func(error)) (*requestNode, error) {
	payload, err := msg.Bytes()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &requestNode{
		id:        uuid.NewString(),
		operation: msg.Operation(),
		priority:  priority,
		method:    http.MethodPost,
		payload:   payload,
		parse:     parse,
		ctx:       ctx,
		index:     -1,
		complete:  complete,
	}, nil
}

// newRawRequestNode creates a GET-style node whose response bypasses the
// SOAP demultiplexer and goes to receive.
func newRawRequestNode(ctx context.Context, operation, method, url string, priority Priority, receive rawReceiver, complete func(error)) *requestNode {
	if ctx == nil {
		ctx = context.Background()
	}
	return &requestNode{
		id:        uuid.NewString(),
		operation: operation,
		priority:  priority,
		method:    method,
		url:       url,
		receive:   receive,
		ctx:       ctx,
		index:     -1,
		complete:  complete,
	}
}

// finish satisfies the completion sink. Later calls are ignored.
func (n *requestNode) finish(err error) {
	n.once.Do(func() {
		if n.complete != nil {
			n.complete(err)
		}
	})
}

func (n *requestNode) cancelled() bool {
	return n.ctx.Err() != nil
}

func (n *requestNode) logFields() map[string]any {
	return map[string]any{
		"operation":  n.operation,
		"request_id": n.id,
		"priority":   int(n.priority),
	}
}
