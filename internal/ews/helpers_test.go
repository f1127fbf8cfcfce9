package ews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

const envelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"
  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
  <s:Header><h:ServerVersionInfo xmlns:h="http://schemas.microsoft.com/exchange/services/2006/types" MajorVersion="14"/></s:Header>
  <s:Body>%s</s:Body>
</s:Envelope>`

// envelope wraps body in a SOAP response envelope.
func envelope(body string) string {
	return fmt.Sprintf(envelopeTemplate, body)
}

// responseMessages wraps messages in <m:{op}Response><m:ResponseMessages>.
func responseMessages(op string, messages ...string) string {
	out := "<m:" + op + "Response><m:ResponseMessages>"
	for _, m := range messages {
		out += m
	}
	return envelope(out + "</m:ResponseMessages></m:" + op + "Response>")
}

func successMessage(op, inner string) string {
	return `<m:` + op + `ResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode>` +
		inner + `</m:` + op + `ResponseMessage>`
}

func errorMessage(op, code, text string) string {
	return `<m:` + op + `ResponseMessage ResponseClass="Error"><m:MessageText>` + text +
		`</m:MessageText><m:ResponseCode>` + code + `</m:ResponseCode></m:` + op + `ResponseMessage>`
}

type recordedRequest struct {
	Method    string
	Path      string
	Operation string
	Body      *soap.Parameter
	Raw       string
	Header    http.Header
}

// fakeServer is an httptest server speaking just enough EWS for the tests.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

// newFakeServer answers every request with reply(w, request).
func newFakeServer(t *testing.T, reply func(w http.ResponseWriter, req recordedRequest)) *fakeServer {
	t.Helper()

	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Raw: string(data), Header: r.Header.Clone()}
		if doc, err := soap.ParseDocument(data); err == nil {
			rec.Body = doc.Root().FirstChildByName("Body").FirstChild()
			rec.Operation = rec.Body.Name()
		}

		fs.mu.Lock()
		fs.requests = append(fs.requests, rec)
		fs.mu.Unlock()

		reply(w, rec)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) recorded() []recordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]recordedRequest(nil), fs.requests...)
}

func (fs *fakeServer) last() recordedRequest {
	reqs := fs.recorded()
	if len(reqs) == 0 {
		return recordedRequest{}
	}
	return reqs[len(reqs)-1]
}

// replyXML writes body as a 200 text/xml response.
func replyXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

// staticReply answers every request with body.
func staticReply(body string) func(http.ResponseWriter, recordedRequest) {
	return func(w http.ResponseWriter, _ recordedRequest) {
		replyXML(w, body)
	}
}

// newTestConnection opens a basic-auth connection to fs on a private registry.
func newTestConnection(t *testing.T, fs *fakeServer, mutate ...func(*ConnectionConfig)) *Connection {
	t.Helper()

	cfg := &ConnectionConfig{
		URI:        fs.URL + "/EWS/Exchange.asmx",
		Username:   "user",
		Password:   "secret",
		Email:      "user@example.com",
		AuthMethod: AuthMethodBasic,
	}
	for _, m := range mutate {
		m(cfg)
	}

	conn, err := NewRegistry().New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Release)
	return conn
}
