package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

const fakeEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"
  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
  <s:Body><m:%[1]sResponse><m:ResponseMessages>%[2]s</m:ResponseMessages></m:%[1]sResponse></s:Body>
</s:Envelope>`

// fakeResponse builds a single successful response message for op.
func fakeResponse(op, inner string) string {
	msg := `<m:` + op + `ResponseMessage ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode>` +
		inner + `</m:` + op + `ResponseMessage>`
	return fmt.Sprintf(fakeEnvelope, op, msg)
}

// fakeError builds a single failed response message for op.
func fakeError(op, code, text string) string {
	msg := `<m:` + op + `ResponseMessage ResponseClass="Error"><m:MessageText>` + text +
		`</m:MessageText><m:ResponseCode>` + code + `</m:ResponseCode></m:` + op + `ResponseMessage>`
	return fmt.Sprintf(fakeEnvelope, op, msg)
}

// fakeEWS replays canned responses in order and records request bodies.
type fakeEWS struct {
	*httptest.Server

	mu        sync.Mutex
	responses []string
	requests  []string
}

func newFakeEWS(t *testing.T, responses ...string) *fakeEWS {
	t.Helper()

	f := &fakeEWS{responses: responses}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		n := len(f.requests)
		f.requests = append(f.requests, string(body))
		f.mu.Unlock()

		if n >= len(f.responses) {
			http.Error(w, "no more canned responses", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = io.WriteString(w, f.responses[n])
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeEWS) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// connect opens a basic-auth connection to the fake on a private registry.
func (f *fakeEWS) connect(t *testing.T) *ews.Connection {
	t.Helper()

	cfg := ews.DefaultConfig()
	cfg.URI = f.URL + "/EWS/Exchange.asmx"
	cfg.Username = "user"
	cfg.Password = "secret"
	cfg.Email = "user@example.com"
	cfg.AuthMethod = ews.AuthMethodBasic

	conn, err := ews.NewRegistry().New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Release)
	return conn
}

// syncPage renders one SyncFolderHierarchy page. Each change is an
// already-formatted <t:Create>, <t:Update> or <t:Delete> element.
func syncPage(state string, last bool, changes ...string) string {
	return fakeResponse("SyncFolderHierarchy",
		`<m:SyncState>`+state+`</m:SyncState>`+
			fmt.Sprintf(`<m:IncludesLastFolderInRange>%t</m:IncludesLastFolderInRange>`, last)+
			`<m:Changes>`+strings.Join(changes, "")+`</m:Changes>`)
}

func folderXML(id, parent, name, class string) string {
	return `<t:Folder><t:FolderId Id="` + id + `" ChangeKey="ck-` + id + `"/>` +
		`<t:ParentFolderId Id="` + parent + `"/>` +
		`<t:DisplayName>` + name + `</t:DisplayName>` +
		`<t:FolderClass>` + class + `</t:FolderClass></t:Folder>`
}
