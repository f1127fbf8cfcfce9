package ews

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getFolderRoot = `<m:Folders><t:Folder><t:FolderId Id="root-id" ChangeKey="ck1"/><t:DisplayName>Top of Information Store</t:DisplayName><t:TotalCount>0</t:TotalCount><t:ChildFolderCount>12</t:ChildFolderCount></t:Folder></m:Folders>`

func TestValidateConfig(t *testing.T) {
	valid := func() *ConnectionConfig {
		cfg := DefaultConfig()
		cfg.URI = "https://mail.example.com/EWS/Exchange.asmx"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{"valid", func(*ConnectionConfig) {}, ""},
		{"empty uri", func(c *ConnectionConfig) { c.URI = "" }, "URI is required"},
		{"bad scheme", func(c *ConnectionConfig) { c.URI = "ftp://mail.example.com/EWS" }, "unsupported URI scheme"},
		{"no host", func(c *ConnectionConfig) { c.URI = "https:///EWS" }, "no host"},
		{"zero concurrency", func(c *ConnectionConfig) { c.MaxConcurrentRequests = 0 }, "must be positive"},
		{"too much concurrency", func(c *ConnectionConfig) { c.MaxConcurrentRequests = 11 }, "too high"},
		{"unknown auth", func(c *ConnectionConfig) { c.AuthMethod = "digest" }, "unsupported authentication method"},
		{"negative retries", func(c *ConnectionConfig) { c.MaxAuthRetries = -1 }, "cannot be negative"},
		{"zero timeout", func(c *ConnectionConfig) { c.Timeout = 0 }, "timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, MaxConcurrentRequests, cfg.MaxConcurrentRequests)
	assert.Equal(t, "Exchange2007_SP1", cfg.ServerVersion)
	assert.Equal(t, AuthMethodNTLM, cfg.AuthMethod)
	assert.Equal(t, 3, cfg.MaxAuthRetries)
	assert.NotEmpty(t, cfg.UserAgent)
}

func TestRegistryKey(t *testing.T) {
	assert.Equal(t, "alice@https://mail.example.com/EWS", registryKey("https://mail.example.com/EWS", "alice"))
	assert.Equal(t, "@https://mail.example.com/EWS", registryKey("https://mail.example.com/EWS", ""))
}

func TestRegistryLifecycle(t *testing.T) {
	fs := newFakeServer(t, staticReply(responseMessages("GetFolder", successMessage("GetFolder", getFolderRoot))))
	reg := NewRegistry()
	ctx := context.Background()
	cfg := &ConnectionConfig{URI: fs.URL, Username: "alice", Password: "pw", AuthMethod: AuthMethodBasic}

	first, err := reg.New(ctx, cfg, nil)
	require.NoError(t, err)
	second, err := reg.New(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Len())

	found := reg.Find(fs.URL, "alice")
	require.NotNil(t, found)
	assert.Same(t, first, found)
	assert.Nil(t, reg.Find(fs.URL, "bob"))

	other, err := reg.New(ctx, &ConnectionConfig{URI: fs.URL, Username: "bob", AuthMethod: AuthMethodBasic}, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, reg.Len())
	other.Release()

	found.Release()
	second.Release()
	assert.NotNil(t, reg.Find(fs.URL, "alice"), "one reference left")
	first.Release() // drops the reference taken by the Find above
	first.Release()

	assert.Equal(t, 0, reg.Len())
	assert.Nil(t, reg.Find(fs.URL, "alice"))

	// Operations on a released connection are cancelled without I/O.
	before := len(fs.recorded())
	_, err = first.GetFolder(ctx, PriorityDefault, ShapeDefault, nil, []FolderID{DistinguishedFolder(FolderMsgFolderRoot)})
	assert.True(t, IsCancelledError(err))
	assert.Len(t, fs.recorded(), before)
}

func TestRegistryNewInvalidConfig(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.New(context.Background(), &ConnectionConfig{URI: "not a url"}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())

	_, err = reg.New(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestConnectionHeaders(t *testing.T) {
	fs := newFakeServer(t, staticReply(responseMessages("GetFolder", successMessage("GetFolder", getFolderRoot))))
	conn := newTestConnection(t, fs)

	_, err := conn.GetFolder(context.Background(), PriorityDefault, ShapeDefault, nil, []FolderID{DistinguishedFolder(FolderMsgFolderRoot)})
	require.NoError(t, err)

	req := fs.last()
	assert.Equal(t, "text/xml; charset=utf-8", req.Header.Get("Content-Type"))
	assert.Equal(t, "evolution-ews/0.1", req.Header.Get("User-Agent"))
	assert.NotEmpty(t, req.Header.Get("client-request-id"))
	assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Basic "))
	assert.Equal(t, "GetFolder", req.Operation)
}

func TestInFlightLimitOverHTTP(t *testing.T) {
	var (
		current, peak atomic.Int32
		gate          = make(chan struct{})
	)
	body := responseMessages("GetFolder", successMessage("GetFolder", getFolderRoot))
	fs := newFakeServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-gate
		current.Add(-1)
		replyXML(w, body)
	})
	conn := newTestConnection(t, fs)
	ctx := context.Background()

	pending := make([]*Pending[[]*Folder], 15)
	for i := range pending {
		pending[i] = conn.GetFolderStart(ctx, PriorityDefault, ShapeDefault, nil, []FolderID{DistinguishedFolder(FolderInbox)})
	}

	require.Eventually(t, func() bool { return current.Load() == MaxConcurrentRequests }, 5*time.Second, 10*time.Millisecond)
	stats := conn.Stats()
	assert.Equal(t, MaxConcurrentRequests, stats.InFlight)
	assert.Equal(t, 5, stats.Queued)

	close(gate)
	for _, p := range pending {
		folders, err := p.Finish()
		require.NoError(t, err)
		require.Len(t, folders, 1)
	}

	assert.Equal(t, int32(MaxConcurrentRequests), peak.Load())
	assert.Equal(t, int64(15), conn.Stats().Completed)
	assert.Equal(t, int64(MaxConcurrentRequests), conn.Stats().MaxInFlight)
}

func TestPriorityOrderOverHTTP(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
		gate  = make(chan struct{})
		first atomic.Bool
	)
	body := responseMessages("ResolveNames", successMessage("ResolveNames", `<m:ResolutionSet TotalItemsInView="0" IncludesLastItemInRange="true"/>`))
	fs := newFakeServer(t, func(w http.ResponseWriter, req recordedRequest) {
		name := req.Body.ChildValue("UnresolvedEntry")
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
		if first.CompareAndSwap(false, true) {
			<-gate
		}
		replyXML(w, body)
	})
	conn := newTestConnection(t, fs, func(c *ConnectionConfig) { c.MaxConcurrentRequests = 1 })
	ctx := context.Background()

	blocker := conn.ResolveNamesStart(ctx, PriorityDefault, "blocker", SearchActiveDirectory, nil, false)
	require.Eventually(t, func() bool { return first.Load() }, 5*time.Second, 5*time.Millisecond)

	subs := []struct {
		name     string
		priority Priority
	}{
		{"low", PriorityLow},
		{"default-1", PriorityDefault},
		{"high", PriorityHigh},
		{"default-2", PriorityDefault},
	}
	var rest []*Pending[ResolveNamesResult]
	for _, s := range subs {
		rest = append(rest, conn.ResolveNamesStart(ctx, s.priority, s.name, SearchActiveDirectory, nil, false))
	}
	require.Eventually(t, func() bool { return conn.Stats().Queued == len(subs) }, time.Second, 5*time.Millisecond)

	close(gate)
	_, err := blocker.Finish()
	require.NoError(t, err)
	for _, p := range rest {
		_, err := p.Finish()
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"blocker", "high", "default-1", "default-2", "low"}, order)
}

func TestCancelInFlight(t *testing.T) {
	received := make(chan struct{}, 1)
	fs := newFakeServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		received <- struct{}{}
		time.Sleep(2 * time.Second)
		replyXML(w, responseMessages("GetFolder", successMessage("GetFolder", getFolderRoot)))
	})
	conn := newTestConnection(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	p := conn.GetFolderStart(ctx, PriorityDefault, ShapeDefault, nil, []FolderID{DistinguishedFolder(FolderInbox)})

	<-received
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("in-flight request was not aborted")
	}
	folders, err := p.Finish()
	assert.Empty(t, folders)
	assert.True(t, IsCancelledError(err), "got %v", err)
	assert.Equal(t, int64(1), conn.Stats().Cancelled)
}

func TestReleaseAbortsInFlight(t *testing.T) {
	received := make(chan struct{}, 1)
	fs := newFakeServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		received <- struct{}{}
		time.Sleep(2 * time.Second)
	})

	reg := NewRegistry()
	conn, err := reg.New(context.Background(), &ConnectionConfig{URI: fs.URL, Username: "u", Password: "p", AuthMethod: AuthMethodBasic}, nil)
	require.NoError(t, err)

	p := conn.GetFolderStart(context.Background(), PriorityDefault, ShapeDefault, nil, nil)
	<-received

	start := time.Now()
	conn.Release()
	assert.Less(t, time.Since(start), time.Second, "release must not wait for the server")

	_, err = p.Finish()
	assert.True(t, IsCancelledError(err), "got %v", err)
	assert.Nil(t, reg.Find(fs.URL, "u"))
}

func TestStartFinishEqualsSync(t *testing.T) {
	fs := newFakeServer(t, staticReply(responseMessages("GetFolder", successMessage("GetFolder", getFolderRoot))))
	conn := newTestConnection(t, fs)
	ctx := context.Background()
	ids := []FolderID{DistinguishedFolder(FolderMsgFolderRoot)}

	async, asyncErr := conn.GetFolderStart(ctx, PriorityDefault, ShapeDefault, nil, ids).Finish()
	direct, directErr := conn.GetFolder(ctx, PriorityDefault, ShapeDefault, nil, ids)

	require.NoError(t, asyncErr)
	require.NoError(t, directErr)
	assert.Equal(t, async, direct)

	reqs := fs.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].Body.FirstChildByName("FolderIds").FirstChild().Property("Id"),
		reqs[1].Body.FirstChildByName("FolderIds").FirstChild().Property("Id"))
}
