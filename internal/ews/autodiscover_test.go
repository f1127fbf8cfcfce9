package ews

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

const autodiscoverResponse = `<?xml version="1.0" encoding="utf-8"?>
<Autodiscover xmlns="http://schemas.microsoft.com/exchange/autodiscover/responseschema/2006">
  <Response xmlns="http://schemas.microsoft.com/exchange/autodiscover/outlook/responseschema/2006a">
    <User><DisplayName>User</DisplayName></User>
    <Account>
      <AccountType>email</AccountType>
      <Protocol><Type>EXCH</Type><Server>mbx01.example.com</Server></Protocol>
      <Protocol>
        <Type>EXPR</Type>
        <ASUrl>https://mail.example.com/EWS/Exchange.asmx</ASUrl>
        <OABUrl>https://mail.example.com/OAB/abc/</OABUrl>
      </Protocol>
    </Account>
  </Response>
</Autodiscover>`

func TestAutodiscoverCandidates(t *testing.T) {
	tests := []struct {
		name   string
		hint   string
		domain string
		want   []string
	}{
		{
			name:   "domain only",
			domain: "example.com",
			want: []string{
				"https://example.com/autodiscover/autodiscover.xml",
				"https://autodiscover.example.com/autodiscover/autodiscover.xml",
			},
		},
		{
			name:   "https hint",
			hint:   "https://mail.example.com/EWS/Exchange.asmx",
			domain: "example.com",
			want: []string{
				"https://mail.example.com/autodiscover/autodiscover.xml",
				"https://autodiscover.mail.example.com/autodiscover/autodiscover.xml",
				"https://example.com/autodiscover/autodiscover.xml",
				"https://autodiscover.example.com/autodiscover/autodiscover.xml",
			},
		},
		{
			name:   "http hint switches scheme",
			hint:   "http://mail.example.com:8080/EWS/Exchange.asmx",
			domain: "example.com",
			want: []string{
				"http://mail.example.com:8080/autodiscover/autodiscover.xml",
				"http://autodiscover.mail.example.com:8080/autodiscover/autodiscover.xml",
				"http://example.com/autodiscover/autodiscover.xml",
				"http://autodiscover.example.com/autodiscover/autodiscover.xml",
			},
		},
		{
			name:   "unparseable hint ignored",
			hint:   "::not a url",
			domain: "example.com",
			want: []string{
				"https://example.com/autodiscover/autodiscover.xml",
				"https://autodiscover.example.com/autodiscover/autodiscover.xml",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, autodiscoverCandidates(tt.hint, tt.domain))
		})
	}
}

func TestAutodiscoverRequest(t *testing.T) {
	doc, err := soap.ParseDocument(autodiscoverRequest("o'neil&co@example.com"))
	require.NoError(t, err)
	root := doc.Root()

	assert.Equal(t, "Autodiscover", root.Name())
	req := root.FirstChildByName("Request")
	assert.Equal(t, "o'neil&co@example.com", req.ChildValue("EMailAddress"))
	assert.Equal(t, autodiscoverResponseSchema, req.ChildValue("AcceptableResponseSchema"))
}

func TestParseAutodiscoverResponse(t *testing.T) {
	urls, err := parseAutodiscoverResponse([]byte(autodiscoverResponse))
	require.NoError(t, err)
	assert.Equal(t, "https://mail.example.com/EWS/Exchange.asmx", urls.ASURL)
	assert.Equal(t, "https://mail.example.com/OAB/abc/", urls.OABURL)

	failures := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"not xml", "<html>", "failed to parse autodiscover response XML"},
		{"wrong root", "<Other/>", "<Autodiscover>"},
		{"no response", "<Autodiscover/>", "<Response>"},
		{"no account", "<Autodiscover><Response/></Autodiscover>", "<Account>"},
		{
			"no oab url",
			"<Autodiscover><Response><Account><Protocol><ASUrl>https://x/EWS/Exchange.asmx</ASUrl></Protocol></Account></Response></Autodiscover>",
			"<ASUrl> and <OABUrl>",
		},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAutodiscoverResponse([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAutodiscoverArguments(t *testing.T) {
	tests := []struct {
		name    string
		config  *ConnectionConfig
		wantErr string
	}{
		{"nil config", nil, "both email and password must be provided"},
		{"no email", &ConnectionConfig{Password: "pw"}, "both email and password must be provided"},
		{"no password", &ConnectionConfig{Email: "user@example.com"}, "both email and password must be provided"},
		{"no at sign", &ConnectionConfig{Email: "user", Password: "pw"}, "Wrong email id"},
		{"no domain", &ConnectionConfig{Email: "user@", Password: "pw"}, "Wrong email id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Autodiscover(context.Background(), tt.config)
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestAutodiscover(t *testing.T) {
	fs := newFakeServer(t, staticReply(autodiscoverResponse))

	urls, err := Autodiscover(context.Background(), &ConnectionConfig{
		URI:        fs.URL + "/EWS/Exchange.asmx",
		Email:      "user@example.invalid",
		Password:   "secret",
		AuthMethod: AuthMethodBasic,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://mail.example.com/EWS/Exchange.asmx", urls.ASURL)

	req := fs.last()
	assert.Equal(t, "libews/0.1", req.Header.Get("User-Agent"))
	r := &http.Request{Header: req.Header}
	user, pass, ok := r.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "user@example.invalid", user, "username defaults to the email address")
	assert.Equal(t, "secret", pass)

	doc, err := soap.ParseDocument([]byte(req.Raw))
	require.NoError(t, err)
	assert.Equal(t, "user@example.invalid", doc.Root().FirstChildByName("Request").ChildValue("EMailAddress"))
}

func TestAutodiscoverAllCandidatesFail(t *testing.T) {
	fs := newFakeServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := Autodiscover(context.Background(), &ConnectionConfig{
		URI:        fs.URL,
		Email:      "user@example.invalid",
		Password:   "secret",
		AuthMethod: AuthMethodBasic,
		Timeout:    5 * time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), fs.URL+"/autodiscover/autodiscover.xml")
	assert.Contains(t, err.Error(), "unexpected response from server (code 500)")
}
