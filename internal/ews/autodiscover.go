package ews

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"golang.org/x/sync/errgroup"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

const (
	autodiscoverUserAgent = "libews/0.1"
	autodiscoverPath      = "/autodiscover/autodiscover.xml"

	autodiscoverRequestSchema  = "http://schemas.microsoft.com/exchange/autodiscover/outlook/requestschema/2006"
	autodiscoverResponseSchema = "http://schemas.microsoft.com/exchange/autodiscover/outlook/responseschema/2006a"
)

// URLs are the service endpoints found by Autodiscover.
type URLs struct {
	ASURL  string // EWS endpoint
	OABURL string // offline address book
}

// Autodiscover finds the EWS endpoint for config.Email. config.URI, when
// set, is only a hint for candidate hosts and the URL scheme. All candidate
// URLs are queried concurrently; the first valid answer wins. When every
// candidate fails the error of the first candidate is returned.
func Autodiscover(ctx context.Context, config *ConnectionConfig) (*URLs, error) {
	if config == nil || config.Email == "" || config.Password == "" {
		return nil, errors.New("both email and password must be provided")
	}

	at := strings.IndexByte(config.Email, '@')
	if at < 0 || at == len(config.Email)-1 {
		return nil, errors.New("Wrong email id")
	}
	domain := config.Email[at+1:]

	cfg := *config
	if cfg.URI == "" {
		cfg.URI = "https://" + domain + autodiscoverPath
	}
	if cfg.Username == "" {
		cfg.Username = cfg.Email
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}

	client, err := newHTTPClient(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	defer client.CloseIdleConnections()

	candidates := autodiscoverCandidates(config.URI, domain)
	body := autodiscoverRequest(cfg.Email)

	LogConnectionEvent(ctx, "autodiscover_started", map[string]any{
		"email":      cfg.Email,
		"candidates": candidates,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		g      errgroup.Group
		once   sync.Once
		result *URLs
		errs   = make([]error, len(candidates))
	)
	for i, candidate := range candidates {
		g.Go(func() error {
			urls, err := autodiscoverPost(ctx, client, &cfg, candidate, body)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", candidate, err)
				return nil
			}
			once.Do(func() {
				result = urls
				cancel()
			})
			return nil
		})
	}
	_ = g.Wait()

	if result != nil {
		LogConnectionEvent(ctx, "autodiscover_succeeded", map[string]any{"as_url": result.ASURL})
		return result, nil
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return nil, errors.New("autodiscover found no candidate URL")
}

// autodiscoverCandidates returns, in order of preference, the hosts of
// ewsURL and domain, each plain and prefixed with "autodiscover.".
func autodiscoverCandidates(ewsURL, domain string) []string {
	scheme := "https"
	var hosts []string

	if ewsURL != "" {
		if u, err := url.Parse(ewsURL); err == nil && u.Host != "" {
			if u.Scheme != "https" {
				scheme = "http"
			}
			hosts = append(hosts, u.Host, "autodiscover."+u.Host)
		}
	}
	hosts = append(hosts, domain, "autodiscover."+domain)

	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, scheme+"://"+h+autodiscoverPath)
	}
	return out
}

func autodiscoverRequest(email string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<Autodiscover xmlns="` + autodiscoverRequestSchema + `"><Request><EMailAddress>`)
	_ = xml.EscapeText(&b, []byte(email))
	b.WriteString(`</EMailAddress><AcceptableResponseSchema>` + autodiscoverResponseSchema + `</AcceptableResponseSchema></Request></Autodiscover>`)
	return b.Bytes()
}

func autodiscoverPost(ctx context.Context, client *http.Client, cfg *ConnectionConfig, target string, body []byte) (*URLs, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("User-Agent", autodiscoverUserAgent)
	req.SetBasicAuth(cfg.Username, cfg.Password)

	dumpRequest(ctx, req, body)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	dumpResponse(ctx, resp, data)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response from server (code %d)", resp.StatusCode)
	}
	return parseAutodiscoverResponse(data)
}

func parseAutodiscoverResponse(data []byte) (*URLs, error) {
	doc, err := soap.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse autodiscover response XML: %w", err)
	}
	root := doc.Root()
	if root.Name() != "Autodiscover" {
		return nil, errors.New("failed to find <Autodiscover> element")
	}
	response := root.FirstChildByName("Response")
	if response == nil {
		return nil, errors.New("failed to find <Response> element")
	}
	account := response.FirstChildByName("Account")
	if account == nil {
		return nil, errors.New("failed to find <Account> element")
	}

	for _, protocol := range account.ChildrenByName("Protocol") {
		urls := &URLs{
			ASURL:  protocol.ChildValue("ASUrl"),
			OABURL: protocol.ChildValue("OABUrl"),
		}
		if urls.ASURL != "" && urls.OABURL != "" {
			return urls, nil
		}
	}
	return nil, errors.New("failed to find <ASUrl> and <OABUrl> in autodiscover response")
}
