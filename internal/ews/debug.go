package ews

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// DebugEnv names the environment variable controlling wire dumps:
// 1 logs request and response bodies, 2 adds status lines and headers.
// It is read on every exchange so it can be toggled at runtime.
const DebugEnv = "EWS_DEBUG"

func debugLevel() int {
	v := strings.TrimSpace(os.Getenv(DebugEnv))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func dumpRequest(ctx context.Context, req *http.Request, body []byte) {
	level := debugLevel()
	if level < 1 {
		return
	}

	fields := map[string]any{}
	if level >= 2 {
		fields["method"] = req.Method
		fields["url"] = req.URL.String()
		fields["headers"] = sanitizeHeaders(req.Header)
	}
	fields["body"] = string(body)

	tflog.SubsystemInfo(ctx, SubsystemTransport, "EWS request", fields)
}

func dumpResponse(ctx context.Context, resp *http.Response, body []byte) {
	level := debugLevel()
	if level < 1 {
		return
	}

	fields := map[string]any{}
	if level >= 2 {
		fields["status"] = resp.Status
		fields["proto"] = resp.Proto
		fields["headers"] = sanitizeHeaders(resp.Header)
	}
	fields["body"] = string(body)

	tflog.SubsystemInfo(ctx, SubsystemTransport, "EWS response", fields)
}

func sanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie":
			out[k] = "[REDACTED]"
		default:
			out[k] = strings.Join(v, ", ")
		}
	}
	return out
}
