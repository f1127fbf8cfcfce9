package ews

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ChrisTrenkamp/goxpath"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

const (
	responseMessageSuffix = "ResponseMessage"
	freeBusyResponse      = "FreeBusyResponse"
	delegateUserResponse  = "DelegateUserResponseMessageType"

	noContainerMessage = "No <ResponseMessages> or <FreeBusyResponseArray> or SOAP <faultstring> in response"
)

// Result containers below the operation response element. EWS servers
// differ in the prefixes they use for messages elements, so these match on
// local names.
var (
	responseMessagesPath      = goxpath.MustParse(`/s:Envelope/s:Body/*/*[local-name()='ResponseMessages']`)
	freeBusyResponseArrayPath = goxpath.MustParse(`/s:Envelope/s:Body/*/*[local-name()='FreeBusyResponseArray']`)
	responseMessagePath       = goxpath.MustParse(`/s:Envelope/s:Body/*/*[local-name()='ResponseMessage']`)
)

// demux turns an HTTP exchange into the node's result: it checks the HTTP
// status, locates the response messages, checks each one's ResponseClass and
// feeds it to the node parser. Parser errors and server errors stop
// processing of the remaining messages.
func demux(ctx context.Context, n *requestNode, statusCode int, reason string, body []byte) error {
	if n.cancelled() {
		return newCancelledError(n.operation, context.Cause(n.ctx))
	}

	if statusCode == http.StatusUnauthorized {
		return newError(n.operation, KindAuthenticationFailed, "Authentication failed")
	}

	resp, err := soap.ParseResponse(body)
	if err != nil {
		if reason == "" {
			reason = http.StatusText(statusCode)
		}
		return newNoResponseError(n.operation, reason, err)
	}

	if container := resp.SelectFirst(responseMessagesPath); container != nil {
		return demuxMessages(ctx, n, container)
	}
	if container := resp.SelectFirst(freeBusyResponseArrayPath); container != nil {
		return demuxMessages(ctx, n, container)
	}

	// Get/SetUserOofSettings answer with a single ResponseMessage whose
	// payload is the following sibling.
	if msg := resp.SelectFirst(responseMessagePath); msg != nil {
		if err := checkResponseStatus(ctx, n.operation, msg); err != nil {
			return err
		}
		return runParser(n, msg.NextSibling())
	}

	if fault := resp.FaultString(); fault != "" {
		return newError(n.operation, KindUnknown, fault)
	}
	return newError(n.operation, KindUnknown, noContainerMessage)
}

func demuxMessages(ctx context.Context, n *requestNode, container *soap.Parameter) error {
	for _, child := range container.Children() {
		name := child.Name()
		if !isResponseMessageName(name) {
			tflog.SubsystemWarn(ctx, SubsystemCore, "Unexpected element in place of ResponseMessage", map[string]any{
				"operation":  n.operation,
				"request_id": n.id,
				"element":    name,
			})
			continue
		}

		status := child
		if name == freeBusyResponse {
			status = child.FirstChild()
		}
		if err := checkResponseStatus(ctx, n.operation, status); err != nil {
			return err
		}

		if err := runParser(n, child); err != nil {
			return err
		}
	}
	return nil
}

func isResponseMessageName(name string) bool {
	if name == freeBusyResponse || name == delegateUserResponse {
		return true
	}
	return len(name) >= len(responseMessageSuffix) && strings.HasSuffix(name, responseMessageSuffix)
}

// checkResponseStatus returns the classified error when ResponseClass is
// "Error". Non-fatal kinds are logged and reported as success.
func checkResponseStatus(ctx context.Context, operation string, msg *soap.Parameter) error {
	if !strings.EqualFold(msg.Property("ResponseClass"), "Error") {
		return nil
	}

	code := msg.ChildValue("ResponseCode")
	text := msg.ChildValue("MessageText")
	err := newServerError(operation, code, text)

	if isNonFatalKind(err.Kind) {
		tflog.SubsystemDebug(ctx, SubsystemCore, "Ignoring non-fatal response error", map[string]any{
			"operation":     operation,
			"response_code": code,
			"message":       text,
		})
		return nil
	}

	return err
}

func runParser(n *requestNode, param *soap.Parameter) error {
	if n.parse == nil {
		return nil
	}
	if err := n.parse(param); err != nil {
		e := newError(n.operation, KindUnknown, fmt.Sprintf("failed to parse %s response", n.operation))
		e.Cause = err
		return e
	}
	return nil
}
