package ews

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// recordingNode returns a node whose parser records the names of the
// elements it is handed.
func recordingNode(t *testing.T, ctx context.Context, op string, parseErr error) (*requestNode, *[]string) {
	t.Helper()
	var seen []string
	n, err := newRequestNode(ctx, soap.NewMessage(op, "", "", ""), PriorityDefault, func(p *soap.Parameter) error {
		seen = append(seen, p.Name())
		return parseErr
	}, nil)
	require.NoError(t, err)
	return n, &seen
}

func TestDemux(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		parseErr error
		wantKind ErrorKind
		wantMsg  string
		wantSeen []string
	}{
		{
			name:     "single success",
			status:   http.StatusOK,
			body:     responseMessages("GetItem", successMessage("GetItem", "<m:Items/>")),
			wantKind: KindNone,
			wantSeen: []string{"GetItemResponseMessage"},
		},
		{
			name:   "server error stops processing",
			status: http.StatusOK,
			body: responseMessages("GetItem",
				successMessage("GetItem", ""),
				errorMessage("GetItem", "ErrorItemNotFound", "The specified object was not found in the store."),
				successMessage("GetItem", "")),
			wantKind: KindItemNotFound,
			wantMsg:  "The specified object was not found in the store.",
			wantSeen: []string{"GetItemResponseMessage"},
		},
		{
			name:   "corrupt data is still parsed",
			status: http.StatusOK,
			body: responseMessages("GetItem",
				errorMessage("GetItem", "ErrorCorruptData", "bad item"),
				successMessage("GetItem", "")),
			wantKind: KindNone,
			wantSeen: []string{"GetItemResponseMessage", "GetItemResponseMessage"},
		},
		{
			name:   "invalid property request is still parsed",
			status: http.StatusOK,
			body: responseMessages("GetItem",
				errorMessage("GetItem", "ErrorInvalidPropertyRequest", "bad property")),
			wantKind: KindNone,
			wantSeen: []string{"GetItemResponseMessage"},
		},
		{
			name:   "unexpected element skipped",
			status: http.StatusOK,
			body: responseMessages("GetItem",
				"<m:Unexpected/>",
				successMessage("GetItem", "")),
			wantKind: KindNone,
			wantSeen: []string{"GetItemResponseMessage"},
		},
		{
			name:   "lowercase response class",
			status: http.StatusOK,
			body: envelope(`<m:GetItemResponse><m:ResponseMessages><m:GetItemResponseMessage ResponseClass="error">` +
				`<m:ResponseCode>ErrorAccessDenied</m:ResponseCode></m:GetItemResponseMessage></m:ResponseMessages></m:GetItemResponse>`),
			wantKind: KindAccessDenied,
		},
		{
			name:   "warning is success",
			status: http.StatusOK,
			body: envelope(`<m:GetItemResponse><m:ResponseMessages><m:GetItemResponseMessage ResponseClass="Warning">` +
				`<m:ResponseCode>ErrorBatchProcessingStopped</m:ResponseCode></m:GetItemResponseMessage></m:ResponseMessages></m:GetItemResponse>`),
			wantKind: KindNone,
			wantSeen: []string{"GetItemResponseMessage"},
		},
		{
			name:   "free busy array",
			status: http.StatusOK,
			body: envelope(`<GetUserAvailabilityResponse xmlns="http://schemas.microsoft.com/exchange/services/2006/messages">` +
				`<FreeBusyResponseArray><FreeBusyResponse><ResponseMessage ResponseClass="Success"><ResponseCode>NoError</ResponseCode></ResponseMessage>` +
				`<FreeBusyView/></FreeBusyResponse><FreeBusyResponse><ResponseMessage ResponseClass="Success"/></FreeBusyResponse>` +
				`</FreeBusyResponseArray></GetUserAvailabilityResponse>`),
			wantKind: KindNone,
			wantSeen: []string{"FreeBusyResponse", "FreeBusyResponse"},
		},
		{
			name:   "free busy error",
			status: http.StatusOK,
			body: envelope(`<GetUserAvailabilityResponse xmlns="http://schemas.microsoft.com/exchange/services/2006/messages">` +
				`<FreeBusyResponseArray><FreeBusyResponse><ResponseMessage ResponseClass="Error"><MessageText>no mailbox</MessageText>` +
				`<ResponseCode>ErrorMailRecipientNotFound</ResponseCode></ResponseMessage></FreeBusyResponse>` +
				`</FreeBusyResponseArray></GetUserAvailabilityResponse>`),
			wantKind: KindMailRecipientNotFound,
			wantMsg:  "no mailbox",
		},
		{
			name:   "delegate user messages",
			status: http.StatusOK,
			body: envelope(`<m:GetDelegateResponse ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode><m:ResponseMessages>` +
				`<m:DelegateUserResponseMessageType ResponseClass="Success"><m:ResponseCode>NoError</m:ResponseCode></m:DelegateUserResponseMessageType>` +
				`</m:ResponseMessages></m:GetDelegateResponse>`),
			wantKind: KindNone,
			wantSeen: []string{"DelegateUserResponseMessageType"},
		},
		{
			name:   "oof sibling",
			status: http.StatusOK,
			body: envelope(`<GetUserOofSettingsResponse xmlns="http://schemas.microsoft.com/exchange/services/2006/messages">` +
				`<ResponseMessage ResponseClass="Success"><ResponseCode>NoError</ResponseCode></ResponseMessage>` +
				`<OofSettings xmlns="http://schemas.microsoft.com/exchange/services/2006/types"><OofState>Disabled</OofState></OofSettings>` +
				`</GetUserOofSettingsResponse>`),
			wantKind: KindNone,
			wantSeen: []string{"OofSettings"},
		},
		{
			name:   "oof error",
			status: http.StatusOK,
			body: envelope(`<GetUserOofSettingsResponse xmlns="http://schemas.microsoft.com/exchange/services/2006/messages">` +
				`<ResponseMessage ResponseClass="Error"><ResponseCode>ErrorAccessDenied</ResponseCode></ResponseMessage>` +
				`</GetUserOofSettingsResponse>`),
			wantKind: KindAccessDenied,
		},
		{
			name:     "soap fault",
			status:   http.StatusInternalServerError,
			body:     envelope(`<s:Fault><faultcode>a:ErrorSchemaValidation</faultcode><faultstring>The request failed schema validation.</faultstring></s:Fault>`),
			wantKind: KindUnknown,
			wantMsg:  "The request failed schema validation.",
		},
		{
			name:     "no container",
			status:   http.StatusOK,
			body:     envelope(`<m:SomethingElse/>`),
			wantKind: KindUnknown,
			wantMsg:  noContainerMessage,
		},
		{
			name:     "garbage",
			status:   http.StatusBadGateway,
			body:     "<html><body>proxy error",
			wantKind: KindNoResponse,
		},
		{
			name:     "empty body",
			status:   http.StatusOK,
			body:     "",
			wantKind: KindNoResponse,
		},
		{
			name:     "unauthorized never reaches the parser",
			status:   http.StatusUnauthorized,
			body:     responseMessages("GetItem", successMessage("GetItem", "")),
			wantKind: KindAuthenticationFailed,
			wantMsg:  "Authentication failed",
		},
		{
			name:     "parser error",
			status:   http.StatusOK,
			body:     responseMessages("GetItem", successMessage("GetItem", ""), successMessage("GetItem", "")),
			parseErr: errors.New("bad payload"),
			wantKind: KindUnknown,
			wantMsg:  "failed to parse GetItem response",
			wantSeen: []string{"GetItemResponseMessage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, seen := recordingNode(t, context.Background(), "GetItem", tt.parseErr)

			err := demux(context.Background(), n, tt.status, "", []byte(tt.body))

			assert.Equal(t, tt.wantSeen, *seen)
			if tt.wantKind == KindNone {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, GetErrorKind(err), "error: %v", err)
			if tt.wantMsg != "" {
				var e *Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.wantMsg, e.Message)
			}
			assert.Equal(t, tt.wantMsg == noContainerMessage, IsEmptyResponseError(err))
		})
	}
}

func TestDemuxCancelledNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n, seen := recordingNode(t, ctx, "GetItem", nil)
	cancel()

	err := demux(context.Background(), n, http.StatusOK, "", []byte(responseMessages("GetItem", successMessage("GetItem", ""))))

	assert.True(t, IsCancelledError(err))
	assert.Empty(t, *seen)
}

func TestDemuxReasonPhrase(t *testing.T) {
	n, _ := recordingNode(t, context.Background(), "GetItem", nil)

	err := demux(context.Background(), n, http.StatusServiceUnavailable, "", []byte("down"))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindNoResponse, e.Kind)
	assert.Equal(t, "No response: Service Unavailable", e.Message)
}

func TestIsResponseMessageName(t *testing.T) {
	assert.True(t, isResponseMessageName("GetItemResponseMessage"))
	assert.True(t, isResponseMessageName("ResponseMessage"))
	assert.True(t, isResponseMessageName("FreeBusyResponse"))
	assert.True(t, isResponseMessageName("DelegateUserResponseMessageType"))
	assert.False(t, isResponseMessageName("GetItemResponse"))
	assert.False(t, isResponseMessageName("Message"))
}
