package validators

import (
	"context"
	"fmt"

	"github.com/emersion/go-message/mail"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = smtpAddressValidator{}

type smtpAddressValidator struct{}

func (v smtpAddressValidator) Description(_ context.Context) string {
	return "value must be a bare SMTP address such as user@example.com"
}

func (v smtpAddressValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v smtpAddressValidator) ValidateString(_ context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	addr, err := mail.ParseAddress(value)
	if err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid SMTP Address",
			fmt.Sprintf("The value %q is not a valid SMTP address: %s", value, err),
		)
		return
	}
	if addr.Name != "" || addr.Address != value {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid SMTP Address",
			fmt.Sprintf("The value %q must be a bare address without a display name, e.g. %q", value, addr.Address),
		)
	}
}

// IsSMTPAddress returns a validator for bare mailbox addresses. Unknown and
// null values pass.
func IsSMTPAddress() validator.String {
	return smtpAddressValidator{}
}
