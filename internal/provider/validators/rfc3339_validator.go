package validators

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = rfc3339Validator{}

type rfc3339Validator struct{}

func (v rfc3339Validator) Description(_ context.Context) string {
	return "value must be an RFC 3339 timestamp such as 2026-01-02T15:04:05Z"
}

func (v rfc3339Validator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v rfc3339Validator) ValidateString(_ context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Timestamp",
			fmt.Sprintf("The value %q is not an RFC 3339 timestamp: %s", value, err),
		)
	}
}

// IsRFC3339 returns a validator for RFC 3339 timestamps.
func IsRFC3339() validator.String {
	return rfc3339Validator{}
}
