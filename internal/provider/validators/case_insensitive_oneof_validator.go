package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
)

var _ validator.String = caseInsensitiveOneOfValidator{}

// caseInsensitiveOneOfValidator accepts any spelling of one of a fixed set
// of EWS enumeration values, e.g. "harddelete" for "HardDelete".
type caseInsensitiveOneOfValidator struct {
	validValues []string
}

func (v caseInsensitiveOneOfValidator) Description(_ context.Context) string {
	return fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(v.validValues, ", "))
}

func (v caseInsensitiveOneOfValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v caseInsensitiveOneOfValidator) ValidateString(_ context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if Canonical(value, v.validValues...) != "" {
		return
	}

	response.Diagnostics.AddAttributeError(
		request.Path,
		"Invalid Value",
		fmt.Sprintf("The value %q is not valid. Must be one of: %s (case-insensitive)",
			value, strings.Join(v.validValues, ", ")),
	)
}

// CaseInsensitiveOneOf returns a validator which accepts any of values,
// ignoring case and surrounding whitespace. Unknown and null values pass.
func CaseInsensitiveOneOf(values ...string) validator.String {
	return caseInsensitiveOneOfValidator{validValues: values}
}

// Canonical returns the entry of values matching value case-insensitively,
// or "" when none does.
func Canonical(value string, values ...string) string {
	value = strings.TrimSpace(value)
	for _, v := range values {
		if strings.EqualFold(value, v) {
			return v
		}
	}
	return ""
}
