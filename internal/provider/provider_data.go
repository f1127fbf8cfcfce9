package provider

import (
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/diag"

	"github.com/vaterlangen/evolution-ews/internal/directory"
	"github.com/vaterlangen/evolution-ews/internal/ews"
)

// ProviderData is handed to every resource and data source.
type ProviderData struct {
	Conn *ews.Connection

	// Directory is nil unless a directory domain or URL was configured.
	Directory *directory.Client
	// User is the directory entry of the configured user, when found.
	User *directory.User
}

// providerData unpacks req.ProviderData. It returns nil without a
// diagnostic while the provider is still unconfigured.
func providerData(data any, diags *diag.Diagnostics) *ProviderData {
	if data == nil {
		return nil
	}
	pd, ok := data.(*ProviderData)
	if !ok {
		diags.AddError(
			"Unexpected Provider Data Type",
			fmt.Sprintf("Expected *provider.ProviderData, got: %T. Please report this issue to the provider developers.", data),
		)
		return nil
	}
	return pd
}
