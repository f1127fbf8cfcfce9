package provider

import (
	"context"
	"fmt"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

func TestMailboxesToList(t *testing.T) {
	list, diags := mailboxesToList([]*ews.Mailbox{
		{Name: "Jane Doe", Email: "jane@example.com", RoutingType: "SMTP", MailboxType: "Mailbox"},
		nil,
		{Name: "Staff", Email: "staff@example.com", RoutingType: "SMTP", MailboxType: "PublicDL", ItemID: &ews.ItemID{ID: "dl-1"}},
	})
	require.False(t, diags.HasError(), "%v", diags)
	require.Len(t, list.Elements(), 2, "nil mailboxes are skipped")

	var got []struct {
		Name        string `tfsdk:"name"`
		Email       string `tfsdk:"email"`
		RoutingType string `tfsdk:"routing_type"`
		MailboxType string `tfsdk:"mailbox_type"`
		ItemID      string `tfsdk:"item_id"`
	}
	require.False(t, list.ElementsAs(context.Background(), &got, false).HasError())

	assert.Equal(t, "Jane Doe", got[0].Name)
	assert.Equal(t, "", got[0].ItemID)
	assert.Equal(t, "PublicDL", got[1].MailboxType)
	assert.Equal(t, "dl-1", got[1].ItemID)
}

func TestMailboxesToList_Empty(t *testing.T) {
	list, diags := mailboxesToList(nil)
	require.False(t, diags.HasError())
	assert.False(t, list.IsNull(), "an empty result is an empty list, not null")
	assert.Empty(t, list.Elements())
}

func TestContactsToList(t *testing.T) {
	ctx := context.Background()
	list, diags := contactsToList(ctx, []*ews.Contact{
		{
			DisplayName:    "Jane Doe",
			GivenName:      "Jane",
			Surname:        "Doe",
			JobTitle:       "Engineer",
			EmailAddresses: map[string]string{"EmailAddress1": "SMTP:jane@example.com"},
		},
		nil,
	})
	require.False(t, diags.HasError(), "%v", diags)
	require.Len(t, list.Elements(), 1)

	var got []struct {
		DisplayName    string            `tfsdk:"display_name"`
		GivenName      string            `tfsdk:"given_name"`
		Surname        string            `tfsdk:"surname"`
		CompanyName    string            `tfsdk:"company_name"`
		Department     string            `tfsdk:"department"`
		JobTitle       string            `tfsdk:"job_title"`
		OfficeLocation string            `tfsdk:"office_location"`
		EmailAddresses map[string]string `tfsdk:"email_addresses"`
		PhoneNumbers   types.Map         `tfsdk:"phone_numbers"`
	}
	require.False(t, list.ElementsAs(ctx, &got, false).HasError())

	assert.Equal(t, "Engineer", got[0].JobTitle)
	assert.Equal(t, map[string]string{"EmailAddress1": "SMTP:jane@example.com"}, got[0].EmailAddresses)
	assert.False(t, got[0].PhoneNumbers.IsNull(), "missing maps become empty maps")
	assert.Empty(t, got[0].PhoneNumbers.Elements())
}

func TestSearchScopes(t *testing.T) {
	assert.Len(t, searchScopes, 4)
	for name, scope := range searchScopes {
		assert.Equal(t, name, scope.String())
	}
}

func TestAccResolveNamesDataSource_self(t *testing.T) {
	config := testAccPreCheckWithConfig(t)
	if config.Email == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestEmail)
	}

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: TestProviderConfig() + fmt.Sprintf(`
data "ews_resolve_names" "test" {
  name  = %q
  scope = "ActiveDirectory"
}
`, config.Email),
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.ews_resolve_names.test", "mailboxes.#", "1"),
					resource.TestCheckResourceAttr("data.ews_resolve_names.test", "includes_last_item", "true"),
				),
			},
		},
	})
}
