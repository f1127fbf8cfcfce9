package provider

import (
	"strconv"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"
	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
)

// testAccProtoV6ProviderFactories is used to instantiate a provider during acceptance testing.
// The factory function is called for each Terraform CLI command to create a provider
// server that the CLI can connect to and interact with.
var testAccProtoV6ProviderFactories = map[string]func() (tfprotov6.ProviderServer, error){
	"ews": providerserver.NewProtocol6WithError(New("test")()),
}

func testAccPreCheck(t *testing.T) {
	testAccPreCheckWithConfig(t)
}

func TestAccProvider_whoami(t *testing.T) {
	config := testAccPreCheckWithConfig(t)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: TestProviderConfig() + `data "ews_whoami" "test" {}`,
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.ews_whoami.test", "url", config.URL),
					resource.TestCheckResourceAttr("data.ews_whoami.test", "username", config.Username),
					resource.TestCheckResourceAttrSet("data.ews_whoami.test", "email"),
					resource.TestCheckResourceAttrSet("data.ews_whoami.test", "server_version"),
				),
			},
		},
	})
}

func TestAccProvider_folders(t *testing.T) {
	resource.Test(t, resource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: TestProviderConfig() + `data "ews_folders" "test" { folder_class = "IPF.Note" }`,
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttrSet("data.ews_folders.test", "sync_state"),
					resource.TestCheckResourceAttrSet("data.ews_folders.test", "folders.0.id"),
				),
			},
		},
	})
}

func TestAccProvider_freeBusy(t *testing.T) {
	config := testAccPreCheckWithConfig(t)
	if config.PeerEmail == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestPeerEmail)
	}

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: TestProviderConfig() + `
data "ews_free_busy" "test" {
  emails     = [` + strconv.Quote(config.PeerEmail) + `]
  start_time = "2026-01-05T08:00:00Z"
  end_time   = "2026-01-05T18:00:00Z"
}

data "ews_resolve_names" "test" {
  name = ` + strconv.Quote(config.PeerEmail) + `
}`,
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.ews_free_busy.test", "schedules.#", "1"),
					resource.TestCheckResourceAttr("data.ews_free_busy.test", "schedules.0.email", config.PeerEmail),
					resource.TestCheckResourceAttr("data.ews_resolve_names.test", "mailboxes.0.email", config.PeerEmail),
				),
			},
		},
	})
}
