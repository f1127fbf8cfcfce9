package provider

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	tfresource "github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

// oofConfig builds a resource config with the given attributes set; the
// rest are null.
func oofConfig(t *testing.T, values map[string]string) tfsdk.Config {
	t.Helper()
	ctx := context.Background()

	r := &OutOfOfficeResource{}
	schemaResp := &resource.SchemaResponse{}
	r.Schema(ctx, resource.SchemaRequest{}, schemaResp)
	require.False(t, schemaResp.Diagnostics.HasError())

	attrs := map[string]tftypes.Value{}
	for name := range schemaResp.Schema.Attributes {
		if v, ok := values[name]; ok {
			attrs[name] = tftypes.NewValue(tftypes.String, v)
		} else {
			attrs[name] = tftypes.NewValue(tftypes.String, nil)
		}
	}

	return tfsdk.Config{
		Schema: schemaResp.Schema,
		Raw:    tftypes.NewValue(schemaResp.Schema.Type().TerraformType(ctx), attrs),
	}
}

func TestOutOfOfficeResource_ValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr string
	}{
		{
			name:   "enabled without window",
			values: map[string]string{"state": "Enabled"},
		},
		{
			name:   "scheduled",
			values: map[string]string{"state": "scheduled", "start_time": "2024-07-01T08:00:00Z", "end_time": "2024-07-14T18:00:00+02:00"},
		},
		{
			name:    "scheduled without start",
			values:  map[string]string{"state": "Scheduled", "end_time": "2024-07-14T18:00:00Z"},
			wantErr: "start_time is required",
		},
		{
			name:    "scheduled without end",
			values:  map[string]string{"state": "SCHEDULED", "start_time": "2024-07-01T08:00:00Z"},
			wantErr: "end_time is required",
		},
		{
			name:    "end before start",
			values:  map[string]string{"state": "Scheduled", "start_time": "2024-07-14T08:00:00Z", "end_time": "2024-07-01T08:00:00Z"},
			wantErr: "end_time must be after start_time",
		},
		{
			name:    "same instant in other zones",
			values:  map[string]string{"state": "Scheduled", "start_time": "2024-07-01T10:00:00+02:00", "end_time": "2024-07-01T08:00:00Z"},
			wantErr: "end_time must be after start_time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &OutOfOfficeResource{}
			resp := &resource.ValidateConfigResponse{}
			r.ValidateConfig(context.Background(), resource.ValidateConfigRequest{Config: oofConfig(t, tt.values)}, resp)

			if tt.wantErr == "" {
				assert.False(t, resp.Diagnostics.HasError(), "%v", resp.Diagnostics)
				return
			}
			require.True(t, resp.Diagnostics.HasError())
			assert.Contains(t, resp.Diagnostics.Errors()[0].Detail(), tt.wantErr)
		})
	}
}

func TestChoiceValue(t *testing.T) {
	assert.Equal(t, "enabled", choiceValue(types.StringValue("enabled"), ews.OOFStateEnabled, oofStates).ValueString())
	assert.Equal(t, ews.OOFStateDisabled, choiceValue(types.StringValue("enabled"), ews.OOFStateDisabled, oofStates).ValueString())
	assert.Equal(t, ews.OOFAudienceKnown, choiceValue(types.StringNull(), ews.OOFAudienceKnown, oofAudiences).ValueString())
	assert.Equal(t, ews.OOFAudienceAll, choiceValue(types.StringUnknown(), ews.OOFAudienceAll, oofAudiences).ValueString())
}

func TestTimeValue(t *testing.T) {
	instant := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		prior  types.String
		actual time.Time
		want   types.String
	}{
		{name: "zero", prior: types.StringValue("2024-07-01T08:00:00Z"), actual: time.Time{}, want: types.StringNull()},
		{name: "no prior", prior: types.StringNull(), actual: instant, want: types.StringValue("2024-07-01T08:00:00Z")},
		{name: "same instant other zone", prior: types.StringValue("2024-07-01T10:00:00+02:00"), actual: instant, want: types.StringValue("2024-07-01T10:00:00+02:00")},
		{name: "changed", prior: types.StringValue("2024-07-02T08:00:00Z"), actual: instant, want: types.StringValue("2024-07-01T08:00:00Z")},
		{name: "unparsable prior", prior: types.StringValue("tomorrow"), actual: instant, want: types.StringValue("2024-07-01T08:00:00Z")},
		{name: "local actual", prior: types.StringUnknown(), actual: instant.In(time.FixedZone("CEST", 2*3600)), want: types.StringValue("2024-07-01T08:00:00Z")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeValue(tt.prior, tt.actual))
		})
	}
}

func TestOutOfOfficeResource_updateModelFromSettings(t *testing.T) {
	r := &OutOfOfficeResource{conn: newFakeEWS(t).connect(t)}
	data := OutOfOfficeResourceModel{
		State:            types.StringValue("scheduled"),
		ExternalAudience: types.StringValue("known"),
		StartTime:        types.StringValue("2024-07-01T10:00:00+02:00"),
		EndTime:          types.StringNull(),
	}

	r.updateModelFromSettings(&data, ews.OOFSettings{
		State:            ews.OOFStateScheduled,
		ExternalAudience: ews.OOFAudienceAll,
		Start:            time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC),
		End:              time.Date(2024, 7, 14, 18, 0, 0, 0, time.UTC),
		InternalReply:    "Away",
	})

	assert.Equal(t, "user@example.com", data.ID.ValueString())
	assert.Equal(t, "scheduled", data.State.ValueString())
	assert.Equal(t, ews.OOFAudienceAll, data.ExternalAudience.ValueString())
	assert.Equal(t, "2024-07-01T10:00:00+02:00", data.StartTime.ValueString())
	assert.Equal(t, "2024-07-14T18:00:00Z", data.EndTime.ValueString())
	assert.Equal(t, "Away", data.InternalReply.ValueString())
	assert.Equal(t, "", data.ExternalReply.ValueString())
}

func TestAccOutOfOfficeResource_basic(t *testing.T) {
	resourceName := "ews_out_of_office.test"
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	end := start.Add(7 * 24 * time.Hour)

	tfresource.Test(t, tfresource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []tfresource.TestStep{
			{
				Config: TestProviderConfig() + `
resource "ews_out_of_office" "test" {
  state          = "Enabled"
  internal_reply = "Out of the office."
}
`,
				Check: tfresource.ComposeAggregateTestCheckFunc(
					tfresource.TestCheckResourceAttrSet(resourceName, "id"),
					tfresource.TestCheckResourceAttr(resourceName, "state", ews.OOFStateEnabled),
					tfresource.TestCheckResourceAttr(resourceName, "external_audience", ews.OOFAudienceAll),
				),
			},
			{
				Config: TestProviderConfig() + `
resource "ews_out_of_office" "test" {
  state             = "Scheduled"
  external_audience = "Known"
  start_time        = "` + start.Format(time.RFC3339) + `"
  end_time          = "` + end.Format(time.RFC3339) + `"
  internal_reply    = "On vacation."
  external_reply    = "On vacation."
}
`,
				Check: tfresource.ComposeAggregateTestCheckFunc(
					tfresource.TestCheckResourceAttr(resourceName, "state", ews.OOFStateScheduled),
					tfresource.TestCheckResourceAttr(resourceName, "start_time", start.Format(time.RFC3339)),
					tfresource.TestCheckResourceAttr(resourceName, "end_time", end.Format(time.RFC3339)),
				),
			},
			{
				ResourceName:      resourceName,
				ImportState:       true,
				ImportStateVerify: true,
			},
		},
	})
}

func TestAccOutOfOfficeResource_invalidSchedule(t *testing.T) {
	tfresource.Test(t, tfresource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		Steps: []tfresource.TestStep{
			{
				Config: TestProviderConfig() + `
resource "ews_out_of_office" "test" {
  state = "Scheduled"
}
`,
				ExpectError: regexp.MustCompile(`start_time is required`),
			},
		},
	})
}
