package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/vaterlangen/evolution-ews/internal/ews"
	"github.com/vaterlangen/evolution-ews/internal/provider/validators"
)

var _ datasource.DataSource = &DistributionListDataSource{}

func NewDistributionListDataSource() datasource.DataSource {
	return &DistributionListDataSource{}
}

// DistributionListDataSource expands a distribution list one level.
type DistributionListDataSource struct {
	conn *ews.Connection
}

type DistributionListDataSourceModel struct {
	ID               types.String `tfsdk:"id"`
	Email            types.String `tfsdk:"email"`
	Members          types.List   `tfsdk:"members"`
	MemberCount      types.Int64  `tfsdk:"member_count"`
	IncludesLastItem types.Bool   `tfsdk:"includes_last_item"`
}

func (d *DistributionListDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_distribution_list"
}

func (d *DistributionListDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists the direct members of a public distribution list. Nested lists are returned " +
			"as members with `mailbox_type` `PublicDL` and are not expanded.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The distribution list address.",
				Computed:            true,
			},
			"email": schema.StringAttribute{
				MarkdownDescription: "SMTP address of the distribution list.",
				Required:            true,
				Validators: []validator.String{
					validators.IsSMTPAddress(),
				},
			},
			"members": schema.ListNestedAttribute{
				MarkdownDescription: "Direct members in server order.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: mailboxAttributes(),
				},
			},
			"member_count": schema.Int64Attribute{
				MarkdownDescription: "Number of entries in `members`.",
				Computed:            true,
			},
			"includes_last_item": schema.BoolAttribute{
				MarkdownDescription: "False when the server truncated the expansion.",
				Computed:            true,
			},
		},
	}
}

func (d *DistributionListDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if pd := providerData(req.ProviderData, &resp.Diagnostics); pd != nil {
		d.conn = pd.Conn
	}
}

func (d *DistributionListDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data DistributionListDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	email := data.Email.ValueString()
	done := ews.LogDataSourceOperation(ctx, "ews_distribution_list", "read", map[string]any{"email": email})
	result, err := d.conn.ExpandDL(ctx, ews.PriorityDefault, ews.Mailbox{Email: email})
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Expanding Distribution List",
			fmt.Sprintf("Could not expand %s: %s", email, err.Error()),
		)
		return
	}

	members, diags := mailboxesToList(result.Mailboxes)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(email)
	data.Members = members
	data.MemberCount = types.Int64Value(int64(len(members.Elements())))
	data.IncludesLastItem = types.BoolValue(result.IncludesLastItem)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
