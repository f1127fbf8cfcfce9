package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/vaterlangen/evolution-ews/internal/ews"
	"github.com/vaterlangen/evolution-ews/internal/provider/validators"
)

var _ datasource.DataSource = &DelegateDataSource{}

var delegateObjectType = types.ObjectType{
	AttrTypes: map[string]attr.Type{
		"sid":                                types.StringType,
		"primary_smtp_address":               types.StringType,
		"display_name":                       types.StringType,
		"calendar":                           types.StringType,
		"contacts":                           types.StringType,
		"inbox":                              types.StringType,
		"tasks":                              types.StringType,
		"notes":                              types.StringType,
		"journal":                            types.StringType,
		"receive_copies_of_meeting_messages": types.BoolType,
		"view_private_items":                 types.BoolType,
	},
}

func NewDelegateDataSource() datasource.DataSource {
	return &DelegateDataSource{}
}

type DelegateDataSource struct {
	conn *ews.Connection
}

type DelegateDataSourceModel struct {
	ID                 types.String `tfsdk:"id"`
	Mailbox            types.String `tfsdk:"mailbox"`
	IncludePermissions types.Bool   `tfsdk:"include_permissions"`
	Delegates          types.List   `tfsdk:"delegates"`
}

func (d *DelegateDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_delegate"
}

func (d *DelegateDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	permission := func(folder string) schema.StringAttribute {
		return schema.StringAttribute{
			MarkdownDescription: "Permission level on the " + folder + " folder: `None`, `Reviewer`, `Author`, `Editor` or `Custom`.",
			Computed:            true,
		}
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists the delegates of a mailbox and their folder permissions.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The mailbox address.",
				Computed:            true,
			},
			"mailbox": schema.StringAttribute{
				MarkdownDescription: "Mailbox to inspect. Defaults to the configured mailbox.",
				Optional:            true,
				Validators: []validator.String{
					validators.IsSMTPAddress(),
				},
			},
			"include_permissions": schema.BoolAttribute{
				MarkdownDescription: "Return folder permission levels. Defaults to `true`.",
				Optional:            true,
			},
			"delegates": schema.ListNestedAttribute{
				MarkdownDescription: "Delegates in server order.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"sid":                                schema.StringAttribute{Computed: true},
						"primary_smtp_address":               schema.StringAttribute{Computed: true},
						"display_name":                       schema.StringAttribute{Computed: true},
						"calendar":                           permission("Calendar"),
						"contacts":                           permission("Contacts"),
						"inbox":                              permission("Inbox"),
						"tasks":                              permission("Tasks"),
						"notes":                              permission("Notes"),
						"journal":                            permission("Journal"),
						"receive_copies_of_meeting_messages": schema.BoolAttribute{Computed: true},
						"view_private_items":                 schema.BoolAttribute{Computed: true},
					},
				},
			},
		},
	}
}

func (d *DelegateDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if pd := providerData(req.ProviderData, &resp.Diagnostics); pd != nil {
		d.conn = pd.Conn
	}
}

func (d *DelegateDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data DelegateDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	mailbox := data.Mailbox.ValueString()
	if mailbox == "" {
		mailbox = d.conn.Email()
	}
	if mailbox == "" {
		resp.Diagnostics.AddError(
			"Mailbox Address Unknown",
			"Set `mailbox` here or `email` on the provider.",
		)
		return
	}
	includePerms := data.IncludePermissions.IsNull() || data.IncludePermissions.ValueBool()

	done := ews.LogDataSourceOperation(ctx, "ews_delegate", "read", map[string]any{"mailbox": mailbox})
	delegates, err := d.conn.GetDelegate(ctx, ews.PriorityDefault, mailbox, includePerms)
	if ews.IsNotFoundError(err) || ews.IsEmptyResponseError(err) {
		delegates, err = nil, nil
	}
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Delegates",
			fmt.Sprintf("Could not read delegates of %s: %s", mailbox, err.Error()),
		)
		return
	}

	elements := make([]attr.Value, 0, len(delegates))
	for _, del := range delegates {
		if del == nil {
			continue
		}
		obj, diags := types.ObjectValue(delegateObjectType.AttrTypes, map[string]attr.Value{
			"sid":                                types.StringValue(del.User.SID),
			"primary_smtp_address":               types.StringValue(del.User.PrimarySMTPAddress),
			"display_name":                       types.StringValue(del.User.DisplayName),
			"calendar":                           types.StringValue(string(del.Calendar)),
			"contacts":                           types.StringValue(string(del.Contacts)),
			"inbox":                              types.StringValue(string(del.Inbox)),
			"tasks":                              types.StringValue(string(del.Tasks)),
			"notes":                              types.StringValue(string(del.Notes)),
			"journal":                            types.StringValue(string(del.Journal)),
			"receive_copies_of_meeting_messages": types.BoolValue(del.ReceiveCopiesOfMeetingMessages),
			"view_private_items":                 types.BoolValue(del.ViewPrivateItems),
		})
		resp.Diagnostics.Append(diags...)
		elements = append(elements, obj)
	}
	list, diags := types.ListValue(delegateObjectType, elements)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(mailbox)
	data.Delegates = list

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
