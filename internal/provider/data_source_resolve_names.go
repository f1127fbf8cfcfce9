package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/ews"
	"github.com/vaterlangen/evolution-ews/internal/provider/validators"
)

var _ datasource.DataSource = &ResolveNamesDataSource{}

var searchScopes = map[string]ews.SearchScope{
	ews.SearchActiveDirectory.String():         ews.SearchActiveDirectory,
	ews.SearchActiveDirectoryContacts.String(): ews.SearchActiveDirectoryContacts,
	ews.SearchContacts.String():                ews.SearchContacts,
	ews.SearchContactsActiveDirectory.String(): ews.SearchContactsActiveDirectory,
}

var mailboxObjectType = types.ObjectType{
	AttrTypes: map[string]attr.Type{
		"name":         types.StringType,
		"email":        types.StringType,
		"routing_type": types.StringType,
		"mailbox_type": types.StringType,
		"item_id":      types.StringType,
	},
}

var contactObjectType = types.ObjectType{
	AttrTypes: map[string]attr.Type{
		"display_name":    types.StringType,
		"given_name":      types.StringType,
		"surname":         types.StringType,
		"company_name":    types.StringType,
		"department":      types.StringType,
		"job_title":       types.StringType,
		"office_location": types.StringType,
		"email_addresses": types.MapType{ElemType: types.StringType},
		"phone_numbers":   types.MapType{ElemType: types.StringType},
	},
}

func mailboxAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"name": schema.StringAttribute{
			MarkdownDescription: "Display name.",
			Computed:            true,
		},
		"email": schema.StringAttribute{
			MarkdownDescription: "SMTP address.",
			Computed:            true,
		},
		"routing_type": schema.StringAttribute{
			MarkdownDescription: "Routing type, normally `SMTP`.",
			Computed:            true,
		},
		"mailbox_type": schema.StringAttribute{
			MarkdownDescription: "`Mailbox`, `PublicDL`, `PrivateDL`, `Contact`, `PublicFolder` and so on.",
			Computed:            true,
		},
		"item_id": schema.StringAttribute{
			MarkdownDescription: "Item id of a private distribution list or contact, empty otherwise.",
			Computed:            true,
		},
	}
}

// mailboxesToList converts mailboxes into a list of mailboxObjectType.
func mailboxesToList(mailboxes []*ews.Mailbox) (types.List, diag.Diagnostics) {
	var diags diag.Diagnostics
	elements := make([]attr.Value, 0, len(mailboxes))
	for _, mb := range mailboxes {
		if mb == nil {
			continue
		}
		itemID := ""
		if mb.ItemID != nil {
			itemID = mb.ItemID.ID
		}
		obj, d := types.ObjectValue(mailboxObjectType.AttrTypes, map[string]attr.Value{
			"name":         types.StringValue(mb.Name),
			"email":        types.StringValue(mb.Email),
			"routing_type": types.StringValue(mb.RoutingType),
			"mailbox_type": types.StringValue(mb.MailboxType),
			"item_id":      types.StringValue(itemID),
		})
		diags.Append(d...)
		elements = append(elements, obj)
	}
	list, d := types.ListValue(mailboxObjectType, elements)
	diags.Append(d...)
	return list, diags
}

func NewResolveNamesDataSource() datasource.DataSource {
	return &ResolveNamesDataSource{}
}

// ResolveNamesDataSource looks up people and distribution lists by
// ambiguous name.
type ResolveNamesDataSource struct {
	conn *ews.Connection
}

type ResolveNamesDataSourceModel struct {
	ID                    types.String `tfsdk:"id"`
	Name                  types.String `tfsdk:"name"`
	Scope                 types.String `tfsdk:"scope"`
	ReturnFullContactData types.Bool   `tfsdk:"return_full_contact_data"`

	Mailboxes        types.List `tfsdk:"mailboxes"`
	Contacts         types.List `tfsdk:"contacts"`
	IncludesLastItem types.Bool `tfsdk:"includes_last_item"`
}

func (d *ResolveNamesDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_resolve_names"
}

func (d *ResolveNamesDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Resolves an ambiguous name, alias or address against the Exchange directory and contact folders.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The resolved name.",
				Computed:            true,
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "Name, alias or address prefix to resolve.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"scope": schema.StringAttribute{
				MarkdownDescription: "Where to search: `ActiveDirectory` (default), `ActiveDirectoryContacts`, `Contacts` " +
					"or `ContactsActiveDirectory`.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(
						ews.SearchActiveDirectory.String(),
						ews.SearchActiveDirectoryContacts.String(),
						ews.SearchContacts.String(),
						ews.SearchContactsActiveDirectory.String(),
					),
				},
			},
			"return_full_contact_data": schema.BoolAttribute{
				MarkdownDescription: "Also return directory contact details for each match. Defaults to `false`.",
				Optional:            true,
			},
			"mailboxes": schema.ListNestedAttribute{
				MarkdownDescription: "Matching mailboxes in server order.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: mailboxAttributes(),
				},
			},
			"contacts": schema.ListNestedAttribute{
				MarkdownDescription: "Contact details of each match, when `return_full_contact_data` is set. " +
					"Entries line up with `mailboxes`.",
				Computed: true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"display_name":    schema.StringAttribute{Computed: true},
						"given_name":      schema.StringAttribute{Computed: true},
						"surname":         schema.StringAttribute{Computed: true},
						"company_name":    schema.StringAttribute{Computed: true},
						"department":      schema.StringAttribute{Computed: true},
						"job_title":       schema.StringAttribute{Computed: true},
						"office_location": schema.StringAttribute{Computed: true},
						"email_addresses": schema.MapAttribute{
							MarkdownDescription: "Addresses keyed by `EmailAddress1` to `EmailAddress3`.",
							ElementType:         types.StringType,
							Computed:            true,
						},
						"phone_numbers": schema.MapAttribute{
							MarkdownDescription: "Numbers keyed by type, e.g. `BusinessPhone`.",
							ElementType:         types.StringType,
							Computed:            true,
						},
					},
				},
			},
			"includes_last_item": schema.BoolAttribute{
				MarkdownDescription: "False when the server truncated the result set.",
				Computed:            true,
			},
		},
	}
}

func (d *ResolveNamesDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if pd := providerData(req.ProviderData, &resp.Diagnostics); pd != nil {
		d.conn = pd.Conn
	}
}

func (d *ResolveNamesDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data ResolveNamesDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	scope := ews.SearchActiveDirectory
	if !data.Scope.IsNull() {
		scope = searchScopes[validators.Canonical(data.Scope.ValueString(),
			ews.SearchActiveDirectory.String(),
			ews.SearchActiveDirectoryContacts.String(),
			ews.SearchContacts.String(),
			ews.SearchContactsActiveDirectory.String(),
		)]
	}

	name := data.Name.ValueString()
	done := ews.LogDataSourceOperation(ctx, "ews_resolve_names", "read", map[string]any{
		"name":  name,
		"scope": scope.String(),
	})
	result, err := d.conn.ResolveNames(ctx, ews.PriorityDefault, name, scope, nil, data.ReturnFullContactData.ValueBool())
	done(err)
	if err != nil {
		if !ews.IsNotFoundError(err) {
			resp.Diagnostics.AddError(
				"Error Resolving Name",
				fmt.Sprintf("Could not resolve %q: %s", name, err.Error()),
			)
			return
		}
		// No match is an empty result, not a failure.
		tflog.Debug(ctx, "Name resolved to no entries", map[string]any{"name": name})
		result = ews.ResolveNamesResult{IncludesLastItem: true}
	}

	data.ID = types.StringValue(name)
	data.IncludesLastItem = types.BoolValue(result.IncludesLastItem)

	mailboxes, diags := mailboxesToList(result.Mailboxes)
	resp.Diagnostics.Append(diags...)
	data.Mailboxes = mailboxes

	contacts, diags := contactsToList(ctx, result.Contacts)
	resp.Diagnostics.Append(diags...)
	data.Contacts = contacts

	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func contactsToList(ctx context.Context, contacts []*ews.Contact) (types.List, diag.Diagnostics) {
	var diags diag.Diagnostics
	elements := make([]attr.Value, 0, len(contacts))
	for _, c := range contacts {
		if c == nil {
			continue
		}
		emails, d := types.MapValueFrom(ctx, types.StringType, nonNilMap(c.EmailAddresses))
		diags.Append(d...)
		phones, d := types.MapValueFrom(ctx, types.StringType, nonNilMap(c.PhoneNumbers))
		diags.Append(d...)

		obj, d := types.ObjectValue(contactObjectType.AttrTypes, map[string]attr.Value{
			"display_name":    types.StringValue(c.DisplayName),
			"given_name":      types.StringValue(c.GivenName),
			"surname":         types.StringValue(c.Surname),
			"company_name":    types.StringValue(c.CompanyName),
			"department":      types.StringValue(c.Department),
			"job_title":       types.StringValue(c.JobTitle),
			"office_location": types.StringValue(c.OfficeLocation),
			"email_addresses": emails,
			"phone_numbers":   phones,
		})
		diags.Append(d...)
		elements = append(elements, obj)
	}
	list, d := types.ListValue(contactObjectType, elements)
	diags.Append(d...)
	return list, diags
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
