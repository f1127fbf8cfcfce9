package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

var _ datasource.DataSource = &OfflineAddressListsDataSource{}

var offlineAddressListObjectType = types.ObjectType{
	AttrTypes: map[string]attr.Type{
		"id":                types.StringType,
		"dn":                types.StringType,
		"name":              types.StringType,
		"full_file":         types.StringType,
		"full_sequence":     types.Int64Type,
		"full_size":         types.Int64Type,
		"uncompressed_size": types.Int64Type,
	},
}

func NewOfflineAddressListsDataSource() datasource.DataSource {
	return &OfflineAddressListsDataSource{}
}

// OfflineAddressListsDataSource lists the address lists of an offline
// address book together with their current full download.
type OfflineAddressListsDataSource struct {
	conn *ews.Connection
}

type OfflineAddressListsDataSourceModel struct {
	ID           types.String `tfsdk:"id"`
	OABURL       types.String `tfsdk:"oab_url"`
	AddressLists types.List   `tfsdk:"address_lists"`
}

// offlineAddressList is one OAL with its first Full file, if any.
type offlineAddressList struct {
	ews.OAL
	Full *ews.OALDetails
}

func (d *OfflineAddressListsDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_offline_address_lists"
}

func (d *OfflineAddressListsDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reads the offline address book manifest (`oab.xml`) and lists its address lists.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The OAB URL that was read.",
				Computed:            true,
			},
			"oab_url": schema.StringAttribute{
				MarkdownDescription: "Offline address book base URL. Defaults to the URL found by Autodiscover.",
				Optional:            true,
			},
			"address_lists": schema.ListNestedAttribute{
				MarkdownDescription: "Address lists in manifest order.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"id":   schema.StringAttribute{Computed: true},
						"dn":   schema.StringAttribute{MarkdownDescription: "Legacy distinguished name.", Computed: true},
						"name": schema.StringAttribute{Computed: true},
						"full_file": schema.StringAttribute{
							MarkdownDescription: "File name of the full download, empty when none is published.",
							Computed:            true,
						},
						"full_sequence":     schema.Int64Attribute{Computed: true},
						"full_size":         schema.Int64Attribute{MarkdownDescription: "Compressed size in bytes.", Computed: true},
						"uncompressed_size": schema.Int64Attribute{Computed: true},
					},
				},
			},
		},
	}
}

func (d *OfflineAddressListsDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if pd := providerData(req.ProviderData, &resp.Diagnostics); pd != nil {
		d.conn = pd.Conn
	}
}

func (d *OfflineAddressListsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data OfflineAddressListsDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	oabURL := data.OABURL.ValueString()
	if oabURL == "" {
		oabURL = d.conn.OABURL()
	}

	done := ews.LogDataSourceOperation(ctx, "ews_offline_address_lists", "read", map[string]any{"oab_url": oabURL})
	lists, err := readOfflineAddressLists(ctx, d.conn, oabURL)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Offline Address Book",
			"Could not read the OAB manifest: "+err.Error(),
		)
		return
	}

	elements := make([]attr.Value, 0, len(lists))
	for _, l := range lists {
		values := map[string]attr.Value{
			"id":                types.StringValue(l.ID),
			"dn":                types.StringValue(l.DN),
			"name":              types.StringValue(l.Name),
			"full_file":         types.StringValue(""),
			"full_sequence":     types.Int64Value(0),
			"full_size":         types.Int64Value(0),
			"uncompressed_size": types.Int64Value(0),
		}
		if l.Full != nil {
			values["full_file"] = types.StringValue(l.Full.Filename)
			values["full_sequence"] = types.Int64Value(int64(l.Full.Seq))
			values["full_size"] = types.Int64Value(int64(l.Full.Size))
			values["uncompressed_size"] = types.Int64Value(int64(l.Full.UncompressedSize))
		}
		obj, diags := types.ObjectValue(offlineAddressListObjectType.AttrTypes, values)
		resp.Diagnostics.Append(diags...)
		elements = append(elements, obj)
	}
	list, diags := types.ListValue(offlineAddressListObjectType, elements)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(oabURL)
	data.AddressLists = list

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// readOfflineAddressLists lists the OALs below oabURL and looks up the Full
// file of each. The detail requests are queued together and run in parallel.
func readOfflineAddressLists(ctx context.Context, conn *ews.Connection, oabURL string) ([]offlineAddressList, error) {
	oals, err := conn.GetOALList(ctx, ews.PriorityDefault, oabURL)
	if err != nil {
		return nil, err
	}

	pending := make([]*ews.Pending[[]ews.OALDetails], len(oals))
	for i, oal := range oals {
		pending[i] = conn.GetOALDetailStart(ctx, ews.PriorityDefault, oabURL, oal.ID, ews.OALFull)
	}

	lists := make([]offlineAddressList, len(oals))
	var firstErr error
	for i, p := range pending {
		details, err := p.Finish()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		lists[i].OAL = oals[i]
		if len(details) > 0 {
			lists[i].Full = &details[0]
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return lists, nil
}
