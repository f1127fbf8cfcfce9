package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/vaterlangen/evolution-ews/internal/ews"
	"github.com/vaterlangen/evolution-ews/internal/provider/validators"
)

var _ datasource.DataSource = &FreeBusyDataSource{}

// maxFreeBusyMailboxes is the Exchange limit per availability request.
const maxFreeBusyMailboxes = 100

var (
	freeBusyEventObjectType = types.ObjectType{
		AttrTypes: map[string]attr.Type{
			"start":     types.StringType,
			"end":       types.StringType,
			"busy_type": types.StringType,
			"fb_type":   types.StringType,
		},
	}
	freeBusyScheduleObjectType = types.ObjectType{
		AttrTypes: map[string]attr.Type{
			"email":  types.StringType,
			"events": types.ListType{ElemType: freeBusyEventObjectType},
		},
	}
)

func NewFreeBusyDataSource() datasource.DataSource {
	return &FreeBusyDataSource{}
}

// FreeBusyDataSource reads merged availability for a set of mailboxes.
type FreeBusyDataSource struct {
	conn *ews.Connection
}

type FreeBusyDataSourceModel struct {
	ID        types.String `tfsdk:"id"`
	Emails    types.List   `tfsdk:"emails"`
	StartTime types.String `tfsdk:"start_time"`
	EndTime   types.String `tfsdk:"end_time"`
	Interval  types.Int64  `tfsdk:"interval"`
	Schedules types.List   `tfsdk:"schedules"`
}

func (d *FreeBusyDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_free_busy"
}

func (d *FreeBusyDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reads free/busy information for up to 100 mailboxes over a time window. " +
			"Times are UTC.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Window and mailboxes this result covers.",
				Computed:            true,
			},
			"emails": schema.ListAttribute{
				MarkdownDescription: "Mailbox addresses to query.",
				ElementType:         types.StringType,
				Required:            true,
				Validators: []validator.List{
					listvalidator.SizeBetween(1, maxFreeBusyMailboxes),
					listvalidator.ValueStringsAre(validators.IsSMTPAddress()),
				},
			},
			"start_time": schema.StringAttribute{
				MarkdownDescription: "Window start (RFC 3339).",
				Required:            true,
				Validators:          []validator.String{validators.IsRFC3339()},
			},
			"end_time": schema.StringAttribute{
				MarkdownDescription: "Window end (RFC 3339), after `start_time`.",
				Required:            true,
				Validators:          []validator.String{validators.IsRFC3339()},
			},
			"interval": schema.Int64Attribute{
				MarkdownDescription: "Merged free/busy interval in minutes. Defaults to `30`.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.Between(5, 1440)},
			},
			"schedules": schema.ListNestedAttribute{
				MarkdownDescription: "One entry per address in `emails`, in the same order.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"email": schema.StringAttribute{Computed: true},
						"events": schema.ListNestedAttribute{
							Computed: true,
							NestedObject: schema.NestedAttributeObject{
								Attributes: map[string]schema.Attribute{
									"start":     schema.StringAttribute{Computed: true},
									"end":       schema.StringAttribute{Computed: true},
									"busy_type": schema.StringAttribute{MarkdownDescription: "Exchange value, e.g. `Tentative`.", Computed: true},
									"fb_type":   schema.StringAttribute{MarkdownDescription: "`FREE`, `BUSY`, `BUSY-TENTATIVE` or `BUSY-UNAVAILABLE`.", Computed: true},
								},
							},
						},
					},
				},
			},
		},
	}
}

func (d *FreeBusyDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if pd := providerData(req.ProviderData, &resp.Diagnostics); pd != nil {
		d.conn = pd.Conn
	}
}

func (d *FreeBusyDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data FreeBusyDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	var emails []string
	resp.Diagnostics.Append(data.Emails.ElementsAs(ctx, &emails, false)...)
	start, errStart := time.Parse(time.RFC3339, data.StartTime.ValueString())
	end, errEnd := time.Parse(time.RFC3339, data.EndTime.ValueString())
	if errStart != nil || errEnd != nil || !end.After(start) {
		resp.Diagnostics.AddAttributeError(path.Root("end_time"), "Invalid Time Window",
			"start_time and end_time must be RFC 3339 timestamps with end_time after start_time.")
	}
	if resp.Diagnostics.HasError() {
		return
	}

	interval := 30
	if !data.Interval.IsNull() {
		interval = int(data.Interval.ValueInt64())
	}

	done := ews.LogDataSourceOperation(ctx, "ews_free_busy", "read", map[string]any{
		"mailboxes": len(emails),
		"start":     start.UTC().Format(time.RFC3339),
		"end":       end.UTC().Format(time.RFC3339),
	})
	results, err := d.conn.GetFreeBusy(ctx, ews.PriorityDefault, ews.FreeBusyRequest(start, end, emails, interval))
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Free/Busy",
			"Could not read availability: "+err.Error(),
		)
		return
	}
	if len(results) != len(emails) {
		resp.Diagnostics.AddError(
			"Unexpected Free/Busy Response",
			fmt.Sprintf("Requested %d mailboxes but the server returned %d schedules.", len(emails), len(results)),
		)
		return
	}

	schedules := make([]attr.Value, 0, len(results))
	for i, fb := range results {
		var events []attr.Value
		if fb != nil {
			for _, ev := range fb.Events {
				obj, diags := types.ObjectValue(freeBusyEventObjectType.AttrTypes, map[string]attr.Value{
					"start":     types.StringValue(ev.Start.UTC().Format(time.RFC3339)),
					"end":       types.StringValue(ev.End.UTC().Format(time.RFC3339)),
					"busy_type": types.StringValue(ev.BusyType),
					"fb_type":   types.StringValue(ev.FBType),
				})
				resp.Diagnostics.Append(diags...)
				events = append(events, obj)
			}
		}
		eventList, diags := types.ListValue(freeBusyEventObjectType, events)
		resp.Diagnostics.Append(diags...)

		obj, diags := types.ObjectValue(freeBusyScheduleObjectType.AttrTypes, map[string]attr.Value{
			"email":  types.StringValue(emails[i]),
			"events": eventList,
		})
		resp.Diagnostics.Append(diags...)
		schedules = append(schedules, obj)
	}
	list, diags := types.ListValue(freeBusyScheduleObjectType, schedules)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(fmt.Sprintf("%s/%s/%s",
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), strings.Join(emails, ",")))
	data.Schedules = list

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
