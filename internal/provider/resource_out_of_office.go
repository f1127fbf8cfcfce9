package provider

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringdefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/vaterlangen/evolution-ews/internal/ews"
	"github.com/vaterlangen/evolution-ews/internal/provider/validators"
)

var _ resource.Resource = &OutOfOfficeResource{}
var _ resource.ResourceWithImportState = &OutOfOfficeResource{}
var _ resource.ResourceWithValidateConfig = &OutOfOfficeResource{}

var (
	oofStates    = []string{ews.OOFStateEnabled, ews.OOFStateDisabled, ews.OOFStateScheduled}
	oofAudiences = []string{ews.OOFAudienceNone, ews.OOFAudienceKnown, ews.OOFAudienceAll}
)

func NewOutOfOfficeResource() resource.Resource {
	return &OutOfOfficeResource{}
}

// OutOfOfficeResource manages the automatic replies of the configured
// mailbox. There is one per mailbox; destroying it turns replies off.
type OutOfOfficeResource struct {
	conn *ews.Connection
}

type OutOfOfficeResourceModel struct {
	ID               types.String `tfsdk:"id"` // mailbox address
	State            types.String `tfsdk:"state"`
	ExternalAudience types.String `tfsdk:"external_audience"`
	StartTime        types.String `tfsdk:"start_time"`
	EndTime          types.String `tfsdk:"end_time"`
	InternalReply    types.String `tfsdk:"internal_reply"`
	ExternalReply    types.String `tfsdk:"external_reply"`
}

func (r *OutOfOfficeResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_out_of_office"
}

func (r *OutOfOfficeResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages the automatic replies (out-of-office settings) of the configured mailbox. " +
			"Destroying the resource disables automatic replies and leaves the messages in place.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The mailbox address the settings belong to.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"state": schema.StringAttribute{
				MarkdownDescription: "`Enabled`, `Disabled` or `Scheduled`. Matching is case-insensitive.",
				Required:            true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(oofStates...),
				},
			},
			"external_audience": schema.StringAttribute{
				MarkdownDescription: "Who outside the organization receives the external reply: `None`, `Known` or `All`. " +
					"Defaults to `All`.",
				Optional: true,
				Computed: true,
				Default:  stringdefault.StaticString(ews.OOFAudienceAll),
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(oofAudiences...),
				},
			},
			"start_time": schema.StringAttribute{
				MarkdownDescription: "Start of the scheduled window (RFC 3339). Required when `state` is `Scheduled`.",
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					validators.IsRFC3339(),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"end_time": schema.StringAttribute{
				MarkdownDescription: "End of the scheduled window (RFC 3339). Required when `state` is `Scheduled`.",
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					validators.IsRFC3339(),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"internal_reply": schema.StringAttribute{
				MarkdownDescription: "Reply sent to senders inside the organization.",
				Optional:            true,
				Computed:            true,
				Default:             stringdefault.StaticString(""),
			},
			"external_reply": schema.StringAttribute{
				MarkdownDescription: "Reply sent to external senders allowed by `external_audience`.",
				Optional:            true,
				Computed:            true,
				Default:             stringdefault.StaticString(""),
			},
		},
	}
}

func (r *OutOfOfficeResource) ValidateConfig(ctx context.Context, req resource.ValidateConfigRequest, resp *resource.ValidateConfigResponse) {
	var data OutOfOfficeResourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() || data.State.IsUnknown() {
		return
	}

	if validators.Canonical(data.State.ValueString(), oofStates...) != ews.OOFStateScheduled {
		return
	}
	if data.StartTime.IsNull() {
		resp.Diagnostics.AddAttributeError(path.Root("start_time"), "Missing Schedule",
			"start_time is required when state is Scheduled.")
	}
	if data.EndTime.IsNull() {
		resp.Diagnostics.AddAttributeError(path.Root("end_time"), "Missing Schedule",
			"end_time is required when state is Scheduled.")
	}
	if resp.Diagnostics.HasError() || data.StartTime.IsUnknown() || data.EndTime.IsUnknown() {
		return
	}

	start, err1 := time.Parse(time.RFC3339, data.StartTime.ValueString())
	end, err2 := time.Parse(time.RFC3339, data.EndTime.ValueString())
	if err1 == nil && err2 == nil && !end.After(start) {
		resp.Diagnostics.AddAttributeError(path.Root("end_time"), "Invalid Schedule",
			"end_time must be after start_time.")
	}
}

func (r *OutOfOfficeResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	pd := providerData(req.ProviderData, &resp.Diagnostics)
	if pd == nil {
		return
	}
	r.conn = pd.Conn
}

func (r *OutOfOfficeResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data OutOfOfficeResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if !r.apply(ctx, &data, "create", &resp.Diagnostics) {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *OutOfOfficeResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data OutOfOfficeResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	settings, err := r.conn.GetUserOofSettings(ctx, ews.PriorityDefault)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Automatic Replies",
			"Could not read out-of-office settings: "+err.Error(),
		)
		return
	}

	r.updateModelFromSettings(&data, settings)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *OutOfOfficeResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data OutOfOfficeResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if !r.apply(ctx, &data, "update", &resp.Diagnostics) {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *OutOfOfficeResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data OutOfOfficeResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	done := ews.LogResourceOperation(ctx, "ews_out_of_office", "delete", map[string]any{"mailbox": data.ID.ValueString()})

	settings, err := r.conn.GetUserOofSettings(ctx, ews.PriorityDefault)
	if err == nil {
		settings.State = ews.OOFStateDisabled
		err = r.conn.SetUserOofSettings(ctx, ews.PriorityDefault, settings)
	}
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Disabling Automatic Replies",
			"Could not disable out-of-office replies: "+err.Error(),
		)
	}
}

func (r *OutOfOfficeResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resource.ImportStatePassthroughID(ctx, path.Root("id"), req, resp)
}

// apply writes data to the server and reads the result back into data.
func (r *OutOfOfficeResource) apply(ctx context.Context, data *OutOfOfficeResourceModel, operation string, diags *diag.Diagnostics) bool {
	settings := ews.OOFSettings{
		State:            validators.Canonical(data.State.ValueString(), oofStates...),
		ExternalAudience: validators.Canonical(data.ExternalAudience.ValueString(), oofAudiences...),
		InternalReply:    data.InternalReply.ValueString(),
		ExternalReply:    data.ExternalReply.ValueString(),
	}
	if settings.ExternalAudience == "" {
		settings.ExternalAudience = ews.OOFAudienceAll
	}

	settings.Start, settings.End = r.window(ctx, data)

	done := ews.LogResourceOperation(ctx, "ews_out_of_office", operation, map[string]any{
		"state":    settings.State,
		"audience": settings.ExternalAudience,
	})
	err := r.conn.SetUserOofSettings(ctx, ews.PriorityDefault, settings)
	done(err)
	if err != nil {
		diags.AddError(
			"Error Setting Automatic Replies",
			"Could not update out-of-office settings: "+err.Error(),
		)
		return false
	}

	current, err := r.conn.GetUserOofSettings(ctx, ews.PriorityDefault)
	if err != nil {
		diags.AddError(
			"Error Reading Automatic Replies",
			"Settings were written but could not be read back: "+err.Error(),
		)
		return false
	}

	r.updateModelFromSettings(data, current)
	return true
}

// window returns the configured schedule. EWS always wants a duration, so
// unset bounds keep the server's current values, or a one-day window from
// now when the server has none.
func (r *OutOfOfficeResource) window(ctx context.Context, data *OutOfOfficeResourceModel) (time.Time, time.Time) {
	start, startOK := parseTimeValue(data.StartTime)
	end, endOK := parseTimeValue(data.EndTime)
	if startOK && endOK {
		return start, end
	}

	if current, err := r.conn.GetUserOofSettings(ctx, ews.PriorityDefault); err == nil {
		if !startOK && !current.Start.IsZero() {
			start, startOK = current.Start, true
		}
		if !endOK && !current.End.IsZero() {
			end, endOK = current.End, true
		}
	}
	if !startOK {
		start = time.Now().UTC().Truncate(time.Minute)
	}
	if !endOK || !end.After(start) {
		end = start.Add(24 * time.Hour)
	}
	return start, end
}

func (r *OutOfOfficeResource) updateModelFromSettings(data *OutOfOfficeResourceModel, settings ews.OOFSettings) {
	data.ID = types.StringValue(r.conn.Email())
	data.State = choiceValue(data.State, settings.State, oofStates)
	data.ExternalAudience = choiceValue(data.ExternalAudience, settings.ExternalAudience, oofAudiences)
	data.StartTime = timeValue(data.StartTime, settings.Start)
	data.EndTime = timeValue(data.EndTime, settings.End)
	data.InternalReply = types.StringValue(settings.InternalReply)
	data.ExternalReply = types.StringValue(settings.ExternalReply)
}

// choiceValue keeps the configured spelling of a case-insensitive choice
// when the server reports the same value.
func choiceValue(prior types.String, actual string, choices []string) types.String {
	if !prior.IsNull() && !prior.IsUnknown() && validators.Canonical(prior.ValueString(), choices...) == actual {
		return prior
	}
	return types.StringValue(actual)
}

func parseTimeValue(v types.String) (time.Time, bool) {
	if v.IsNull() || v.IsUnknown() {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v.ValueString())
	return t, err == nil
}

// timeValue renders actual as RFC 3339, keeping prior when it names the
// same instant in another zone.
func timeValue(prior types.String, actual time.Time) types.String {
	if actual.IsZero() {
		return types.StringNull()
	}
	if t, ok := parseTimeValue(prior); ok && t.Equal(actual) {
		return prior
	}
	return types.StringValue(actual.UTC().Format(time.RFC3339))
}
