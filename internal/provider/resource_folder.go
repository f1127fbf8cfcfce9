package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringdefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &FolderResource{}
var _ resource.ResourceWithImportState = &FolderResource{}

// wellKnownFolders are accepted wherever a folder id is expected and are
// sent as DistinguishedFolderId.
var wellKnownFolders = map[string]bool{
	ews.FolderMsgFolderRoot: true,
	ews.FolderInbox:         true,
	ews.FolderCalendar:      true,
	ews.FolderContacts:      true,
	ews.FolderDeletedItems:  true,
	ews.FolderDrafts:        true,
	ews.FolderSentItems:     true,
	ews.FolderTasks:         true,
	"junkemail":             true,
	"outbox":                true,
	"notes":                 true,
	"journal":               true,
	"root":                  true,
}

// folderID turns a configured folder reference into an ews.FolderID. An
// empty reference means msgfolderroot.
func folderID(ref string) ews.FolderID {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ews.DistinguishedFolder(ews.FolderMsgFolderRoot)
	}
	if wellKnownFolders[strings.ToLower(ref)] {
		return ews.DistinguishedFolder(strings.ToLower(ref))
	}
	return ews.FolderID{ID: ref}
}

func NewFolderResource() resource.Resource {
	return &FolderResource{}
}

// FolderResource defines the resource implementation.
type FolderResource struct {
	conn *ews.Connection
}

// FolderResourceModel describes the resource data model.
type FolderResourceModel struct {
	ID             types.String `tfsdk:"id"`               // Server folder id (computed)
	ChangeKey      types.String `tfsdk:"change_key"`       // Computed
	DisplayName    types.String `tfsdk:"display_name"`     // Required
	ParentFolderID types.String `tfsdk:"parent_folder_id"` // Optional - id or well-known name
	FolderClass    types.String `tfsdk:"folder_class"`     // Optional+Computed, forces replacement
	DeleteType     types.String `tfsdk:"delete_type"`      // Optional+Computed+Default: HardDelete
	// Computed attributes
	ParentID         types.String `tfsdk:"parent_id"`
	TotalCount       types.Int64  `tfsdk:"total_count"`
	UnreadCount      types.Int64  `tfsdk:"unread_count"`
	ChildFolderCount types.Int64  `tfsdk:"child_folder_count"`
}

func (r *FolderResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_folder"
}

func (r *FolderResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Manages a folder in the configured mailbox. Renaming updates the folder in place " +
			"and changing `parent_folder_id` moves it.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The Exchange folder id.",
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"change_key": schema.StringAttribute{
				MarkdownDescription: "The change key of the folder version last read.",
				Computed:            true,
			},
			"display_name": schema.StringAttribute{
				MarkdownDescription: "The folder name shown to the user.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthBetween(1, 255),
				},
			},
			"parent_folder_id": schema.StringAttribute{
				MarkdownDescription: "Folder id or well-known name (e.g. `inbox`) of the parent. Defaults to the top of the " +
					"information store (`msgfolderroot`).",
				Optional: true,
			},
			"folder_class": schema.StringAttribute{
				MarkdownDescription: "Folder class such as `IPF.Note`, `IPF.Appointment` or `IPF.Contact`. " +
					"Changing it forces a new folder.",
				Optional: true,
				Computed: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
					stringplanmodifier.RequiresReplaceIfConfigured(),
				},
			},
			"delete_type": schema.StringAttribute{
				MarkdownDescription: "How the folder is removed on destroy: `HardDelete`, `SoftDelete` or " +
					"`MoveToDeletedItems`. Defaults to `HardDelete`.",
				Optional: true,
				Computed: true,
				Default:  stringdefault.StaticString(ews.HardDelete),
				Validators: []validator.String{
					stringvalidator.OneOf(ews.HardDelete, ews.SoftDelete, ews.MoveToDeletedItems),
				},
			},
			"parent_id": schema.StringAttribute{
				MarkdownDescription: "The Exchange folder id of the parent.",
				Computed:            true,
			},
			"total_count": schema.Int64Attribute{
				MarkdownDescription: "Number of items in the folder.",
				Computed:            true,
			},
			"unread_count": schema.Int64Attribute{
				MarkdownDescription: "Number of unread items in the folder.",
				Computed:            true,
			},
			"child_folder_count": schema.Int64Attribute{
				MarkdownDescription: "Number of direct subfolders.",
				Computed:            true,
			},
		},
	}
}

func (r *FolderResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	pd := providerData(req.ProviderData, &resp.Diagnostics)
	if pd == nil {
		return
	}
	r.conn = pd.Conn
}

func (r *FolderResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data FolderResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	done := ews.LogResourceOperation(ctx, "ews_folder", "create", map[string]any{
		"display_name": data.DisplayName.ValueString(),
		"parent":       data.ParentFolderID.ValueString(),
	})

	folderClass := ""
	if !data.FolderClass.IsUnknown() && !data.FolderClass.IsNull() {
		folderClass = data.FolderClass.ValueString()
	}

	id, err := r.conn.CreateFolder(ctx, ews.PriorityDefault, folderID(data.ParentFolderID.ValueString()),
		data.DisplayName.ValueString(), folderClass)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Creating Folder",
			"Could not create folder, unexpected error: "+err.Error(),
		)
		return
	}

	folder, err := r.getFolder(ctx, id.ID)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Created Folder",
			fmt.Sprintf("Folder %s was created but could not be read back: %s", id.ID, err.Error()),
		)
		return
	}

	r.updateModelFromFolder(&data, folder)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *FolderResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data FolderResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	folder, err := r.getFolder(ctx, data.ID.ValueString())
	if err != nil {
		if ews.IsNotFoundError(err) {
			tflog.Warn(ctx, "Folder no longer exists, removing from state", map[string]any{
				"id": data.ID.ValueString(),
			})
			resp.State.RemoveResource(ctx)
			return
		}
		resp.Diagnostics.AddError(
			"Error Reading Folder",
			fmt.Sprintf("Could not read folder with ID %s: %s", data.ID.ValueString(), err.Error()),
		)
		return
	}

	// A folder moved outside Terraform shows up as a parent change.
	if !data.ParentID.IsNull() && data.ParentID.ValueString() != folder.ParentFolderID.ID {
		data.ParentFolderID = types.StringValue(folder.ParentFolderID.ID)
	}

	r.updateModelFromFolder(&data, folder)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *FolderResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data, state FolderResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	id := state.ID.ValueString()
	done := ews.LogResourceOperation(ctx, "ews_folder", "update", map[string]any{"id": id})

	if !data.ParentFolderID.Equal(state.ParentFolderID) {
		target, err := r.resolveFolderID(ctx, data.ParentFolderID.ValueString())
		if err == nil && target != state.ParentID.ValueString() {
			err = r.conn.MoveFolder(ctx, ews.PriorityDefault, target, id)
		}
		if err != nil {
			done(err)
			resp.Diagnostics.AddError(
				"Error Moving Folder",
				fmt.Sprintf("Could not move folder %s below %q: %s", id, data.ParentFolderID.ValueString(), err.Error()),
			)
			return
		}
	}

	if !data.DisplayName.Equal(state.DisplayName) {
		err := r.conn.UpdateFolder(ctx, ews.PriorityDefault, ews.SetFolderDisplayName(ews.FolderID{ID: id}, data.DisplayName.ValueString()))
		if err != nil {
			done(err)
			resp.Diagnostics.AddError(
				"Error Renaming Folder",
				"Could not rename folder, unexpected error: "+err.Error(),
			)
			return
		}
	}
	done(nil)

	folder, err := r.getFolder(ctx, id)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Folder",
			fmt.Sprintf("Could not read folder with ID %s after update: %s", id, err.Error()),
		)
		return
	}

	r.updateModelFromFolder(&data, folder)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *FolderResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data FolderResourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	done := ews.LogResourceOperation(ctx, "ews_folder", "delete", map[string]any{
		"id":          data.ID.ValueString(),
		"delete_type": data.DeleteType.ValueString(),
	})

	err := r.conn.DeleteFolder(ctx, ews.PriorityDefault, ews.FolderID{ID: data.ID.ValueString()}, data.DeleteType.ValueString())
	if ews.IsNotFoundError(err) {
		err = nil
	}
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Deleting Folder",
			"Could not delete folder, unexpected error: "+err.Error(),
		)
	}
}

func (r *FolderResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	importID := strings.TrimSpace(req.ID)

	if importID == "" || wellKnownFolders[strings.ToLower(importID)] {
		resp.Diagnostics.AddError(
			"Invalid Import ID",
			fmt.Sprintf("Import ID must be an Exchange folder id; well-known folders such as %q cannot be managed.", importID),
		)
		return
	}

	tflog.Debug(ctx, "Importing EWS folder", map[string]any{
		"import_id": importID,
	})

	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), importID)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("delete_type"), ews.HardDelete)...)
}

// getFolder reads one folder with its counts.
func (r *FolderResource) getFolder(ctx context.Context, id string) (*ews.Folder, error) {
	folders, err := r.conn.GetFolder(ctx, ews.PriorityDefault, ews.ShapeAllProperties, nil, []ews.FolderID{{ID: id}})
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, &ews.Error{Operation: "GetFolder", Kind: ews.KindFolderNotFound, Category: ews.ErrorCategoryNotFound,
			Message: "no folder returned for " + id}
	}
	return folders[0], nil
}

// resolveFolderID returns the server id for ref, which may be a well-known
// name. MoveFolder only accepts server ids.
func (r *FolderResource) resolveFolderID(ctx context.Context, ref string) (string, error) {
	fid := folderID(ref)
	if !fid.Distinguished {
		return fid.ID, nil
	}
	folders, err := r.conn.GetFolder(ctx, ews.PriorityDefault, ews.ShapeIDOnly, nil, []ews.FolderID{fid})
	if err != nil {
		return "", err
	}
	if len(folders) == 0 {
		return "", fmt.Errorf("well-known folder %q not found", fid.ID)
	}
	return folders[0].ID.ID, nil
}

func (r *FolderResource) updateModelFromFolder(data *FolderResourceModel, folder *ews.Folder) {
	data.ID = types.StringValue(folder.ID.ID)
	data.ChangeKey = types.StringValue(folder.ID.ChangeKey)
	data.DisplayName = types.StringValue(folder.DisplayName)
	data.FolderClass = types.StringValue(folder.FolderClass)
	data.ParentID = types.StringValue(folder.ParentFolderID.ID)
	data.TotalCount = types.Int64Value(int64(folder.TotalCount))
	data.UnreadCount = types.Int64Value(int64(folder.UnreadCount))
	data.ChildFolderCount = types.Int64Value(int64(folder.ChildFolderCount))
	if data.DeleteType.IsNull() || data.DeleteType.IsUnknown() {
		data.DeleteType = types.StringValue(ews.HardDelete)
	}
}
