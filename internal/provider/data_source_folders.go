package provider

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

var _ datasource.DataSource = &FoldersDataSource{}

// maxSyncRounds bounds SyncFolderHierarchy paging.
const maxSyncRounds = 100

// maxSyncRetries bounds resubmissions of a page the server rejected with a
// retryable error such as ErrorServerBusy.
const maxSyncRetries = 3

var syncRetryDelay = 2 * time.Second

var folderObjectType = types.ObjectType{
	AttrTypes: map[string]attr.Type{
		"id":                 types.StringType,
		"parent_id":          types.StringType,
		"display_name":       types.StringType,
		"folder_class":       types.StringType,
		"type":               types.StringType,
		"total_count":        types.Int64Type,
		"unread_count":       types.Int64Type,
		"child_folder_count": types.Int64Type,
	},
}

func NewFoldersDataSource() datasource.DataSource {
	return &FoldersDataSource{}
}

// FoldersDataSource lists the folder hierarchy of the configured mailbox.
type FoldersDataSource struct {
	conn *ews.Connection
}

type FoldersDataSourceModel struct {
	ID          types.String `tfsdk:"id"`
	FolderClass types.String `tfsdk:"folder_class"`
	ParentID    types.String `tfsdk:"parent_id"`

	Folders     types.List   `tfsdk:"folders"`
	FolderCount types.Int64  `tfsdk:"folder_count"`
	SyncState   types.String `tfsdk:"sync_state"`
}

func (d *FoldersDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_folders"
}

func (d *FoldersDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists every folder of the configured mailbox by synchronizing the folder hierarchy " +
			"from scratch.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The mailbox address.",
				Computed:            true,
			},
			"folder_class": schema.StringAttribute{
				MarkdownDescription: "Only return folders whose class equals this value or starts with it followed by a dot, " +
					"e.g. `IPF.Note` also matches `IPF.Note.OutlookHomepage`.",
				Optional: true,
			},
			"parent_id": schema.StringAttribute{
				MarkdownDescription: "Only return direct children of this folder id.",
				Optional:            true,
			},
			"folders": schema.ListNestedAttribute{
				MarkdownDescription: "Matching folders ordered by display name.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"id":                 schema.StringAttribute{Computed: true},
						"parent_id":          schema.StringAttribute{Computed: true},
						"display_name":       schema.StringAttribute{Computed: true},
						"folder_class":       schema.StringAttribute{Computed: true},
						"type":               schema.StringAttribute{MarkdownDescription: "Element name, e.g. `CalendarFolder`.", Computed: true},
						"total_count":        schema.Int64Attribute{Computed: true},
						"unread_count":       schema.Int64Attribute{Computed: true},
						"child_folder_count": schema.Int64Attribute{Computed: true},
					},
				},
			},
			"folder_count": schema.Int64Attribute{
				MarkdownDescription: "Number of entries in `folders`.",
				Computed:            true,
			},
			"sync_state": schema.StringAttribute{
				MarkdownDescription: "Synchronization state returned by the last page.",
				Computed:            true,
			},
		},
	}
}

func (d *FoldersDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if pd := providerData(req.ProviderData, &resp.Diagnostics); pd != nil {
		d.conn = pd.Conn
	}
}

func (d *FoldersDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data FoldersDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	done := ews.LogDataSourceOperation(ctx, "ews_folders", "read", nil)
	folders, syncState, err := syncAllFolders(ctx, d.conn)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Listing Folders",
			"Could not synchronize the folder hierarchy: "+err.Error(),
		)
		return
	}

	folders = filterFolders(folders, data.FolderClass.ValueString(), data.ParentID.ValueString())

	elements := make([]attr.Value, 0, len(folders))
	for _, f := range folders {
		obj, diags := types.ObjectValue(folderObjectType.AttrTypes, map[string]attr.Value{
			"id":                 types.StringValue(f.ID.ID),
			"parent_id":          types.StringValue(f.ParentFolderID.ID),
			"display_name":       types.StringValue(f.DisplayName),
			"folder_class":       types.StringValue(f.FolderClass),
			"type":               types.StringValue(string(f.Type)),
			"total_count":        types.Int64Value(int64(f.TotalCount)),
			"unread_count":       types.Int64Value(int64(f.UnreadCount)),
			"child_folder_count": types.Int64Value(int64(f.ChildFolderCount)),
		})
		resp.Diagnostics.Append(diags...)
		elements = append(elements, obj)
	}
	list, diags := types.ListValue(folderObjectType, elements)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.ID = types.StringValue(d.conn.Email())
	data.Folders = list
	data.FolderCount = types.Int64Value(int64(len(elements)))
	data.SyncState = types.StringValue(syncState)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// syncAllFolders pages through SyncFolderHierarchy from an empty state and
// returns the folders that exist at the end.
func syncAllFolders(ctx context.Context, conn *ews.Connection) ([]*ews.Folder, string, error) {
	byID := make(map[string]*ews.Folder)
	state := ""

	for round := 0; round < maxSyncRounds; round++ {
		result, err := syncFolderPage(ctx, conn, state)
		if err != nil {
			return nil, "", err
		}
		for _, f := range result.Created {
			byID[f.ID.ID] = f
		}
		for _, f := range result.Updated {
			byID[f.ID.ID] = f
		}
		for _, id := range result.Deleted {
			delete(byID, id)
		}
		state = result.SyncState

		tflog.Trace(ctx, "Folder hierarchy page", map[string]any{
			"round":         round,
			"created":       len(result.Created),
			"updated":       len(result.Updated),
			"deleted":       len(result.Deleted),
			"includes_last": result.IncludesLast,
		})
		if result.IncludesLast {
			break
		}
	}

	folders := make([]*ews.Folder, 0, len(byID))
	for _, f := range byID {
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].DisplayName != folders[j].DisplayName {
			return folders[i].DisplayName < folders[j].DisplayName
		}
		return folders[i].ID.ID < folders[j].ID.ID
	})
	return folders, state, nil
}

// syncFolderPage fetches one page, resubmitting it while the server reports
// a retryable error.
func syncFolderPage(ctx context.Context, conn *ews.Connection, state string) (ews.SyncFolderHierarchyResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := conn.SyncFolderHierarchy(ctx, ews.PriorityDefault, state)
		if err == nil || attempt > maxSyncRetries || !ews.IsRetryableError(err) {
			return result, err
		}

		tflog.Debug(ctx, "Retrying folder hierarchy page", map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return ews.SyncFolderHierarchyResult{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * syncRetryDelay):
		}
	}
}

func filterFolders(folders []*ews.Folder, class, parentID string) []*ews.Folder {
	if class == "" && parentID == "" {
		return folders
	}
	out := folders[:0:0]
	for _, f := range folders {
		if class != "" && f.FolderClass != class && !strings.HasPrefix(f.FolderClass, class+".") {
			continue
		}
		if parentID != "" && f.ParentFolderID.ID != parentID {
			continue
		}
		out = append(out, f)
	}
	return out
}
