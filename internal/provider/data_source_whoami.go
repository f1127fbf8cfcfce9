package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"

	"github.com/vaterlangen/evolution-ews/internal/directory"
	"github.com/vaterlangen/evolution-ews/internal/ews"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &WhoAmIDataSource{}

func NewWhoAmIDataSource() datasource.DataSource {
	return &WhoAmIDataSource{}
}

// WhoAmIDataSource defines the data source implementation.
type WhoAmIDataSource struct {
	data *ProviderData
}

// WhoAmIDataSourceModel describes the data source data model.
type WhoAmIDataSourceModel struct {
	ID                types.String `tfsdk:"id"`           // Mailbox address, or username when unknown
	URL               types.String `tfsdk:"url"`          // EWS endpoint in use
	Username          types.String `tfsdk:"username"`     // Configured logon name
	Email             types.String `tfsdk:"email"`        // Mailbox address
	DisplayName       types.String `tfsdk:"display_name"` // From ResolveNames
	ServerVersion     types.String `tfsdk:"server_version"`
	DN                types.String `tfsdk:"dn"`  // Directory only
	SID               types.String `tfsdk:"sid"` // Directory only
	UserPrincipalName types.String `tfsdk:"upn"`
	SAMAccountName    types.String `tfsdk:"sam_account_name"`
}

func (d *WhoAmIDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_whoami"
}

func (d *WhoAmIDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Describes the identity the provider connects as. The display name comes from Exchange; " +
			"`dn`, `sid`, `upn` and `sam_account_name` are only set when a directory is configured.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The mailbox address, or the username when no address is known.",
				Computed:            true,
			},
			"url": schema.StringAttribute{
				MarkdownDescription: "The EWS endpoint in use, after Autodiscover.",
				Computed:            true,
			},
			"username": schema.StringAttribute{
				MarkdownDescription: "The configured logon name.",
				Computed:            true,
			},
			"email": schema.StringAttribute{
				MarkdownDescription: "The mailbox address, configured or read from the directory.",
				Computed:            true,
			},
			"display_name": schema.StringAttribute{
				MarkdownDescription: "Display name Exchange resolves the mailbox address to.",
				Computed:            true,
			},
			"server_version": schema.StringAttribute{
				MarkdownDescription: "The `RequestServerVersion` sent with each request.",
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "Distinguished Name of the user. Example: `CN=John Doe,CN=Users,DC=example,DC=com`",
				Computed:            true,
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "Security Identifier of the user. Example: `S-1-5-21-123456789-123456789-123456789-1001`",
				Computed:            true,
			},
			"upn": schema.StringAttribute{
				MarkdownDescription: "User Principal Name of the user.",
				Computed:            true,
			},
			"sam_account_name": schema.StringAttribute{
				MarkdownDescription: "Pre-Windows 2000 logon name of the user.",
				Computed:            true,
			},
		},
	}
}

func (d *WhoAmIDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerData(req.ProviderData, &resp.Diagnostics)
}

func (d *WhoAmIDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data WhoAmIDataSourceModel

	ctx = initializeLogging(ctx)

	logCompletion := ews.LogDataSourceOperation(ctx, "ews_whoami", "read", nil)
	defer func() {
		var err error
		for _, diag := range resp.Diagnostics.Errors() {
			err = fmt.Errorf("%s: %s", diag.Summary(), diag.Detail())
			break
		}
		logCompletion(err)
	}()

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	conn := d.data.Conn
	email := conn.Email()

	// Both lookups are independent; the connection schedules them side by side.
	var (
		displayName string
		user        = d.data.User
	)
	g, gctx := errgroup.WithContext(ctx)
	if email != "" {
		g.Go(func() error {
			result, err := conn.ResolveNames(gctx, ews.PriorityDefault, email, ews.SearchActiveDirectory, nil, false)
			if err != nil {
				if ews.IsNotFoundError(err) {
					return nil
				}
				return fmt.Errorf("resolving %s: %w", email, err)
			}
			for _, mb := range result.Mailboxes {
				if mb != nil && mb.Name != "" {
					displayName = mb.Name
					break
				}
			}
			return nil
		})
	}
	if user == nil && d.data.Directory != nil {
		identifier := conn.Username()
		if identifier == "" {
			identifier = email
		}
		g.Go(func() error {
			u, err := d.data.Directory.LookupUser(gctx, identifier)
			if err != nil {
				// The directory is optional; report what Exchange knows.
				tflog.Warn(gctx, "Directory lookup failed", map[string]any{
					"identifier": identifier,
					"category":   string(directory.GetErrorCategory(err)),
					"error":      err.Error(),
				})
				return nil
			}
			user = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		resp.Diagnostics.AddError(
			"Error Reading Identity",
			"Could not resolve the configured mailbox: "+err.Error(),
		)
		return
	}

	d.mapToModel(&data, conn, displayName, user)

	tflog.Debug(ctx, "Identity resolved", map[string]any{
		"email":         email,
		"has_directory": user != nil,
	})

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (d *WhoAmIDataSource) mapToModel(data *WhoAmIDataSourceModel, conn *ews.Connection, displayName string, user *directory.User) {
	id := conn.Email()
	if id == "" {
		id = conn.Username()
	}
	data.ID = types.StringValue(id)
	data.URL = types.StringValue(conn.URI())
	data.Username = types.StringValue(conn.Username())
	data.Email = stringOrNull(conn.Email())
	data.ServerVersion = types.StringValue(conn.ServerVersion())

	if displayName == "" && user != nil {
		displayName = user.DisplayName
	}
	data.DisplayName = stringOrNull(displayName)

	data.DN = types.StringNull()
	data.SID = types.StringNull()
	data.UserPrincipalName = types.StringNull()
	data.SAMAccountName = types.StringNull()
	if user != nil {
		data.DN = stringOrNull(user.DN)
		data.SID = stringOrNull(user.SID)
		data.UserPrincipalName = stringOrNull(user.UserPrincipalName)
		data.SAMAccountName = stringOrNull(user.SAMAccountName)
	}
}

func stringOrNull(s string) types.String {
	if s == "" {
		return types.StringNull()
	}
	return types.StringValue(s)
}
