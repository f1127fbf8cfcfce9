package provider

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/directory"
	"github.com/vaterlangen/evolution-ews/internal/ews"
	"github.com/vaterlangen/evolution-ews/internal/provider/validators"
)

var httpURLPattern = regexp.MustCompile(`^https?://[^/\s]+`)

var _ provider.Provider = &EWSProvider{}
var _ provider.ProviderWithConfigValidators = &EWSProvider{}
var _ provider.ProviderWithFunctions = &EWSProvider{}

// EWSProvider defines the provider implementation.
type EWSProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string

	registry *ews.Registry
}

// EWSProviderModel describes the provider data model.
type EWSProviderModel struct {
	URL           types.String `tfsdk:"url"`
	Email         types.String `tfsdk:"email"`
	Autodiscover  types.Bool   `tfsdk:"autodiscover"`
	ServerVersion types.String `tfsdk:"server_version"`

	Username   types.String `tfsdk:"username"`
	Password   types.String `tfsdk:"password"`
	AuthMethod types.String `tfsdk:"auth_method"`

	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`

	SkipTLSVerify types.Bool   `tfsdk:"skip_tls_verify"`
	TLSCACertFile types.String `tfsdk:"tls_ca_cert_file"`

	Timeout               types.Int64 `tfsdk:"timeout"`
	MaxConcurrentRequests types.Int64 `tfsdk:"max_concurrent_requests"`

	DirectoryURL    types.String `tfsdk:"directory_url"`
	DirectoryDomain types.String `tfsdk:"directory_domain"`
	DirectoryBaseDN types.String `tfsdk:"directory_base_dn"`
}

func (p *EWSProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "ews"
	resp.Version = p.version
}

func (p *EWSProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The EWS provider manages mailbox folders and automatic replies and reads people, " +
			"free/busy and delegate data through Exchange Web Services. Requests share one connection " +
			"that limits concurrency and sends higher-priority requests first.",
		Attributes: map[string]schema.Attribute{
			"url": schema.StringAttribute{
				MarkdownDescription: "EWS endpoint, e.g. `https://mail.example.com/EWS/Exchange.asmx`. " +
					"Can be set via the `EWS_URL` environment variable. Optional when `autodiscover` is enabled.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.RegexMatches(httpURLPattern, "must be an http or https URL"),
				},
			},
			"email": schema.StringAttribute{
				MarkdownDescription: "Primary SMTP address of the mailbox. Mailbox-scoped operations need it. " +
					"When unset and a directory is configured, it is looked up from the directory. " +
					"Can be set via the `EWS_EMAIL` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsSMTPAddress(),
				},
			},
			"autodiscover": schema.BoolAttribute{
				MarkdownDescription: "Resolve the EWS endpoint from `email` using Autodiscover. Defaults to `false`. " +
					"Can be set via the `EWS_AUTODISCOVER` environment variable.",
				Optional: true,
			},
			"server_version": schema.StringAttribute{
				MarkdownDescription: "Value of `RequestServerVersion` sent with every request. Defaults to `Exchange2007_SP1`. " +
					"Can be set via the `EWS_SERVER_VERSION` environment variable.",
				Optional: true,
			},

			"username": schema.StringAttribute{
				MarkdownDescription: "Username in `DOMAIN\\user`, UPN or plain form. " +
					"Can be set via the `EWS_USERNAME` environment variable.",
				Optional: true,
			},
			"password": schema.StringAttribute{
				MarkdownDescription: "Password for the user. Can be set via the `EWS_PASSWORD` environment variable.",
				Optional:            true,
				Sensitive:           true,
			},
			"auth_method": schema.StringAttribute{
				MarkdownDescription: "HTTP authentication scheme: `ntlm`, `basic` or `negotiate` (Kerberos). Defaults to `ntlm`. " +
					"Can be set via the `EWS_AUTH_METHOD` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(string(ews.AuthMethodNTLM), string(ews.AuthMethodBasic), string(ews.AuthMethodNegotiate)),
				},
			},

			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for `negotiate` authentication (e.g., `EXAMPLE.COM`). " +
					"Can be set via the `EWS_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to a Kerberos keytab. Can be set via the `EWS_KERBEROS_KEYTAB` environment variable.",
				Optional:            true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to krb5.conf. Without it, KDCs are found through DNS. " +
					"Can be set via the `EWS_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to a Kerberos credential cache with existing tickets. " +
					"Can be set via the `EWS_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Override the service principal, `HTTP/<host>` by default. " +
					"Can be set via the `EWS_KERBEROS_SPN` environment variable.",
				Optional: true,
			},

			"skip_tls_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip TLS certificate verification. Not recommended for production. Defaults to `false`. " +
					"Can be set via the `EWS_SKIP_TLS_VERIFY` environment variable.",
				Optional: true,
			},
			"tls_ca_cert_file": schema.StringAttribute{
				MarkdownDescription: "Path to a PEM CA bundle used to verify the server. " +
					"Can be set via the `EWS_TLS_CA_CERT_FILE` environment variable.",
				Optional: true,
			},

			"timeout": schema.Int64Attribute{
				MarkdownDescription: "Per-request timeout in seconds. Defaults to `120`. " +
					"Can be set via the `EWS_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"max_concurrent_requests": schema.Int64Attribute{
				MarkdownDescription: "Requests kept on the wire at once, between 1 and 10. Defaults to `10`. " +
					"Can be set via the `EWS_MAX_CONCURRENT_REQUESTS` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(1, ews.MaxConcurrentRequests),
				},
			},

			"directory_url": schema.StringAttribute{
				MarkdownDescription: "LDAP or LDAPS URL of a domain controller used to look up the mailbox owner. " +
					"Mutually exclusive with `directory_domain`. Can be set via the `EWS_DIRECTORY_URL` environment variable.",
				Optional: true,
			},
			"directory_domain": schema.StringAttribute{
				MarkdownDescription: "Active Directory domain whose controllers are found through DNS SRV records. " +
					"Mutually exclusive with `directory_url`. Can be set via the `EWS_DIRECTORY_DOMAIN` environment variable.",
				Optional: true,
			},
			"directory_base_dn": schema.StringAttribute{
				MarkdownDescription: "Search base for directory lookups. Read from the root DSE when unset. " +
					"Can be set via the `EWS_DIRECTORY_BASE_DN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *EWSProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		providervalidator.Conflicting(
			path.MatchRoot("directory_url"),
			path.MatchRoot("directory_domain"),
		),
	}
}

func (p *EWSProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data EWSProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = initializeLogging(ctx)
	ctx = tflog.SetField(ctx, "provider", "ews")
	ctx = tflog.SetField(ctx, "provider_version", p.version)

	tflog.Info(ctx, "Configuring EWS provider")

	config := p.buildConnectionConfig(&data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	pd := &ProviderData{}

	if dcfg := p.buildDirectoryConfig(&data, config); dcfg != nil {
		p.configureDirectory(ctx, pd, dcfg, config, &resp.Diagnostics)
	}

	if p.getBoolValue(data.Autodiscover, "EWS_AUTODISCOVER", false) {
		var urls *ews.URLs
		err := ews.LogOperation(ctx, ews.SubsystemProvider, "autodiscover", map[string]any{"email": config.Email}, func() error {
			var err error
			urls, err = ews.Autodiscover(ctx, config)
			return err
		})
		if err != nil {
			resp.Diagnostics.AddError(
				"Autodiscover Failed",
				"The EWS endpoint could not be discovered for "+config.Email+". "+
					"Set `url` explicitly or check the credentials.\n\n"+
					"Autodiscover Error: "+err.Error(),
			)
			return
		}
		tflog.Info(ctx, "Autodiscover resolved EWS endpoint", map[string]any{
			"url":     urls.ASURL,
			"oab_url": urls.OABURL,
		})
		config.URI = urls.ASURL
		if config.OABURL == "" {
			config.OABURL = urls.OABURL
		}
	}

	if config.URI == "" {
		resp.Diagnostics.AddError(
			"Missing EWS Endpoint",
			"Either `url` (or EWS_URL) must be set, or `autodiscover` must be enabled together with `email` and `password`.",
		)
		return
	}

	conn, err := p.registry.New(ctx, config, nil)
	if err != nil {
		resp.Diagnostics.AddError(
			"Unable to Create EWS Connection",
			"An unexpected error occurred when creating the EWS connection. "+
				"If the error is not clear, please contact the provider developers.\n\n"+
				"EWS Connection Error: "+err.Error(),
		)
		return
	}

	err = ews.LogOperation(ctx, ews.SubsystemProvider, "connection_check", map[string]any{"url": conn.URI()}, func() error {
		_, err := conn.GetFolder(ctx, ews.PriorityHigh, ews.ShapeIDOnly, nil, []ews.FolderID{ews.DistinguishedFolder(ews.FolderMsgFolderRoot)})
		return err
	})
	switch {
	case err == nil:
		tflog.Info(ctx, "EWS connection verified", map[string]any{
			"url": conn.URI(),
		})
	case ews.IsAuthenticationError(err):
		conn.Release()
		resp.Diagnostics.AddError(
			"Authentication Failed",
			"Exchange rejected the configured credentials. "+
				"Please verify `username`, `password` and `auth_method`.\n\n"+
				"Authentication Error: "+err.Error(),
		)
		return
	default:
		// Mailbox-less service accounts cannot open msgfolderroot; people
		// and free/busy lookups still work.
		tflog.Warn(ctx, "EWS connection check failed", map[string]any{
			"error": err.Error(),
		})
		resp.Diagnostics.AddWarning(
			"EWS Connection Check Failed",
			"The provider could not read the mailbox root folder. Mailbox operations may fail.\n\n"+
				"EWS Error: "+err.Error(),
		)
	}

	pd.Conn = conn
	resp.DataSourceData = pd
	resp.ResourceData = pd

	tflog.Info(ctx, "EWS provider configured successfully")
}

// configureDirectory creates the directory client and looks up the
// configured user. Failures only warn; the directory is optional.
func (p *EWSProvider) configureDirectory(ctx context.Context, pd *ProviderData, dcfg *directory.Config, config *ews.ConnectionConfig, diags *diag.Diagnostics) {
	client, err := directory.New(ctx, dcfg)
	if err != nil {
		diags.AddWarning("Directory Unavailable", "Directory lookups are disabled.\n\nDirectory Error: "+err.Error())
		return
	}
	pd.Directory = client

	identifier := config.Username
	if identifier == "" {
		identifier = config.Email
	}
	if identifier == "" {
		return
	}

	user, err := client.LookupUser(ctx, identifier)
	if err != nil {
		tflog.Warn(ctx, "Directory lookup of configured user failed", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		if config.Email == "" {
			diags.AddWarning(
				"Mailbox Address Unknown",
				"`email` is not set and the directory lookup failed. Mailbox operations will fail.\n\n"+
					"Directory Error: "+err.Error(),
			)
		}
		return
	}
	pd.User = user

	if config.Email == "" {
		config.Email = user.PrimarySMTPAddress()
		tflog.Info(ctx, "Mailbox address read from directory", map[string]any{
			"email": config.Email,
			"dn":    user.DN,
		})
	}
}

// buildConnectionConfig merges HCL attributes with their environment
// fallbacks on top of ews.DefaultConfig.
func (p *EWSProvider) buildConnectionConfig(data *EWSProviderModel, diags *diag.Diagnostics) *ews.ConnectionConfig {
	config := ews.DefaultConfig()

	config.URI = p.getStringValue(data.URL, "EWS_URL")
	config.Email = p.getStringValue(data.Email, "EWS_EMAIL")
	if v := p.getStringValue(data.ServerVersion, "EWS_SERVER_VERSION"); v != "" {
		config.ServerVersion = v
	}

	config.Username = p.getStringValue(data.Username, "EWS_USERNAME")
	config.Password = p.getStringValue(data.Password, "EWS_PASSWORD")

	if method := p.getStringValue(data.AuthMethod, "EWS_AUTH_METHOD"); method != "" {
		canonical := validators.Canonical(method, string(ews.AuthMethodNTLM), string(ews.AuthMethodBasic), string(ews.AuthMethodNegotiate))
		if canonical == "" {
			diags.AddAttributeError(path.Root("auth_method"), "Invalid Authentication Method",
				"Unsupported authentication method "+strconv.Quote(method)+"; use ntlm, basic or negotiate.")
			return config
		}
		config.AuthMethod = ews.AuthMethod(canonical)
	}

	config.KerberosRealm = p.getStringValue(data.KerberosRealm, "EWS_KERBEROS_REALM")
	config.KerberosKeytab = p.getStringValue(data.KerberosKeytab, "EWS_KERBEROS_KEYTAB")
	config.KerberosConfig = p.getStringValue(data.KerberosConfig, "EWS_KERBEROS_CONFIG")
	config.KerberosCCache = p.getStringValue(data.KerberosCCache, "EWS_KERBEROS_CCACHE")
	config.KerberosSPN = p.getStringValue(data.KerberosSPN, "EWS_KERBEROS_SPN")

	config.SkipTLSVerify = p.getBoolValue(data.SkipTLSVerify, "EWS_SKIP_TLS_VERIFY", false)
	config.TLSCACertFile = p.getStringValue(data.TLSCACertFile, "EWS_TLS_CA_CERT_FILE")

	if timeout := p.getInt64Value(data.Timeout, "EWS_TIMEOUT", 0); timeout > 0 {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if n := p.getInt64Value(data.MaxConcurrentRequests, "EWS_MAX_CONCURRENT_REQUESTS", 0); n > 0 {
		if n > ews.MaxConcurrentRequests {
			diags.AddAttributeError(path.Root("max_concurrent_requests"), "Invalid Concurrency",
				"max_concurrent_requests must be between 1 and "+strconv.Itoa(ews.MaxConcurrentRequests)+".")
			return config
		}
		config.MaxConcurrentRequests = int(n)
	}

	return config
}

// buildDirectoryConfig returns nil when no directory is configured. The
// directory binds with the EWS credentials, using Kerberos when EWS does.
func (p *EWSProvider) buildDirectoryConfig(data *EWSProviderModel, config *ews.ConnectionConfig) *directory.Config {
	url := p.getStringValue(data.DirectoryURL, "EWS_DIRECTORY_URL")
	domain := p.getStringValue(data.DirectoryDomain, "EWS_DIRECTORY_DOMAIN")
	if url == "" && domain == "" {
		return nil
	}

	dcfg := directory.DefaultConfig()
	if url != "" {
		dcfg.URLs = []string{url}
	}
	dcfg.Domain = domain
	dcfg.BaseDN = p.getStringValue(data.DirectoryBaseDN, "EWS_DIRECTORY_BASE_DN")
	dcfg.Username = config.Username
	dcfg.Password = config.Password
	dcfg.SkipTLSVerify = config.SkipTLSVerify

	if config.AuthMethod == ews.AuthMethodNegotiate {
		dcfg.AuthMethod = directory.AuthMethodKerberos
		dcfg.KerberosRealm = config.KerberosRealm
		dcfg.KerberosKeytab = config.KerberosKeytab
		dcfg.KerberosConfig = config.KerberosConfig
		dcfg.KerberosCCache = config.KerberosCCache
	}

	return dcfg
}

// Helper functions for configuration value resolution

func (p *EWSProvider) getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func (p *EWSProvider) getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseBool(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *EWSProvider) getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *EWSProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewFolderResource,
		NewOutOfOfficeResource,
	}
}

func (p *EWSProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewResolveNamesDataSource,
		NewDistributionListDataSource,
		NewFoldersDataSource,
		NewFreeBusyDataSource,
		NewDelegateDataSource,
		NewWhoAmIDataSource,
		NewOfflineAddressListsDataSource,
	}
}

func (p *EWSProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewFolderPathsFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &EWSProvider{
			version:  version,
			registry: ews.DefaultRegistry,
		}
	}
}
