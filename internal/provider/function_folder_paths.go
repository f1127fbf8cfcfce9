package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/vaterlangen/evolution-ews/internal/provider/helpers"
)

var _ function.Function = &FolderPathsFunction{}

// FolderPathsConfig holds the options of the folder_paths function.
type FolderPathsConfig struct {
	// Separator joins display names along a path.
	Separator string `default:"/"`

	// MaxDepth bounds the number of ancestors followed for a single folder.
	MaxDepth int64 `default:"32"`
}

// FolderPathsFunction implements the folder_paths function.
type FolderPathsFunction struct{}

func NewFolderPathsFunction() function.Function {
	return &FolderPathsFunction{}
}

func (f FolderPathsFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "folder_paths"
}

func (f FolderPathsFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary: "Build full display paths for mailbox folders",
		MarkdownDescription: "Maps each folder id to the path of display names from the top of the hierarchy, " +
			"e.g. `Inbox/Projects/2024`. Designed for the `folders` attribute of the `ews_folders` data source.\n\n" +
			"Folders whose `parent_id` is not among the inputs start a path, so the hidden mailbox root never appears.\n\n" +
			"**Configuration map fields (all optional):**\n" +
			"- `separator` (string): Joins display names (default: \"/\")\n" +
			"- `max_depth` (number): Maximum number of ancestors per folder (default: 32)",
		Parameters: []function.Parameter{
			function.DynamicParameter{
				Name: "folders",
				MarkdownDescription: "List of objects with `id`, `parent_id` and `display_name` attributes. " +
					"Other attributes are ignored.",
			},
			function.DynamicParameter{
				Name:                "config",
				MarkdownDescription: "Optional configuration map. Can be null to use defaults.",
				AllowNullValue:      true,
			},
		},
		Return: function.MapReturn{ElementType: types.StringType},
	}
}

func (f FolderPathsFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var input types.Dynamic
	var config types.Dynamic

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &input, &config))
	if resp.Error != nil {
		return
	}

	if input.IsNull() || input.IsUnknown() {
		resp.Error = function.NewArgumentFuncError(0, "folders parameter cannot be null")
		return
	}

	folders, err := helpers.ObjectsFromDynamic(ctx, input)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(0, fmt.Sprintf("Failed to read folders: %s", err.Error()))
		return
	}

	cfg, err := f.ParseConfig(ctx, config)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(1, fmt.Sprintf("Invalid configuration: %s", err.Error()))
		return
	}

	paths, err := f.BuildPaths(folders, cfg)
	if err != nil {
		resp.Error = function.NewFuncError(fmt.Sprintf("Failed to build folder paths: %s", err.Error()))
		return
	}

	elements := make(map[string]attr.Value, len(paths))
	for id, p := range paths {
		elements[id] = types.StringValue(p)
	}
	result, diags := types.MapValue(types.StringType, elements)
	if diags.HasError() {
		resp.Error = function.FuncErrorFromDiags(ctx, diags)
		return
	}
	resp.Error = resp.Result.Set(ctx, result)
}

type folderNode struct {
	parent string
	name   string
}

// BuildPaths resolves the path of every folder. Parent links that leave the
// input set end a path; cycles and chains deeper than MaxDepth are errors.
func (f FolderPathsFunction) BuildPaths(folders []map[string]any, cfg *FolderPathsConfig) (map[string]string, error) {
	nodes := make(map[string]folderNode, len(folders))
	for i, obj := range folders {
		id, _ := obj["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("folder %d has no id", i)
		}
		if _, dup := nodes[id]; dup {
			return nil, fmt.Errorf("folder %s appears more than once", id)
		}
		parent, _ := obj["parent_id"].(string)
		name, _ := obj["display_name"].(string)
		nodes[id] = folderNode{parent: parent, name: name}
	}

	paths := make(map[string]string, len(nodes))
	levels := make(map[string]int64, len(nodes))
	var resolve func(id string, visiting map[string]bool) (string, int64, error)
	resolve = func(id string, visiting map[string]bool) (string, int64, error) {
		if p, ok := paths[id]; ok {
			return p, levels[id], nil
		}
		if visiting[id] {
			return "", 0, fmt.Errorf("circular parent reference involving folder %s", id)
		}
		if int64(len(visiting)) > cfg.MaxDepth {
			return "", 0, fmt.Errorf("maximum depth %d exceeded at folder %s", cfg.MaxDepth, id)
		}
		visiting[id] = true

		node := nodes[id]
		p, level := node.name, int64(0)
		if _, ok := nodes[node.parent]; ok {
			prefix, parentLevel, err := resolve(node.parent, visiting)
			if err != nil {
				return "", 0, err
			}
			p, level = prefix+cfg.Separator+node.name, parentLevel+1
		}
		if level > cfg.MaxDepth {
			return "", 0, fmt.Errorf("maximum depth %d exceeded at folder %s", cfg.MaxDepth, id)
		}

		paths[id], levels[id] = p, level
		return p, level, nil
	}

	for id := range nodes {
		if _, _, err := resolve(id, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// ParseConfig applies defaults with creasty/defaults and overlays the
// values present in the dynamic configuration map.
func (f FolderPathsFunction) ParseConfig(ctx context.Context, value types.Dynamic) (*FolderPathsConfig, error) {
	cfg := &FolderPathsConfig{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}

	if value.IsNull() || value.IsUnknown() || value.IsUnderlyingValueNull() {
		return cfg, nil
	}

	m, err := helpers.MapFromDynamic(ctx, value)
	if err != nil {
		return nil, err
	}

	for key, val := range m {
		if val == nil {
			continue
		}
		switch key {
		case "separator":
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("separator must be a string, got %T", val)
			}
			cfg.Separator = s
		case "max_depth":
			switch v := val.(type) {
			case int64:
				cfg.MaxDepth = v
			case float64:
				cfg.MaxDepth = int64(v)
			default:
				return nil, fmt.Errorf("max_depth must be a number, got %T", val)
			}
		default:
			return nil, fmt.Errorf("unknown configuration key %q", key)
		}
	}

	return cfg, cfg.Validate()
}

// Validate validates the configuration values.
func (c *FolderPathsConfig) Validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be greater than 0, got %d", c.MaxDepth)
	}
	if strings.TrimSpace(c.Separator) == "" {
		return fmt.Errorf("separator cannot be blank")
	}
	return nil
}
