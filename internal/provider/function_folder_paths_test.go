package provider_test

import (
	"context"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/provider"
)

var testFolderType = map[string]attr.Type{
	"id":           types.StringType,
	"parent_id":    types.StringType,
	"display_name": types.StringType,
}

func testFolder(id, parent, name string) attr.Value {
	return types.ObjectValueMust(testFolderType, map[string]attr.Value{
		"id":           types.StringValue(id),
		"parent_id":    types.StringValue(parent),
		"display_name": types.StringValue(name),
	})
}

// executeFolderPaths runs the folder_paths function on a list of folders.
func executeFolderPaths(t *testing.T, folders []attr.Value, config attr.Value) (map[string]string, error) {
	ctx := context.Background()
	f := &provider.FolderPathsFunction{}

	input := types.DynamicValue(types.ListValueMust(types.ObjectType{AttrTypes: testFolderType}, folders))
	configDynamic := types.DynamicNull()
	if config != nil {
		configDynamic = types.DynamicValue(config)
	}

	req := function.RunRequest{
		Arguments: function.NewArgumentsData([]attr.Value{input, configDynamic}),
	}
	resp := function.RunResponse{
		Result: function.NewResultData(types.MapUnknown(types.StringType)),
	}

	f.Run(ctx, req, &resp)
	if resp.Error != nil {
		return nil, resp.Error
	}

	result, ok := resp.Result.Value().(types.Map)
	require.True(t, ok, "result must be a map, got %T", resp.Result.Value())

	paths := make(map[string]string)
	for id, v := range result.Elements() {
		s, ok := v.(types.String)
		require.True(t, ok)
		paths[id] = s.ValueString()
	}
	return paths, nil
}

func TestFolderPathsFunction_Metadata(t *testing.T) {
	f := &provider.FolderPathsFunction{}

	var resp function.MetadataResponse
	f.Metadata(context.Background(), function.MetadataRequest{}, &resp)

	assert.Equal(t, "folder_paths", resp.Name)
}

func TestFolderPathsFunction_Definition(t *testing.T) {
	f := &provider.FolderPathsFunction{}

	var resp function.DefinitionResponse
	f.Definition(context.Background(), function.DefinitionRequest{}, &resp)

	assert.NotEmpty(t, resp.Definition.Summary)
	require.Len(t, resp.Definition.Parameters, 2)
	assert.Equal(t, "folders", resp.Definition.Parameters[0].GetName())
	assert.Equal(t, "config", resp.Definition.Parameters[1].GetName())
}

func TestFolderPaths_Nested(t *testing.T) {
	paths, err := executeFolderPaths(t, []attr.Value{
		testFolder("inbox", "root", "Inbox"),
		testFolder("projects", "inbox", "Projects"),
		testFolder("2024", "projects", "2024"),
		testFolder("calendar", "root", "Calendar"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"inbox":    "Inbox",
		"projects": "Inbox/Projects",
		"2024":     "Inbox/Projects/2024",
		"calendar": "Calendar",
	}, paths)
}

func TestFolderPaths_Empty(t *testing.T) {
	paths, err := executeFolderPaths(t, []attr.Value{}, nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFolderPaths_Separator(t *testing.T) {
	config := types.ObjectValueMust(
		map[string]attr.Type{"separator": types.StringType},
		map[string]attr.Value{"separator": types.StringValue(" > ")},
	)
	paths, err := executeFolderPaths(t, []attr.Value{
		testFolder("a", "", "A"),
		testFolder("b", "a", "B"),
	}, config)
	require.NoError(t, err)
	assert.Equal(t, "A > B", paths["b"])
}

func TestFolderPaths_Errors(t *testing.T) {
	tests := []struct {
		name    string
		folders []attr.Value
		config  attr.Value
		errMsg  string
	}{
		{
			name: "cycle",
			folders: []attr.Value{
				testFolder("a", "b", "A"),
				testFolder("b", "a", "B"),
			},
			errMsg: "circular parent reference",
		},
		{
			name:    "self parent",
			folders: []attr.Value{testFolder("a", "a", "A")},
			errMsg:  "circular parent reference",
		},
		{
			name: "duplicate id",
			folders: []attr.Value{
				testFolder("a", "", "A"),
				testFolder("a", "", "Again"),
			},
			errMsg: "more than once",
		},
		{
			name:    "missing id",
			folders: []attr.Value{testFolder("", "", "A")},
			errMsg:  "has no id",
		},
		{
			name: "too deep",
			folders: []attr.Value{
				testFolder("a", "", "A"),
				testFolder("b", "a", "B"),
				testFolder("c", "b", "C"),
			},
			config: types.ObjectValueMust(
				map[string]attr.Type{"max_depth": types.Int64Type},
				map[string]attr.Value{"max_depth": types.Int64Value(1)},
			),
			errMsg: "maximum depth",
		},
		{
			name:    "unknown config key",
			folders: []attr.Value{testFolder("a", "", "A")},
			config: types.ObjectValueMust(
				map[string]attr.Type{"children_field": types.StringType},
				map[string]attr.Value{"children_field": types.StringValue("x")},
			),
			errMsg: "unknown configuration key",
		},
		{
			name:    "blank separator",
			folders: []attr.Value{testFolder("a", "", "A")},
			config: types.ObjectValueMust(
				map[string]attr.Type{"separator": types.StringType},
				map[string]attr.Value{"separator": types.StringValue(" ")},
			),
			errMsg: "separator cannot be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeFolderPaths(t, tt.folders, tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFolderPathsConfig_Defaults(t *testing.T) {
	f := provider.FolderPathsFunction{}

	cfg, err := f.ParseConfig(context.Background(), types.DynamicNull())
	require.NoError(t, err)
	assert.Equal(t, "/", cfg.Separator)
	assert.Equal(t, int64(32), cfg.MaxDepth)
}
