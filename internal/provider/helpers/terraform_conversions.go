// Package helpers provides conversions between Terraform values and plain Go
// values for functions that accept dynamic arguments.
package helpers

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

// TerraformValueToGo converts various Terraform attr.Value types to Go values.
// Collections become []any, objects and maps become map[string]any.
// Returns nil for null values and an error for unknown values.
func TerraformValueToGo(ctx context.Context, value attr.Value) (any, error) {
	if value.IsNull() {
		return nil, nil
	}
	if value.IsUnknown() {
		return nil, fmt.Errorf("cannot process unknown values")
	}

	switch v := value.(type) {
	case types.String:
		return v.ValueString(), nil
	case types.Int64:
		return v.ValueInt64(), nil
	case types.Float64:
		return v.ValueFloat64(), nil
	case types.Bool:
		return v.ValueBool(), nil
	case types.Number:
		bigFloat := v.ValueBigFloat()
		if bigFloat == nil {
			return nil, fmt.Errorf("number value is nil")
		}
		floatVal, _ := bigFloat.Float64()
		return floatVal, nil
	case types.List:
		return elementsToGo(ctx, v.Elements())
	case types.Set:
		return elementsToGo(ctx, v.Elements())
	case types.Tuple:
		return elementsToGo(ctx, v.Elements())
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Dynamic:
		return TerraformValueToGo(ctx, v.UnderlyingValue())
	default:
		return nil, fmt.Errorf("unsupported type: %T", value)
	}
}

// ObjectsFromDynamic converts a dynamic list, set or tuple of objects into
// Go maps, one per element, in element order.
func ObjectsFromDynamic(ctx context.Context, value types.Dynamic) ([]map[string]any, error) {
	if value.IsNull() || value.IsUnknown() {
		return nil, fmt.Errorf("value cannot be null or unknown")
	}

	goVal, err := TerraformValueToGo(ctx, value)
	if err != nil {
		return nil, err
	}
	list, ok := goVal.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, set or tuple, got %T", value.UnderlyingValue())
	}

	result := make([]map[string]any, 0, len(list))
	for i, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d must be an object, got %T", i, elem)
		}
		result = append(result, obj)
	}
	return result, nil
}

// MapFromDynamic converts a dynamic map or object into a Go map.
func MapFromDynamic(ctx context.Context, value types.Dynamic) (map[string]any, error) {
	goVal, err := TerraformValueToGo(ctx, value)
	if err != nil {
		return nil, err
	}
	m, ok := goVal.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map or object, got %T", value.UnderlyingValue())
	}
	return m, nil
}

func elementsToGo(ctx context.Context, elements []attr.Value) ([]any, error) {
	result := make([]any, len(elements))
	for i, elem := range elements {
		goVal, err := TerraformValueToGo(ctx, elem)
		if err != nil {
			return nil, err
		}
		result[i] = goVal
	}
	return result, nil
}

func attributesToGo(ctx context.Context, attributes map[string]attr.Value) (map[string]any, error) {
	result := make(map[string]any, len(attributes))
	for name, val := range attributes {
		goVal, err := TerraformValueToGo(ctx, val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		result[name] = goVal
	}
	return result, nil
}
