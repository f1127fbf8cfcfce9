package ews

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Log subsystems used by this package. The provider registers them with
// tflog.NewSubsystem so their levels can be tuned independently.
const (
	SubsystemCore      = "ews"
	SubsystemTransport = "ews_transport"
	SubsystemProvider  = "provider"
)

// LogOperation is a helper function to log an operation with timing.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		tflog.SubsystemError(ctx, subsystem, "Operation failed", fields)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation completed successfully", fields)
	}

	return err
}

// LogPerformance logs performance metrics for an operation.
func LogPerformance(ctx context.Context, subsystem, operation string, duration time.Duration, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()

	if duration > 5*time.Second {
		tflog.SubsystemWarn(ctx, subsystem, "Slow operation detected", fields)
	} else if duration > 1*time.Second {
		tflog.SubsystemInfo(ctx, subsystem, "Operation performance", fields)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation performance", fields)
	}
}

// LogEWSError logs a failed request with its classified kind.
func LogEWSError(ctx context.Context, operation string, err error, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["operation"] = operation
	fields["error"] = err.Error()

	if ewsErr, ok := err.(*Error); ok {
		fields["error_kind"] = ewsErr.Kind.String()
		fields["error_category"] = string(ewsErr.Category)
		if ewsErr.ResponseCode != "" {
			fields["response_code"] = ewsErr.ResponseCode
		}
	}

	if IsCancelledError(err) {
		tflog.SubsystemDebug(ctx, SubsystemCore, "EWS operation cancelled", fields)
		return
	}
	tflog.SubsystemError(ctx, SubsystemCore, "EWS operation failed", fields)
}

// LogConnectionEvent logs connection-related events.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "connection_created", "connection_reused", "authentication_success":
		tflog.SubsystemInfo(ctx, SubsystemCore, "Connection event", fields)
	case "authentication_failed", "worker_stopped":
		tflog.SubsystemWarn(ctx, SubsystemCore, "Connection event", fields)
	case "connection_released", "authentication_attempt":
		tflog.SubsystemDebug(ctx, SubsystemCore, "Connection event", fields)
	default:
		tflog.SubsystemTrace(ctx, SubsystemCore, "Connection event", fields)
	}
}

// LogQueueEvent logs admission controller events.
func LogQueueEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "request_dispatched", "request_completed":
		tflog.SubsystemDebug(ctx, SubsystemCore, "Queue event", fields)
	case "queue_saturated":
		tflog.SubsystemInfo(ctx, SubsystemCore, "Queue event", fields)
	case "request_cancelled":
		tflog.SubsystemDebug(ctx, SubsystemCore, "Queue event", fields)
	default:
		tflog.SubsystemTrace(ctx, SubsystemCore, "Queue event", fields)
	}
}

// LogAuthEvent logs HTTP authentication events.
func LogAuthEvent(ctx context.Context, event string, fields map[string]any) {
	fields = SanitizeFields(fields)
	fields["event"] = event

	switch event {
	case "credentials_rejected", "provider_declined":
		tflog.SubsystemWarn(ctx, SubsystemTransport, "Authentication event", fields)
	case "ticket_acquired", "keytab_loaded", "ccache_loaded":
		tflog.SubsystemInfo(ctx, SubsystemTransport, "Authentication event", fields)
	default:
		tflog.SubsystemDebug(ctx, SubsystemTransport, "Authentication event", fields)
	}
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any)

	sensitiveKeys := map[string]bool{
		"password":      true,
		"passwd":        true,
		"secret":        true,
		"token":         true,
		"key":           true,
		"credential":    true,
		"credentials":   true,
		"authorization": true,
	}

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
		} else if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = v
		}
	}

	return sanitized
}

// containsSensitivePattern checks if a string contains patterns that might be sensitive.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"secret=",
		"token=",
		"ntlm ",
		"negotiate ",
		"basic ",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

// LogResourceOperation provides standardized entry/exit logging for Terraform resource operations.
func LogResourceOperation(ctx context.Context, resource, operation string, fields map[string]any) func(error) {
	return logProviderOperation(ctx, "resource", resource, operation, fields)
}

// LogDataSourceOperation provides standardized entry/exit logging for Terraform data source operations.
func LogDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	return logProviderOperation(ctx, "data_source", dataSource, operation, fields)
}

func logProviderOperation(ctx context.Context, kind, name, operation string, fields map[string]any) func(error) {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}

	label := strings.ReplaceAll(kind, "_", " ")

	entryFields := make(map[string]any)
	maps.Copy(entryFields, fields)
	entryFields[kind] = name
	entryFields["operation"] = operation

	tflog.SubsystemDebug(ctx, SubsystemProvider, "Starting "+label+" operation", entryFields)

	return func(err error) {
		exitFields := make(map[string]any)
		maps.Copy(exitFields, fields)
		exitFields[kind] = name
		exitFields["operation"] = operation
		exitFields["duration_ms"] = time.Since(start).Milliseconds()
		exitFields["has_error"] = err != nil

		if err != nil {
			exitFields["error"] = err.Error()
			tflog.SubsystemError(ctx, SubsystemProvider, strings.ToUpper(label[:1])+label[1:]+" operation failed", exitFields)
		} else {
			tflog.SubsystemDebug(ctx, SubsystemProvider, strings.ToUpper(label[:1])+label[1:]+" operation completed", exitFields)
		}
	}
}
