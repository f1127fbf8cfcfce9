package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/directory"
	"github.com/vaterlangen/evolution-ews/internal/ews"
)

// logSubsystems maps each tflog subsystem to the environment variable
// controlling its level. Pattern: TF_LOG_PROVIDER_EWS_<SUBSYSTEM>.
var logSubsystems = map[string]string{
	ews.SubsystemProvider:  "TF_LOG_PROVIDER_EWS_PROVIDER",
	ews.SubsystemCore:      "TF_LOG_PROVIDER_EWS_CORE",
	ews.SubsystemTransport: "TF_LOG_PROVIDER_EWS_TRANSPORT",
	directory.Subsystem:    "TF_LOG_PROVIDER_EWS_DIRECTORY",
}

// initializeLogging registers every subsystem on ctx. Call it at the top of
// Configure and of each CRUD or Read method.
func initializeLogging(ctx context.Context) context.Context {
	for name, env := range logSubsystems {
		ctx = tflog.NewSubsystem(ctx, name, tflog.WithLevelFromEnv(env))
	}
	return ctx
}
