// Package cli is the operator command line of grantflow.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/kirillkom/grantflow/internal/core/ports"
	"github.com/kirillkom/grantflow/internal/core/usecase"
	"github.com/kirillkom/grantflow/internal/core/validation"
)

// Env carries the services the commands drive.
type Env struct {
	Locations *validation.LocationValidator
	Gateway   ports.GatewayProber
	Workflow  *usecase.WorkflowService
	Exports   *usecase.ExportService
}

func NewRoot(env Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "grantflow",
		Short:         "Guided grant application workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		ValidateLocationCmd(env),
		ProbeCmd(env),
		RunCmd(env),
	)
	return root
}
