package cli

import (
	"github.com/spf13/cobra"

	"github.com/gearshelf/api/internal/audio"
	"github.com/gearshelf/api/internal/client"
	"github.com/gearshelf/api/internal/config"
)

type Dependencies struct {
	Config  *config.Config
	Backend *client.BackendClient
	Mic     audio.Device
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gearctl",
		Short:         "Onboard rental equipment from a spoken description",
		Long:          "Records a spoken equipment description, has the backend transcribe and research it, and saves the result as an equipment type and unit.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewSampleCmd(deps))
	rootCmd.AddCommand(NewInventoryCmd(deps))
	rootCmd.AddCommand(NewSKUsCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
