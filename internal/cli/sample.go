package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gearshelf/api/internal/model"
)

func NewSampleCmd(deps *Dependencies) *cobra.Command {
	var opts saveOptions

	cmd := &cobra.Command{
		Use:   "sample [text]",
		Short: "Process a text description instead of a recording",
		Long:  "Runs the full processing pipeline on text. Without arguments a sample camera description is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				text = model.DefaultSampleText
			}
			return runArtifact(ctx, deps, model.NewSampleArtifact(text), opts, cmd.OutOrStdout())
		},
	}
	addSaveFlags(cmd, &opts)

	return cmd
}
