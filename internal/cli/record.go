package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gearshelf/api/internal/capture"
	"github.com/gearshelf/api/internal/model"
)

func addSaveFlags(cmd *cobra.Command, opts *saveOptions) {
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the prefilled form as equipment type and unit")
	cmd.Flags().StringVar(&opts.user, "user", defaultUser(), "Operator recorded as created_by")
	cmd.Flags().StringVar(&opts.condition, "condition", "", "Override the detected condition")
	cmd.Flags().StringVar(&opts.barcode, "barcode", "", "Unit barcode (generated when empty)")
	cmd.Flags().StringVar(&opts.location, "location", "", "Storage location of the unit")
}

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var opts saveOptions

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a spoken description and process it",
		Long:  "Records from the microphone until Enter is pressed or the two minute limit is reached, then sends the recording for processing.\nCtrl+C while processing cancels the run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			artifact, err := recordArtifact(ctx, deps, cmd)
			if err != nil {
				return err
			}
			return runArtifact(ctx, deps, artifact, opts, cmd.OutOrStdout())
		},
	}
	addSaveFlags(cmd, &opts)

	return cmd
}

func recordArtifact(ctx context.Context, deps *Dependencies, cmd *cobra.Command) (*model.Artifact, error) {
	out := cmd.OutOrStdout()
	stopped := make(chan struct{}, 1)

	sess := capture.NewSession(deps.Mic, capture.Options{
		MaxSeconds: deps.Config.Capture.MaxSeconds,
		OnChange: func(st model.CaptureState) {
			switch st.Status {
			case model.CaptureStatusRecording:
				fmt.Fprintf(out, "\rRecording %02d:%02d  (Enter to stop)", st.ElapsedSeconds/60, st.ElapsedSeconds%60)
			case model.CaptureStatusStopped:
				select {
				case stopped <- struct{}{}:
				default:
				}
			}
		},
	})
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		if st := sess.State(); st.LastError != nil {
			return nil, fmt.Errorf("%s", *st.LastError)
		}
		return nil, err
	}

	enter := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		close(enter)
	}()

	select {
	case <-enter:
	case <-stopped:
		fmt.Fprintln(out, "\nRecording limit reached")
	case <-ctx.Done():
		_ = sess.Reset()
		return nil, ctx.Err()
	}

	if err := sess.Stop(); err != nil {
		return nil, err
	}
	fmt.Fprintln(out)
	return sess.TakeArtifact()
}
