package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// ffmpegChecker is implemented by devices that shell out to ffmpeg
type ffmpegChecker interface {
	CheckFFmpeg() error
}

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := doctor(cmd.Context(), deps, cmd.OutOrStdout())
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "\nAll prerequisites met. Ready to record!")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

func doctor(ctx context.Context, deps *Dependencies, w io.Writer) bool {
	ok := true

	if c, isFFmpeg := deps.Mic.(ffmpegChecker); isFFmpeg {
		if err := c.CheckFFmpeg(); err != nil {
			check(w, "ffmpeg", false, "not found. Install ffmpeg or set FFMPEG_PATH")
			ok = false
		} else {
			check(w, "ffmpeg", true, "installed")
		}
	}
	check(w, "Input device", true, deps.Config.Capture.InputFormat+" "+deps.Config.Capture.InputDevice)

	if !deps.Backend.IsConfigured() {
		check(w, "Backend", false, "not set. Set BACKEND_BASE_URL or add to config")
		return false
	}
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := deps.Backend.HealthCheck(hctx); err != nil {
		check(w, "Backend", false, err.Error())
		ok = false
	} else {
		check(w, "Backend", true, "reachable at "+deps.Config.Backend.BaseURL)
	}

	return ok
}

func check(w io.Writer, name string, passed bool, detail string) {
	mark := "✗"
	if passed {
		mark = "✓"
	}
	fmt.Fprintf(w, "%s %s: %s\n", mark, name, detail)
}
