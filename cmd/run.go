// qmakestep run [project dir]
package cmd

import (
	"os"
	"os/signal"
	"time"

	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagForce     bool
	flagAlwaysRun bool
)

func doRun(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s := loadSession(ctx, targetDir(args))
	if flagForce {
		s.step.SetForced(true)
	}
	msg.Debug("%s", s.step.EffectiveCommandPreview())

	start := time.Now()
	outcome, err := s.step.Run(ctx)
	s.save()
	if err != nil {
		msg.Fatal("%v", err)
	}

	switch {
	case outcome.Canceled:
		msg.Fatal("qmake step canceled")
	case !outcome.Success:
		msg.Fatal("qmake step failed")
	}
	msg.Info("qmake step finished in %s", time.Since(start).Round(time.Millisecond))
}

var runCmd = &cobra.Command{
	Use:   "run [project dir]",
	Short: "Run qmake if the Makefiles are stale",
	Long:  `Run qmake if the Makefiles are stale. If no project dir is given, uses --dir or "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doRun,
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Run qmake even if the Makefiles are up to date")
	cmd.Flags().BoolVar(&flagAlwaysRun, "always-run", false, "Run qmake on every invocation")
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}
