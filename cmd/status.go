// qmakestep status [project dir]
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/qobs-build/qmakestep/internal/diag"
	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/qobs-build/qmakestep/internal/qmake"
	"github.com/spf13/cobra"
)

func printField(name, value string) {
	fmt.Printf("%-12s %s\n", color.HiCyanString(name+":"), value)
}

func doStatus(cmd *cobra.Command, args []string) {
	s := loadSession(cmd.Context(), targetDir(args))
	v := s.kit.Qt

	printField("project", s.project.ProFile)
	if sub := s.bc.SubProject; sub != nil {
		printField("subproject", sub.ProFile)
	}
	printField("template", string(s.bc.ProjectType))
	printField("kit", s.kit.Name)
	printField("qt", v.DisplayName())
	printField("mkspec", s.step.Mkspec())
	printField("build dir", s.bc.WorkingDir())
	printField("makefile", s.bc.MakefilePath())
	printField("forced", fmt.Sprint(s.step.Forced()))
	if abis := s.step.SelectedAbis(); len(abis) > 0 {
		printField("abis", fmt.Sprint(abis))
	}

	if v == nil {
		msg.Warn("no Qt version configured")
		return
	}

	call := process.Command{Path: v.QmakeCommand, Args: s.step.Arguments(v, qmake.Expand)}
	cmp := qmake.CompareMakefile(s.bc.MakefilePath(), call)
	printField("state", cmp.String())
	if qmake.ShouldRegenerate(s.step.Forced(), s.alwaysRun, cmp) {
		msg.Info("qmake will run")
	} else {
		msg.Info("qmake is up to date")
	}
	if cmp == qmake.MakefileDoesNotMatch {
		if diff, err := qmake.MakefileDiff(s.bc.MakefilePath(), call); err == nil {
			fmt.Println(diff)
		}
	}

	for _, t := range v.ReportIssues(s.bc.ProFile(), s.bc.WorkingDir()) {
		if t.Severity == diag.Error {
			msg.Error("%s", t)
		} else {
			msg.Warn("%s", t)
		}
	}
}

var statusCmd = &cobra.Command{
	Use:   "status [project dir]",
	Short: "Show whether qmake needs to run, and why",
	Args:  cobra.MaximumNArgs(1),
	Run:   doStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
