// qmakestep set args|extra|parser-args|forced
package cmd

import (
	"strconv"
	"strings"

	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/qmake"
	"github.com/spf13/cobra"
)

// changed logs what a setter changed.
func changed(e qmake.ChangeEvent) {
	msg.Debug("%s changed", e.Kind)
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the qmake step settings of the build directory",
}

var setArgsCmd = &cobra.Command{
	Use:   "args [-- qmake arguments...]",
	Short: "Set the additional qmake arguments",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSession(cmd.Context(), flagDir)
		s.step.Subscribe(changed)
		s.step.SetUserArguments(qmake.JoinArgs(args))
		s.save()
		msg.Info("qmake arguments: %s", s.step.UserArguments())
	},
}

var setExtraCmd = &cobra.Command{
	Use:   "extra [arguments...]",
	Short: "Set the extra qmake arguments, one per argument",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSession(cmd.Context(), flagDir)
		s.step.Subscribe(changed)
		s.step.SetExtraArguments(args)
		s.save()
		msg.Info("extra arguments: %s", strings.Join(s.step.ExtraArguments(), " "))
	},
}

var setParserArgsCmd = &cobra.Command{
	Use:   "parser-args [arguments...]",
	Short: "Set extra arguments handed to the qmake output parser",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSession(cmd.Context(), flagDir)
		s.step.Subscribe(changed)
		s.step.SetExtraParserArguments(args)
		s.save()
		msg.Info("parser arguments: %s", strings.Join(s.step.ExtraParserArguments(), " "))
	},
}

var setForcedCmd = &cobra.Command{
	Use:   "forced <true|false>",
	Short: "Force qmake to run on the next run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		forced, err := strconv.ParseBool(args[0])
		if err != nil {
			msg.Fatal("invalid value %q: %v", args[0], err)
		}
		s := loadSession(cmd.Context(), flagDir)
		s.step.Subscribe(changed)
		s.step.SetForced(forced)
		s.save()
		msg.Info("forced: %t", forced)
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.AddCommand(setArgsCmd, setExtraCmd, setParserArgsCmd, setForcedCmd)
}
