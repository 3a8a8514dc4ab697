// qmakestep args [project dir], qmakestep preview [project dir]
package cmd

import (
	"fmt"

	"github.com/qobs-build/qmakestep/internal/qmake"
	"github.com/spf13/cobra"
)

var (
	flagOmitProjectPath bool
	flagExpand          bool
	flagParser          bool
)

var argsCmd = &cobra.Command{
	Use:   "args [project dir]",
	Short: "Print the qmake arguments",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSession(cmd.Context(), targetDir(args))
		if flagParser {
			fmt.Println(qmake.JoinArgs(s.step.ParserArguments()))
			return
		}

		var flags qmake.ArgumentFlags
		if flagOmitProjectPath {
			flags |= qmake.OmitProjectPath
		}
		if flagExpand {
			flags |= qmake.Expand
		}
		fmt.Println(s.step.AllArguments(s.kit.Qt, flags))
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview [project dir]",
	Short: "Print the commands a run would execute",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSession(cmd.Context(), targetDir(args))
		fmt.Println(s.step.EffectiveCommandPreview())
	},
}

func init() {
	rootCmd.AddCommand(argsCmd)
	argsCmd.Flags().BoolVar(&flagOmitProjectPath, "omit-project-path", false, "Pass the project file name instead of its path")
	argsCmd.Flags().BoolVarP(&flagExpand, "expand", "e", false, "Expand %{...} macros")
	argsCmd.Flags().BoolVar(&flagParser, "parser", false, "Print the arguments the qmake output parser sees")

	rootCmd.AddCommand(previewCmd)
}
