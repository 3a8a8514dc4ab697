// qmakestep [project dir]
package cmd

import (
	"fmt"
	"os"

	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagDir     string
	flagKit     string
	flagVerbose bool
	flagConfig  EnumValue = NewEnumValue("auto", map[string]string{
		"auto":    "Use [build] mode from Qmakestep.toml (default)",
		"debug":   "Build the debug configuration",
		"release": "Build the release configuration",
	})
)

var rootCmd = &cobra.Command{
	Use:   "qmakestep [project dir]",
	Short: "Run qmake for a project when its Makefiles are stale",
	Long: `Run qmake for a project when its Makefiles are stale, followed by
"make qmake_all" on Qt 5 and newer. Without a subcommand, runs the step.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.Verbose = flagVerbose
	},
	Run: doRun,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().StringVarP(&flagKit, "kit", "k", "", "Kit from the kit index, overrides [project] kit")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug messages")
	rootCmd.PersistentFlags().VarP(&flagConfig, "config", "c", "Build configuration, one of "+flagConfig.HelpString())
	rootCmd.RegisterFlagCompletionFunc("config", flagConfig.CompletionFunc())

	addRunFlags(rootCmd)
}

// targetDir is the positional project directory if given, else --dir.
func targetDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return flagDir
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
