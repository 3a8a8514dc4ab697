// qmakestep abis [abi...]
package cmd

import (
	"fmt"
	"slices"

	"github.com/fatih/color"
	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/spf13/cobra"
)

var flagListAbis bool

func doAbis(cmd *cobra.Command, args []string) {
	s := loadSession(cmd.Context(), flagDir)
	v := s.kit.Qt
	if v == nil {
		msg.Fatal("no Qt version configured")
	}

	if flagListAbis {
		selected := s.step.SelectedAbis()
		for _, abi := range v.Abis {
			name := abi.Param()
			if slices.Contains(selected, name) {
				fmt.Printf("* %s\n", color.HiGreenString(name))
			} else {
				fmt.Printf("  %s\n", name)
			}
		}
		return
	}

	abis, err := s.step.SelectAbis(args)
	if err != nil {
		msg.Fatal("%v", err)
	}
	s.save()
	msg.Info("building for %v", abis)
}

var abisCmd = &cobra.Command{
	Use:   "abis [abi...]",
	Short: "Select the ABIs to build for a multi-ABI Qt",
	Long: `Select the ABIs to build for a multi-ABI Qt such as Qt for Android.
Without arguments, selects the preferred ABI.`,
	Args: cobra.ArbitraryArgs,
	Run:  doAbis,
}

func init() {
	rootCmd.AddCommand(abisCmd)
	abisCmd.Flags().BoolVarP(&flagListAbis, "list", "l", false, "List available ABIs, marking the selected ones")
}
