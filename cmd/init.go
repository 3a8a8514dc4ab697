// qmakestep init [project dir]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/project"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) bool {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return false
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		msg.Fatal("create file %s: %v", path, err)
	}
	fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	return true
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "qmakestep"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

func configTemplate(proFile string) string {
	return `[project]
file = "` + proFile + `"
# subproject = "src/core/core.pro"
# build_dir = "../build"
# makefile = "Makefile"
# kit = "android-multi"

[build]
mode = "debug"
build_all = false
# qml_debugging = "enabled"
# quick_compiler = "unset"
# separate_debug_info = "unset"

# [build.'target_os == "darwin"']
# quick_compiler = "enabled"

[kit]
# qmake = "{{ environ[\"QTDIR\"] }}/bin/qmake"
# mkspec = "linux-g++"
# make = "make"

[settings]
always_run_qmake = false

[macros]
# Version = "{{ ReadFile(\"VERSION\") }}"
`
}

// initIn writes a Qmakestep.toml for the .pro file found in dir
func initIn(dir string) {
	proFile, err := project.FindProFile(dir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	rel, err := filepath.Rel(dir, proFile)
	if err != nil {
		msg.Fatal("%v", err)
	}

	if !writefile(configTemplate(filepath.ToSlash(rel)), dir, project.ConfigFilename) {
		msg.Warn("%s already exists", filepath.Join(dir, project.ConfigFilename))
		return
	}

	programName := getProgramName()
	fmt.Printf("You can now do %s to run qmake, or %s to see what would run.\n",
		color.HiCyanString(programName+" "+dir), color.HiCyanString(programName+" preview "+dir))
}

var initCmd = &cobra.Command{
	Use:   "init [project dir]",
	Short: "Create a Qmakestep.toml for an existing qmake project",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(targetDir(args))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
