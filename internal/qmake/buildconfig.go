package qmake

import (
	"path/filepath"

	"github.com/qobs-build/qmakestep/internal/qtversion"
)

// ProjectType is the TEMPLATE of a .pro file.
type ProjectType string

const (
	AppTemplate     ProjectType = "app"
	LibTemplate     ProjectType = "lib"
	SubdirsTemplate ProjectType = "subdirs"
	AuxTemplate     ProjectType = "aux"
	ScriptTemplate  ProjectType = "script"
)

// SubProject is a single .pro file of a larger tree built on its own.
type SubProject struct {
	ProFile  string
	BuildDir string
	Makefile string
}

type BuildConfiguration struct {
	ProjectFile string
	SubProject  *SubProject
	BuildDir    string
	// Makefile is the name qmake writes, empty for the default "Makefile".
	Makefile    string
	ProjectType ProjectType
	Flags       qtversion.BuildFlags

	QmlDebugging      TriState
	QuickCompiler     TriState
	SeparateDebugInfo TriState

	Env    []string
	Macros *MacroExpander
}

// WorkingDir is where qmake and make run.
func (bc *BuildConfiguration) WorkingDir() string {
	if bc.SubProject != nil && bc.SubProject.BuildDir != "" {
		return bc.SubProject.BuildDir
	}
	return bc.BuildDir
}

// ProFile is the .pro file qmake is run on.
func (bc *BuildConfiguration) ProFile() string {
	if bc.SubProject != nil && bc.SubProject.ProFile != "" {
		return bc.SubProject.ProFile
	}
	return bc.ProjectFile
}

func (bc *BuildConfiguration) makefileName() string {
	if bc.SubProject != nil {
		return bc.SubProject.Makefile
	}
	return bc.Makefile
}

// MakefilePath is the full path of the Makefile qmake generates.
func (bc *BuildConfiguration) MakefilePath() string {
	name := bc.makefileName()
	if name == "" {
		name = "Makefile"
	}
	return filepath.Join(bc.WorkingDir(), name)
}

// ConfigCommandLineArguments returns the CONFIG changes needed to get the
// requested build flags out of a Qt built with defaults.
func (bc *BuildConfiguration) ConfigCommandLineArguments(defaults qtversion.BuildFlags) []string {
	var args []string
	if defaults.BuildAll && !bc.Flags.BuildAll {
		args = append(args, "CONFIG-=debug_and_release")
	}
	if !defaults.BuildAll && bc.Flags.BuildAll {
		args = append(args, "CONFIG+=debug_and_release")
	}
	if defaults.Debug && !bc.Flags.Debug {
		args = append(args, "CONFIG+=release")
	}
	if !defaults.Debug && bc.Flags.Debug {
		args = append(args, "CONFIG+=debug")
	}
	return args
}
