// Package qmake implements the qmake build step: it decides whether qmake
// has to run, assembles its command line, and sequences qmake and the
// optional "make qmake_all" pass.
package qmake

import (
	"github.com/qobs-build/qmakestep/internal/kit"
	"github.com/qobs-build/qmakestep/internal/qtversion"
)

type TargetArch int

const (
	ArchNone TargetArch = iota
	ArchX86
	ArchX86_64
	ArchPowerPC
	ArchPowerPC64
)

type OSType int

const (
	OSNone OSType = iota
	OSSimulator
	OSDevice
)

// TriState is an option that can be forced on, forced off, or left to the
// project's own default.
type TriState int

const (
	Unset TriState = iota
	Enabled
	Disabled
)

func (t TriState) String() string {
	switch t {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unset"
	}
}

func ParseTriState(s string) (TriState, bool) {
	switch s {
	case "enabled", "on", "true":
		return Enabled, true
	case "disabled", "off", "false":
		return Disabled, true
	case "unset", "":
		return Unset, true
	default:
		return Unset, false
	}
}

func TriStateFromBool(b bool) TriState {
	if b {
		return Enabled
	}
	return Disabled
}

// GenerationConfig is what the kit and build configuration contribute to
// the qmake command line. It is derived fresh for every run.
type GenerationConfig struct {
	Arch              TargetArch
	OS                OSType
	QmlDebugging      TriState
	QuickCompiler     TriState
	SeparateDebugInfo TriState
	SysRoot           string
	// TargetTriple is only used together with SysRoot.
	TargetTriple string
}

func (c GenerationConfig) ToArguments() []string {
	var args []string

	switch c.Arch {
	case ArchX86:
		args = append(args, "CONFIG+=x86")
	case ArchX86_64:
		args = append(args, "CONFIG+=x86_64")
	case ArchPowerPC:
		args = append(args, "CONFIG+=ppc")
	case ArchPowerPC64:
		args = append(args, "CONFIG+=ppc64")
	}

	// the second flag is what Qt >= 5.7 understands
	switch c.OS {
	case OSSimulator:
		args = append(args, "CONFIG+=iphonesimulator", "CONFIG+=simulator")
	case OSDevice:
		args = append(args, "CONFIG+=iphoneos", "CONFIG+=device")
	}

	args = appendTriState(args, c.QmlDebugging, "qml_debug")
	args = appendTriState(args, c.QuickCompiler, "qtquickcompiler")
	if c.SeparateDebugInfo == Enabled {
		args = append(args, "CONFIG+=force_debug_info")
	}
	args = appendTriState(args, c.SeparateDebugInfo, "separate_debug_info")

	if c.SysRoot != "" {
		args = append(args,
			`QMAKE_CFLAGS+=--sysroot="`+c.SysRoot+`"`,
			`QMAKE_CXXFLAGS+=--sysroot="`+c.SysRoot+`"`,
			`QMAKE_LFLAGS+=--sysroot="`+c.SysRoot+`"`,
		)
		if c.TargetTriple != "" {
			args = append(args,
				"QMAKE_CFLAGS+=--target="+c.TargetTriple,
				"QMAKE_CXXFLAGS+=--target="+c.TargetTriple,
				"QMAKE_LFLAGS+=--target="+c.TargetTriple,
			)
		}
	}

	return args
}

func appendTriState(args []string, t TriState, name string) []string {
	switch t {
	case Enabled:
		return append(args, "CONFIG+="+name)
	case Disabled:
		return append(args, "CONFIG-="+name)
	default:
		return args
	}
}

// TargetArchFor picks the CONFIG architecture for a macOS desktop Qt.
// Everything else builds for the mkspec's default architecture.
func TargetArchFor(abi qtversion.Abi, v *qtversion.Version) TargetArch {
	if v == nil || v.Type != qtversion.TypeDesktop {
		return ArchNone
	}
	if abi.OS != qtversion.OSDarwin || abi.Format != qtversion.FormatMachO {
		return ArchNone
	}
	switch {
	case abi.Arch == qtversion.ArchX86 && abi.WordWidth == 32:
		return ArchX86
	case abi.Arch == qtversion.ArchX86 && abi.WordWidth == 64:
		return ArchX86_64
	case abi.Arch == qtversion.ArchPowerPC && abi.WordWidth == 32:
		return ArchPowerPC
	case abi.Arch == qtversion.ArchPowerPC && abi.WordWidth == 64:
		return ArchPowerPC64
	}
	return ArchNone
}

// OSTypeFor picks simulator or device for an iOS Qt.
func OSTypeFor(abi qtversion.Abi, v *qtversion.Version) OSType {
	if v == nil || v.Type != qtversion.TypeIOS {
		return OSNone
	}
	if abi.OS != qtversion.OSDarwin || abi.Format != qtversion.FormatMachO {
		return OSNone
	}
	switch abi.Arch {
	case qtversion.ArchX86:
		return OSSimulator
	case qtversion.ArchArm:
		return OSDevice
	}
	return OSNone
}

// DeriveGenerationConfig collects the generation flags for a kit and build
// configuration. Sysroot and target triple are only passed for clang on a
// Windows host, where the toolchain cannot infer them.
func DeriveGenerationConfig(k *kit.Kit, bc *BuildConfiguration) GenerationConfig {
	var cfg GenerationConfig
	if k != nil {
		abi := k.ToolChain.TargetAbi
		if k.HostOS == "windows" && k.ToolChain.Type == kit.ToolChainClang {
			cfg.SysRoot = k.SysRoot
			cfg.TargetTriple = k.ToolChain.OriginalTargetTriple
		}
		cfg.Arch = TargetArchFor(abi, k.Qt)
		cfg.OS = OSTypeFor(abi, k.Qt)
	}
	if bc != nil {
		cfg.QmlDebugging = bc.QmlDebugging
		cfg.QuickCompiler = bc.QuickCompiler
		cfg.SeparateDebugInfo = bc.SeparateDebugInfo
	}
	return cfg
}
