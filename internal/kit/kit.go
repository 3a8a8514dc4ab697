// Package kit resolves the toolchain, Qt version and tools a build uses.
package kit

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"

	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/qobs-build/qmakestep/internal/qtversion"
)

type ToolChainType string

const (
	ToolChainGCC   ToolChainType = "gcc"
	ToolChainClang ToolChainType = "clang"
	ToolChainMSVC  ToolChainType = "msvc"
	ToolChainMinGW ToolChainType = "mingw"
)

// Spec is a kit as written in a [kit] section.
type Spec struct {
	Name         string            `toml:"name"`
	Qmake        string            `toml:"qmake"`
	QtType       string            `toml:"qt_type"`
	Make         string            `toml:"make"`
	Mkspec       string            `toml:"mkspec"`
	Sysroot      string            `toml:"sysroot"`
	ToolChain    string            `toml:"toolchain"`
	TargetTriple string            `toml:"target_triple"`
	Abi          string            `toml:"abi"`
	QtAbis       []string          `toml:"qt_abis"`
	Env          map[string]string `toml:"env"`
}

type ToolChain struct {
	Type                 ToolChainType
	TargetAbi            qtversion.Abi
	OriginalTargetTriple string
}

// Kit is a resolved Spec.
type Kit struct {
	Name string
	// Qt is nil when no qmake could be found.
	Qt          *qtversion.Version
	ToolChain   ToolChain
	SysRoot     string
	Mkspec      string // effective target mkspec
	MakeCommand string // empty when no make tool was found
	Env         []string
	HostOS      string
}

var qmakeNames = []string{"qmake", "qmake6", "qmake-qt5"}

// Resolve looks up the tools named by spec, probes qmake, and fills in
// defaults for everything left unset.
func Resolve(ctx context.Context, runner process.Runner, spec Spec) (*Kit, error) {
	k := &Kit{
		Name:    spec.Name,
		SysRoot: spec.Sysroot,
		HostOS:  runtime.GOOS,
		Env:     mergeEnv(os.Environ(), spec.Env),
	}
	if k.Name == "" {
		k.Name = "default"
	}

	abi := HostAbi()
	if spec.Abi != "" {
		var err error
		if abi, err = qtversion.ParseAbi(spec.Abi); err != nil {
			return nil, fmt.Errorf("kit %q: %w", k.Name, err)
		}
	}
	k.ToolChain = ToolChain{
		Type:                 toolChainType(spec.ToolChain),
		TargetAbi:            abi,
		OriginalTargetTriple: spec.TargetTriple,
	}

	if qmake := findQmake(spec.Qmake); qmake != "" {
		v, err := qtversion.Query(ctx, runner, qmake, qtversion.Type(spec.QtType))
		if err != nil {
			msg.Warn("could not query %s: %v", qmake, err)
			v = &qtversion.Version{QmakeCommand: qmake, Type: qtversion.Type(spec.QtType)}
		}
		abis, err := parseAbis(spec.QtAbis)
		if err != nil {
			return nil, fmt.Errorf("kit %q: %w", k.Name, err)
		}
		if len(abis) == 0 {
			abis = []qtversion.Abi{abi}
		}
		v.Abis = abis
		k.Qt = v
	}

	k.Mkspec = spec.Mkspec
	if k.Mkspec == "" && k.Qt != nil {
		k.Mkspec = k.Qt.Mkspec
	}

	k.MakeCommand = FindMake(spec.Make, k.ToolChain.Type)
	return k, nil
}

func findQmake(configured string) string {
	if configured != "" {
		if path, err := exec.LookPath(configured); err == nil {
			return path
		}
		return configured
	}
	for _, name := range qmakeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func parseAbis(specs []string) ([]qtversion.Abi, error) {
	abis := make([]qtversion.Abi, 0, len(specs))
	for _, s := range specs {
		abi, err := qtversion.ParseAbi(s)
		if err != nil {
			return nil, err
		}
		abis = append(abis, abi)
	}
	return abis, nil
}

func toolChainType(s string) ToolChainType {
	switch t := ToolChainType(strings.ToLower(s)); t {
	case ToolChainClang, ToolChainMSVC, ToolChainMinGW:
		return t
	case "":
		if runtime.GOOS == "darwin" {
			return ToolChainClang
		}
		return ToolChainGCC
	default:
		return ToolChainGCC
	}
}

// HostAbi describes the machine we are running on.
func HostAbi() qtversion.Abi {
	abi := qtversion.Abi{OSFlavor: "generic", WordWidth: 64}
	switch runtime.GOARCH {
	case "amd64":
		abi.Arch = qtversion.ArchX86
	case "386":
		abi.Arch, abi.WordWidth = qtversion.ArchX86, 32
	case "arm64":
		abi.Arch = qtversion.ArchArm
	case "arm":
		abi.Arch, abi.WordWidth = qtversion.ArchArm, 32
	case "ppc64", "ppc64le":
		abi.Arch = qtversion.ArchPowerPC
	default:
		abi.Arch = runtime.GOARCH
	}
	switch runtime.GOOS {
	case "darwin":
		abi.OS, abi.Format = qtversion.OSDarwin, qtversion.FormatMachO
	case "windows":
		abi.OS, abi.Format = qtversion.OSWindows, "pe"
	default:
		abi.OS, abi.Format = qtversion.OSLinux, "elf"
	}
	return abi
}

// mergeEnv overrides base (KEY=VALUE entries) with extra, keeping base's
// order and appending new keys sorted.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(extra))
	for _, e := range base {
		key, _, _ := strings.Cut(e, "=")
		if v, ok := extra[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
			continue
		}
		out = append(out, e)
	}
	for _, key := range slices.Sorted(maps.Keys(extra)) {
		if !seen[key] {
			out = append(out, key+"="+extra[key])
		}
	}
	return out
}
