// Package qtversion models a Qt installation as seen through its qmake.
package qtversion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qobs-build/qmakestep/internal/process"
	"golang.org/x/mod/semver"
)

type Type string

const (
	TypeDesktop Type = "desktop"
	TypeIOS     Type = "ios"
	TypeAndroid Type = "android"
)

// BuildFlags is the qmake build configuration: debug or release, and
// whether both are built (debug_and_release).
type BuildFlags struct {
	Debug    bool
	BuildAll bool
}

type Version struct {
	QmakeCommand string
	Number       string // "5.15.2"
	Type         Type
	Mkspec       string // target mkspec (QMAKE_XSPEC)
	HostMkspec   string // QMAKE_SPEC
	Prefix       string
	Sysroot      string
	Abis         []Abi
	// DefaultBuild is what qmake builds when CONFIG is not overridden.
	DefaultBuild BuildFlags
}

var (
	errNoQmake        = errors.New("no qmake command set")
	errNoVersionQuery = errors.New("qmake -query did not report QT_VERSION")
)

// IsValid reports whether the version has a qmake and a parseable number.
func (v *Version) IsValid() bool {
	return v != nil && v.QmakeCommand != "" && semver.IsValid(canonical(v.Number))
}

func (v *Version) invalidReason() string {
	switch {
	case v == nil || v.QmakeCommand == "":
		return "no qmake command"
	default:
		return fmt.Sprintf("cannot parse Qt version number %q", v.Number)
	}
}

func canonical(number string) string {
	if number == "" {
		return ""
	}
	return "v" + strings.TrimPrefix(number, "v")
}

// AtLeast compares the Qt version number against major.minor.patch.
func (v *Version) AtLeast(major, minor, patch int) bool {
	if !v.IsValid() {
		return false
	}
	return semver.Compare(canonical(v.Number), fmt.Sprintf("v%d.%d.%d", major, minor, patch)) >= 0
}

func (v *Version) DisplayName() string {
	if v == nil {
		return "<no Qt version>"
	}
	return fmt.Sprintf("Qt %s (%s)", v.Number, v.QmakeCommand)
}

// Query asks qmake about its installation and returns the Version it
// describes. typ defaults to a type guessed from the target mkspec.
func Query(ctx context.Context, runner process.Runner, qmake string, typ Type) (*Version, error) {
	if qmake == "" {
		return nil, errNoQmake
	}

	props := make(map[string]string)
	res, err := runner.Run(ctx, process.Command{Path: qmake, Args: []string{"-query"}}, func(line string, stderr bool) {
		if stderr {
			return
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.Contains(key, "/") {
			return
		}
		if _, seen := props[key]; !seen {
			props[key] = strings.TrimSpace(value)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run %s -query: %w", qmake, err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("%s -query exited with code %d", qmake, res.ExitCode)
	}

	return FromProperties(qmake, props, typ)
}

// FromProperties builds a Version from `qmake -query` key/value pairs.
func FromProperties(qmake string, props map[string]string, typ Type) (*Version, error) {
	number := props["QT_VERSION"]
	if number == "" {
		return nil, errNoVersionQuery
	}

	v := &Version{
		QmakeCommand: qmake,
		Number:       number,
		Type:         typ,
		Mkspec:       props["QMAKE_XSPEC"],
		HostMkspec:   props["QMAKE_SPEC"],
		Prefix:       props["QT_INSTALL_PREFIX"],
		Sysroot:      props["QT_SYSROOT"],
	}
	if v.Mkspec == "" {
		v.Mkspec = v.HostMkspec
	}
	if v.Type == "" {
		v.Type = guessType(v.Mkspec)
	}

	dataDir := props["QT_HOST_DATA"]
	if dataDir == "" {
		dataDir = props["QT_INSTALL_ARCHDATA"]
	}
	if dataDir == "" {
		dataDir = v.Prefix
	}
	if dataDir != "" {
		if flags, err := readQConfig(filepath.Join(dataDir, "mkspecs", "qconfig.pri")); err == nil {
			v.DefaultBuild = flags
		}
	}

	return v, nil
}

func guessType(mkspec string) Type {
	switch {
	case strings.Contains(mkspec, "android"):
		return TypeAndroid
	case strings.Contains(mkspec, "macx-ios"):
		return TypeIOS
	default:
		return TypeDesktop
	}
}

// readQConfig reads the default build flags from the CONFIG lines of
// mkspecs/qconfig.pri. The last of debug/release wins.
func readQConfig(path string) (BuildFlags, error) {
	f, err := os.Open(path)
	if err != nil {
		return BuildFlags{}, err
	}
	defer f.Close()

	var flags BuildFlags
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := strings.CutPrefix(line, "CONFIG")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "+=") && !strings.HasPrefix(rest, "=") {
			continue
		}
		rest = strings.TrimLeft(rest, "+=")
		for _, word := range strings.Fields(rest) {
			switch word {
			case "debug":
				flags.Debug = true
			case "release":
				flags.Debug = false
			case "debug_and_release", "build_all":
				flags.BuildAll = true
			}
		}
	}
	return flags, sc.Err()
}
