package qtversion

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/qobs-build/qmakestep/internal/diag"
	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbi(t *testing.T) {
	abi, err := ParseAbi("x86-darwin-generic-mach_o-64bit")
	require.NoError(t, err)
	assert.Equal(t, Abi{Arch: "x86", OS: "darwin", OSFlavor: "generic", Format: "mach_o", WordWidth: 64}, abi)
	assert.Equal(t, "x86-darwin-generic-mach_o-64bit", abi.String())
	assert.Equal(t, abi.String(), abi.Param())

	_, err = ParseAbi("x86-linux")
	assert.Error(t, err)
	_, err = ParseAbi("x86-linux-generic-elf-64")
	assert.Error(t, err)
}

func TestAbiParamAndroid(t *testing.T) {
	tests := map[string]string{
		"arm-linux-android-elf-64bit": "arm64-v8a",
		"arm-linux-android-elf-32bit": "armeabi-v7a",
		"x86-linux-android-elf-64bit": "x86_64",
		"x86-linux-android-elf-32bit": "x86",
	}
	for in, want := range tests {
		abi, err := ParseAbi(in)
		require.NoError(t, err)
		assert.True(t, abi.IsAndroid())
		assert.Equal(t, want, abi.Param(), in)
	}
}

func TestAtLeast(t *testing.T) {
	v := &Version{QmakeCommand: "qmake", Number: "5.15.2"}
	assert.True(t, v.IsValid())
	assert.True(t, v.AtLeast(5, 0, 0))
	assert.True(t, v.AtLeast(5, 15, 2))
	assert.False(t, v.AtLeast(6, 0, 0))

	old := &Version{QmakeCommand: "qmake", Number: "4.8.7"}
	assert.False(t, old.AtLeast(5, 0, 0))

	bad := &Version{QmakeCommand: "qmake", Number: "five"}
	assert.False(t, bad.IsValid())
	assert.False(t, bad.AtLeast(1, 0, 0))

	var none *Version
	assert.False(t, none.IsValid())
	assert.Equal(t, "<no Qt version>", none.DisplayName())
}

func TestFromProperties(t *testing.T) {
	prefix := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "mkspecs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "mkspecs", "qconfig.pri"),
		[]byte("QT_CONFIG += shared\nCONFIG += debug_and_release build_all release debug\n"), 0o644))

	v, err := FromProperties("/opt/qt/bin/qmake", map[string]string{
		"QT_VERSION":        "5.12.4",
		"QMAKE_XSPEC":       "android-clang",
		"QMAKE_SPEC":        "linux-g++",
		"QT_INSTALL_PREFIX": prefix,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "5.12.4", v.Number)
	assert.Equal(t, "android-clang", v.Mkspec)
	assert.Equal(t, TypeAndroid, v.Type)
	assert.Equal(t, BuildFlags{Debug: true, BuildAll: true}, v.DefaultBuild)

	_, err = FromProperties("qmake", map[string]string{}, "")
	assert.ErrorIs(t, err, errNoVersionQuery)
}

type queryRunner struct {
	lines []string
	got   process.Command
}

func (r *queryRunner) Run(_ context.Context, cmd process.Command, onLine process.LineHandler) (process.Result, error) {
	r.got = cmd
	for _, l := range r.lines {
		onLine(l, false)
	}
	return process.Result{}, nil
}

func TestQuery(t *testing.T) {
	r := &queryRunner{lines: []string{
		"QT_SYSROOT:",
		"QT_INSTALL_PREFIX:/nonexistent/qt",
		"QT_INSTALL_PREFIX/raw:/other",
		"QT_VERSION:6.5.0",
		"QMAKE_SPEC:macx-clang",
		"QMAKE_XSPEC:macx-ios-clang",
	}}

	v, err := Query(context.Background(), r, "/qt/bin/qmake", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"-query"}, r.got.Args)
	assert.Equal(t, "/nonexistent/qt", v.Prefix)
	assert.Equal(t, TypeIOS, v.Type)
	assert.Equal(t, "macx-ios-clang", v.Mkspec)
	assert.Equal(t, BuildFlags{}, v.DefaultBuild)

	_, err = Query(context.Background(), r, "", "")
	assert.ErrorIs(t, err, errNoQmake)
}

func writeQmake(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qmake")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestReportIssues(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("path layout differs")
	}
	src := t.TempDir()
	pro := filepath.Join(src, "app.pro")
	require.NoError(t, os.WriteFile(pro, []byte("TEMPLATE = app\n"), 0o644))
	v := &Version{QmakeCommand: writeQmake(t), Number: "5.15.2"}

	t.Run("shadow build next to sources is clean", func(t *testing.T) {
		assert.Empty(t, v.ReportIssues(pro, filepath.Join(filepath.Dir(src), "build-app")))
	})

	t.Run("in-source build is clean", func(t *testing.T) {
		assert.Empty(t, v.ReportIssues(pro, src))
	})

	t.Run("build dir below sources warns", func(t *testing.T) {
		tasks := v.ReportIssues(pro, filepath.Join(src, "build"))
		require.Len(t, tasks, 1)
		assert.Equal(t, diag.Warning, tasks[0].Severity)
		assert.False(t, diag.HasErrors(tasks))
	})

	t.Run("missing qmake and project are errors", func(t *testing.T) {
		broken := &Version{QmakeCommand: filepath.Join(src, "nope", "qmake"), Number: "5.15.2"}
		tasks := broken.ReportIssues(filepath.Join(src, "missing.pro"), filepath.Join(filepath.Dir(src), "b"))
		require.Len(t, tasks, 2)
		assert.True(t, diag.HasErrors(tasks))
	})

	t.Run("invalid version is an error", func(t *testing.T) {
		tasks := (&Version{QmakeCommand: v.QmakeCommand, Number: ""}).ReportIssues(pro, src)
		require.NotEmpty(t, tasks)
		assert.Equal(t, diag.Error, tasks[0].Severity)
	})
}
