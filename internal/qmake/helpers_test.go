package qmake

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/qobs-build/qmakestep/internal/diag"
	"github.com/qobs-build/qmakestep/internal/kit"
	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/qobs-build/qmakestep/internal/qtversion"
	"github.com/stretchr/testify/require"
)

// fakeRunner records every command and answers from canned results keyed
// by the command path. A command whose path is blockOn waits for
// cancellation.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []process.Command
	results map[string]process.Result
	errs    map[string]error
	lines   map[string][]string
	blockOn string
	started chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: map[string]process.Result{},
		errs:    map[string]error{},
		lines:   map[string][]string{},
		started: make(chan struct{}),
	}
}

func (r *fakeRunner) Run(ctx context.Context, cmd process.Command, onLine process.LineHandler) (process.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	for _, line := range r.lines[cmd.Path] {
		onLine(line, false)
	}
	if cmd.Path == r.blockOn {
		close(r.started)
		<-ctx.Done()
		return process.Result{ExitCode: -1, Crashed: true}, ctx.Err()
	}
	return r.results[cmd.Path], r.errs[cmd.Path]
}

func (r *fakeRunner) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c.Path)
	}
	return out
}

type message struct {
	text   string
	format OutputFormat
}

type recordingOutput struct {
	mu       sync.Mutex
	messages []message
	tasks    []diag.Task
	progress []int
}

func (o *recordingOutput) AddOutput(text string, format OutputFormat) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, message{text, format})
}

func (o *recordingOutput) AddTask(t diag.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks = append(o.tasks, t)
}

func (o *recordingOutput) Progress(percent int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, percent)
}

func (o *recordingOutput) texts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, m := range o.messages {
		out = append(out, m.text)
	}
	return out
}

func comparing(c MakefileComparison) Comparer {
	return func(string, process.Command) MakefileComparison { return c }
}

const makeTool = "/usr/bin/make"

type fixture struct {
	dir     string
	proFile string
	build   string
	qmake   string
	bc      *BuildConfiguration
	kit     *kit.Kit
}

// newFixture lays out a source dir with app.pro, a sibling build dir and an
// executable qmake, and returns a desktop kit for Qt number.
func newFixture(t *testing.T, number string) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := &fixture{
		dir:     dir,
		proFile: filepath.Join(dir, "app", "app.pro"),
		build:   filepath.Join(dir, "build-app"),
		qmake:   filepath.Join(dir, "qt", "bin", "qmake"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.proFile), 0o755))
	require.NoError(t, os.WriteFile(f.proFile, []byte("TEMPLATE = app\nSOURCES += main.cpp\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.qmake), 0o755))
	require.NoError(t, os.WriteFile(f.qmake, []byte("#!/bin/sh\n"), 0o755))

	abi, err := qtversion.ParseAbi("x86-linux-generic-elf-64bit")
	require.NoError(t, err)

	f.kit = &kit.Kit{
		Name: "Desktop",
		Qt: &qtversion.Version{
			QmakeCommand: f.qmake,
			Number:       number,
			Type:         qtversion.TypeDesktop,
			Mkspec:       "linux-g++",
			Abis:         []qtversion.Abi{abi},
		},
		ToolChain:   kit.ToolChain{Type: kit.ToolChainGCC, TargetAbi: abi},
		Mkspec:      "linux-g++",
		MakeCommand: makeTool,
		HostOS:      "linux",
	}
	f.bc = &BuildConfiguration{
		ProjectFile: f.proFile,
		BuildDir:    f.build,
		ProjectType: AppTemplate,
		Flags:       qtversion.BuildFlags{Debug: true},
		Macros:      NewMacroExpander(map[string]string{"BuildDir": f.build, "ProjectName": "app"}),
	}
	return f
}

func (f *fixture) step(runner process.Runner, out Output, opts ...Option) *Step {
	opts = append([]Option{WithRunner(runner), WithOutput(out)}, opts...)
	return NewStep(f.bc, f.kit, opts...)
}
