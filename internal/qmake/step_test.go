package qmake

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/qobs-build/qmakestep/internal/diag"
	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRunRegenerates(t *testing.T) {
	f := newFixture(t, "5.15.2")
	runner := newFakeRunner()
	out := &recordingOutput{}
	s := f.step(runner, out, WithComparer(comparing(MakefileDoesNotMatch)))
	visited := record(s.Sequencer())

	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, []string{f.qmake, makeTool}, runner.paths())
	assert.Equal(t, []State{StateRunGeneration, StateRunDownstreamToolIfStale, StatePostProcess, StateIdle},
		[]State{(*visited)[0].to, (*visited)[1].to, (*visited)[2].to, (*visited)[3].to})

	gen := runner.calls[0]
	assert.Equal(t, []string{f.proFile, "-spec", "linux-g++", "CONFIG+=debug"}, gen.Args)
	assert.Equal(t, f.build, gen.Dir)

	downstream := runner.calls[1]
	assert.Equal(t, []string{"-f", filepath.Join(f.build, "Makefile"), "qmake_all"}, downstream.Args)
	assert.False(t, s.NeedToRun())
}

func TestStepRunSkipsWhenMakefileMatches(t *testing.T) {
	f := newFixture(t, "5.15.2")
	runner := newFakeRunner()
	out := &recordingOutput{}
	s := f.step(runner, out, WithComparer(comparing(MakefileMatches)))

	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Empty(t, runner.paths())
	assert.Contains(t, out.texts(), "Configuration unchanged, skipping qmake step.")
}

func TestStepForcedAndAlwaysRun(t *testing.T) {
	f := newFixture(t, "5.15.2")

	runner := newFakeRunner()
	s := f.step(runner, &recordingOutput{}, WithComparer(comparing(MakefileMatches)))
	s.SetForced(true)
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, runner.paths(), 2)
	assert.False(t, s.Forced())

	// forced was consumed, so the next run skips
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, runner.paths(), 2)

	runner = newFakeRunner()
	s = f.step(runner, &recordingOutput{}, WithComparer(comparing(MakefileMatches)), WithAlwaysRun(true))
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, runner.paths(), 2)
}

func TestStepFailureKeepsNeedToRun(t *testing.T) {
	f := newFixture(t, "5.15.2")
	runner := newFakeRunner()
	runner.results[f.qmake] = process.Result{ExitCode: 1}
	s := f.step(runner, &recordingOutput{}, WithComparer(comparing(MakefileDoesNotMatch)))

	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, []string{f.qmake}, runner.paths())
	assert.True(t, s.NeedToRun())

	// the Makefile now looks fine, but the failed run is not forgotten
	runner.results[f.qmake] = process.Result{}
	s.compare = comparing(MakefileMatches)
	outcome, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, []string{f.qmake, f.qmake, makeTool}, runner.paths())
	assert.False(t, s.NeedToRun())
}

func TestStepCancelMidGeneration(t *testing.T) {
	f := newFixture(t, "5.15.2")
	runner := newFakeRunner()
	runner.blockOn = f.qmake
	s := f.step(runner, &recordingOutput{}, WithComparer(comparing(MakefileDoesNotMatch)))
	visited := record(s.Sequencer())

	go func() {
		<-runner.started
		s.Cancel()
	}()
	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Canceled: true}, outcome)
	assert.Equal(t, []string{f.qmake}, runner.paths())
	assert.Equal(t, transition{StateRunGeneration, StatePostProcess}, (*visited)[1])
	assert.True(t, s.NeedToRun())
}

func TestStepScriptTemplate(t *testing.T) {
	f := newFixture(t, "5.15.2")
	f.bc.ProjectType = ScriptTemplate
	runner := newFakeRunner()
	s := f.step(runner, &recordingOutput{}, WithComparer(comparing(MakefileDoesNotMatch)))

	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Empty(t, runner.paths())
}

func TestStepLegacyQt(t *testing.T) {
	f := newFixture(t, "4.8.7")
	f.kit.MakeCommand = ""
	runner := newFakeRunner()
	s := f.step(runner, &recordingOutput{}, WithComparer(comparing(MakefileDoesNotMatch)))

	plan, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.False(t, plan.RunCompanionPass())
	assert.Equal(t, []string{f.proFile, "-r", "-spec", "linux-g++", "CONFIG+=debug"}, plan.Generation.Args)

	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, []string{f.qmake}, runner.paths())
}

func TestStepSetupErrors(t *testing.T) {
	t.Run("no Qt version", func(t *testing.T) {
		f := newFixture(t, "5.15.2")
		f.kit.Qt = nil
		out := &recordingOutput{}
		runner := newFakeRunner()
		_, err := f.step(runner, out).Run(context.Background())
		assert.ErrorIs(t, err, ErrSetup)
		assert.Equal(t, []string{noQtVersionMessage}, out.texts())
		assert.Empty(t, runner.paths())
	})

	t.Run("no make", func(t *testing.T) {
		f := newFixture(t, "6.5.0")
		f.kit.MakeCommand = ""
		out := &recordingOutput{}
		runner := newFakeRunner()
		_, err := f.step(runner, out).Run(context.Background())
		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		assert.Equal(t, noMakeMessage, setupErr.Reason)
		assert.Empty(t, runner.paths())
	})
}

func TestStepFaultyConfiguration(t *testing.T) {
	f := newFixture(t, "5.15.2")
	require.NoError(t, os.Remove(f.proFile))
	out := &recordingOutput{}
	runner := newFakeRunner()
	s := f.step(runner, out, WithComparer(comparing(MakefileMatches)))
	s.SetForced(true)

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrFaultyConfiguration)
	assert.Empty(t, runner.paths())
	require.NotEmpty(t, out.tasks)
	assert.Equal(t, diag.Error, out.tasks[0].Severity)
	assert.False(t, s.Forced())
}

func TestStepWarningsDoNotAbort(t *testing.T) {
	f := newFixture(t, "5.15.2")
	f.bc.BuildDir = filepath.Join(filepath.Dir(f.proFile), "build")
	out := &recordingOutput{}
	runner := newFakeRunner()

	outcome, err := f.step(runner, out, WithComparer(comparing(MakefileDoesNotMatch))).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	require.Len(t, out.tasks, 1)
	assert.Equal(t, diag.Warning, out.tasks[0].Severity)
}

func TestStepBusy(t *testing.T) {
	f := newFixture(t, "5.15.2")
	runner := newFakeRunner()
	runner.blockOn = f.qmake
	s := f.step(runner, &recordingOutput{}, WithComparer(comparing(MakefileDoesNotMatch)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Run(context.Background())
	}()
	<-runner.started

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	s.Cancel()
	<-done
}

func TestStepBusyDuringSetup(t *testing.T) {
	f := newFixture(t, "5.15.2")
	runner := newFakeRunner()
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := func(string, process.Command) MakefileComparison {
		close(entered)
		<-release
		return MakefileMatches
	}
	s := f.step(runner, &recordingOutput{}, WithComparer(blocking))
	s.SetForced(true)

	var first Outcome
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		first, firstErr = s.Run(context.Background())
	}()
	<-entered

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-done
	require.NoError(t, firstErr)
	assert.True(t, first.Success)
	assert.Equal(t, []string{f.qmake, makeTool}, runner.paths())
	assert.False(t, s.Forced())
}

func TestStepArgumentsMacroWithSeveralArguments(t *testing.T) {
	f := newFixture(t, "5.15.2")
	s := f.step(newFakeRunner(), &recordingOutput{})
	v := f.kit.Qt
	f.bc.Macros.Set("Extra", "CONFIG+=a CONFIG+=b")
	f.bc.Macros.Set("Defines", `"DEFINES+=X Y"`)

	s.SetUserArguments("%{Extra}")
	s.SetExtraArguments([]string{"%{Defines}"})

	assert.Equal(t, []string{"app.pro", "-spec", "linux-g++", "CONFIG+=debug", "CONFIG+=a", "CONFIG+=b", "DEFINES+=X Y"},
		s.Arguments(v, OmitProjectPath|Expand))
	assert.Equal(t, "app.pro -spec linux-g++ CONFIG+=debug CONFIG+=a CONFIG+=b 'DEFINES+=X Y'",
		s.AllArguments(v, OmitProjectPath|Expand))
	assert.Equal(t, []string{"app.pro", "-spec", "linux-g++", "CONFIG+=debug", "%{Extra}", "%{Defines}"},
		s.Arguments(v, OmitProjectPath))
}

func TestStepArguments(t *testing.T) {
	f := newFixture(t, "5.15.2")
	s := f.step(newFakeRunner(), &recordingOutput{})
	v := f.kit.Qt

	s.SetUserArguments(`DESTDIR=%{BuildDir}/bin "DEFINES+=A B"`)
	s.SetExtraArguments([]string{"CONFIG+=extra"})

	raw := s.Arguments(v, OmitProjectPath)
	assert.Equal(t, []string{"app.pro", "-spec", "linux-g++", "CONFIG+=debug", "DESTDIR=%{BuildDir}/bin", "DEFINES+=A B", "CONFIG+=extra"}, raw)

	expanded := s.Arguments(v, OmitProjectPath|Expand)
	assert.Equal(t, "DESTDIR="+f.build+"/bin", expanded[4])

	assert.Equal(t, JoinArgs(expanded), s.AllArguments(v, OmitProjectPath|Expand))

	f.bc.SubProject = &SubProject{ProFile: "/src/lib/lib.pro", BuildDir: "/build/lib"}
	assert.Equal(t, "/src/lib/lib.pro", s.Arguments(v, OmitProjectPath)[0])
}

func TestStepMkspec(t *testing.T) {
	f := newFixture(t, "5.15.2")
	s := f.step(newFakeRunner(), &recordingOutput{})
	assert.Equal(t, "linux-g++", s.Mkspec())

	s.SetExtraArguments([]string{"-spec linux-clang"})
	assert.Equal(t, "linux-clang", s.Mkspec())

	s.SetUserArguments("-spec macx-clang")
	assert.Equal(t, "macx-clang", s.Mkspec())
	args := s.Arguments(f.kit.Qt, 0)
	assert.NotContains(t, args, "linux-g++")
}

func TestStepEffectiveCommandPreview(t *testing.T) {
	f := newFixture(t, "5.15.2")
	s := f.step(newFakeRunner(), &recordingOutput{})
	assert.Equal(t, f.qmake+" "+f.proFile+" -spec linux-g++ CONFIG+=debug && /usr/bin/make qmake_all", s.EffectiveCommandPreview())

	f.bc.Makefile = "Makefile.app"
	assert.Equal(t, f.qmake+" "+f.proFile+" -spec linux-g++ CONFIG+=debug && /usr/bin/make -f Makefile.app qmake_all", s.EffectiveCommandPreview())

	f.kit.MakeCommand = ""
	assert.Contains(t, s.EffectiveCommandPreview(), "&& <no Make step found> -f Makefile.app qmake_all")

	f.kit.Qt = nil
	assert.Equal(t, "<no Qt version>", s.EffectiveCommandPreview())
}

func TestStepParserArguments(t *testing.T) {
	f := newFixture(t, "5.15.2")
	s := f.step(newFakeRunner(), &recordingOutput{})
	s.SetExtraParserArguments([]string{"-after"})
	s.SetUserArguments(`"DEFINES+=A B" CONFIG+=c`)

	got := s.ParserArguments()
	assert.Equal(t, []string{"-after", f.proFile, "-spec", "linux-g++", "CONFIG+=debug", "CONFIG+=c"}, got)
}

func TestStepNotifications(t *testing.T) {
	f := newFixture(t, "5.15.2")
	s := f.step(newFakeRunner(), &recordingOutput{})

	var events []ChangeKind
	unsubscribe := s.Subscribe(func(e ChangeEvent) { events = append(events, e.Kind) })

	s.SetUserArguments("CONFIG+=a")
	s.SetUserArguments("CONFIG+=a")
	s.SetExtraArguments([]string{"X=1"})
	s.SetExtraArguments([]string{"X=1"})
	s.SetExtraParserArguments([]string{"-after"})
	s.SetForced(true)
	s.SetForced(true)

	assert.Equal(t, []ChangeKind{
		UserArgumentsChanged,
		ExtraArgumentsChanged,
		ExtraParserArgumentsChanged,
		ForcedChanged,
		ForcedChanged,
	}, events)

	unsubscribe()
	s.SetUserArguments("CONFIG+=b")
	assert.Len(t, events, 5)
}
