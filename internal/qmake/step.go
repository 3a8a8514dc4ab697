package qmake

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/qobs-build/qmakestep/internal/diag"
	"github.com/qobs-build/qmakestep/internal/kit"
	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/qobs-build/qmakestep/internal/qtversion"
)

var (
	ErrSetup               = errors.New("qmake step setup failed")
	ErrFaultyConfiguration = errors.New("configuration is faulty")
	ErrBusy                = errors.New("qmake step is already running")
)

// SetupError is returned by Init when the step cannot run at all.
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string { return e.Reason }
func (e *SetupError) Unwrap() error { return ErrSetup }

const (
	noQtVersionMessage = "No Qt version configured."
	noMakeMessage      = `Could not determine which "make" command to run. Check the "make" step in the build configuration.`
	faultyMessage      = "Configuration is faulty. Check the issues above for details."
)

type ChangeKind int

const (
	UserArgumentsChanged ChangeKind = iota
	ExtraArgumentsChanged
	ExtraParserArgumentsChanged
	ForcedChanged
)

func (k ChangeKind) String() string {
	switch k {
	case UserArgumentsChanged:
		return "user arguments"
	case ExtraArgumentsChanged:
		return "extra arguments"
	case ExtraParserArgumentsChanged:
		return "extra parser arguments"
	case ForcedChanged:
		return "forced"
	default:
		return "unknown"
	}
}

type ChangeEvent struct {
	Kind ChangeKind
}

type Listener func(ChangeEvent)

// RunPlan is what Init decided: the commands to run and whether to run
// them at all.
type RunPlan struct {
	ID         uuid.UUID
	Generation process.Command
	// Downstream is empty when no "make qmake_all" pass follows.
	Downstream process.Command
	WorkingDir string
	Makefile   string
	ScriptOnly bool
	NeedToRun  bool
	Env        []string
}

func (p *RunPlan) RunCompanionPass() bool {
	return !p.Downstream.IsEmpty()
}

type Option func(*Step)

func WithRunner(r process.Runner) Option {
	return func(s *Step) { s.runner = r }
}

func WithOutput(o Output) Option {
	return func(s *Step) { s.out = o }
}

// WithAlwaysRun makes every run regenerate, whatever the Makefile says.
func WithAlwaysRun(always bool) Option {
	return func(s *Step) { s.decider.AlwaysRun = always }
}

func WithComparer(c Comparer) Option {
	return func(s *Step) { s.compare = c }
}

// Step is the qmake step of one build configuration.
type Step struct {
	bc      *BuildConfiguration
	kit     *kit.Kit
	decider StalenessDecider
	runner  process.Runner
	out     Output
	compare Comparer
	seq     *Sequencer

	mu              sync.Mutex
	userArgs        string
	extraArgs       []string
	extraParserArgs []string
	forced          bool
	needToRun       bool
	running         bool

	lmu       sync.Mutex
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

func NewStep(bc *BuildConfiguration, k *kit.Kit, opts ...Option) *Step {
	s := &Step{
		bc:      bc,
		kit:     k,
		runner:  process.NewExecRunner(),
		out:     nopOutput{},
		compare: CompareMakefile,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seq = NewSequencer(s.runner, s.out)
	return s
}

func (s *Step) BuildConfiguration() *BuildConfiguration { return s.bc }
func (s *Step) Kit() *kit.Kit                           { return s.kit }
func (s *Step) Sequencer() *Sequencer                   { return s.seq }

// Subscribe registers l for change notifications until the returned
// function is called.
func (s *Step) Subscribe(l Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: l})
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
	}
}

func (s *Step) notify(kind ChangeKind) {
	s.lmu.Lock()
	subs := slices.Clone(s.listeners)
	s.lmu.Unlock()
	for _, sub := range subs {
		sub.fn(ChangeEvent{Kind: kind})
	}
}

func (s *Step) UserArguments() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userArgs
}

func (s *Step) SetUserArguments(args string) {
	s.mu.Lock()
	if s.userArgs == args {
		s.mu.Unlock()
		return
	}
	s.userArgs = args
	s.mu.Unlock()
	s.notify(UserArgumentsChanged)
}

func (s *Step) ExtraArguments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.extraArgs)
}

func (s *Step) SetExtraArguments(args []string) {
	s.mu.Lock()
	if slices.Equal(s.extraArgs, args) {
		s.mu.Unlock()
		return
	}
	s.extraArgs = slices.Clone(args)
	s.mu.Unlock()
	s.notify(ExtraArgumentsChanged)
}

func (s *Step) ExtraParserArguments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.extraParserArgs)
}

func (s *Step) SetExtraParserArguments(args []string) {
	s.mu.Lock()
	if slices.Equal(s.extraParserArgs, args) {
		s.mu.Unlock()
		return
	}
	s.extraParserArgs = slices.Clone(args)
	s.mu.Unlock()
	s.notify(ExtraParserArgumentsChanged)
}

func (s *Step) Forced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

// SetForced requests regeneration on the next run. The flag is consumed by
// that run whatever its outcome.
func (s *Step) SetForced(forced bool) {
	s.mu.Lock()
	s.forced = forced
	s.mu.Unlock()
	s.notify(ForcedChanged)
}

func (s *Step) NeedToRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needToRun
}

func (s *Step) setNeedToRun(need bool) {
	s.mu.Lock()
	s.needToRun = need
	s.mu.Unlock()
}

func (s *Step) qtVersion() *qtversion.Version {
	if s.kit == nil {
		return nil
	}
	return s.kit.Qt
}

// Mkspec is the -spec given in the user or extra arguments, or else the
// kit's mkspec.
func (s *Step) Mkspec() string {
	s.mu.Lock()
	args := Tokenize(s.userArgs)
	for _, extra := range s.extraArgs {
		args = append(args, Tokenize(extra)...)
	}
	s.mu.Unlock()

	if spec, ok := specFrom(args); ok {
		return filepath.ToSlash(spec)
	}
	if s.kit != nil {
		return s.kit.Mkspec
	}
	return ""
}

// DeducedArguments is the generation config for the current kit.
func (s *Step) DeducedArguments() GenerationConfig {
	return DeriveGenerationConfig(s.kit, s.bc)
}

func (s *Step) projectPath(flags ArgumentFlags) string {
	if sub := s.bc.SubProject; sub != nil && sub.ProFile != "" {
		return filepath.FromSlash(sub.ProFile)
	}
	if flags&OmitProjectPath != 0 {
		return filepath.Base(s.bc.ProjectFile)
	}
	return filepath.FromSlash(s.bc.ProjectFile)
}

// Arguments returns the qmake arguments for Qt version v as tokens.
func (s *Step) Arguments(v *qtversion.Version, flags ArgumentFlags) []string {
	in := ArgumentInput{
		ProjectPath: s.projectPath(flags),
		Mkspec:      s.Mkspec(),
		Generation:  s.DeducedArguments(),
		UserArgs:    s.UserArguments(),
		ExtraArgs:   s.ExtraArguments(),
	}
	if v != nil {
		in.LegacyRecursive = !v.AtLeast(5, 0, 0)
		in.ConfigArgs = s.bc.ConfigCommandLineArguments(v.DefaultBuild)
	}
	if flags&Expand != 0 {
		// Expanded before tokenizing: one macro may hold several arguments.
		m := s.bc.Macros
		in.ProjectPath = m.Expand(in.ProjectPath)
		in.Mkspec = m.Expand(in.Mkspec)
		in.Generation.SysRoot = m.Expand(in.Generation.SysRoot)
		in.UserArgs = m.Expand(in.UserArgs)
		extra := make([]string, len(in.ExtraArgs))
		for i, a := range in.ExtraArgs {
			extra[i] = m.Expand(a)
		}
		in.ExtraArgs = extra
	}
	return BuildArguments(in)
}

// AllArguments is Arguments joined into one shell-quoted string.
func (s *Step) AllArguments(v *qtversion.Version, flags ArgumentFlags) string {
	return JoinArgs(s.Arguments(v, flags))
}

// MakeCommand is the make tool of the kit, or "" if there is none.
func (s *Step) MakeCommand() string {
	if s.kit == nil {
		return ""
	}
	return s.kit.MakeCommand
}

// EffectiveCommandPreview renders what a run would execute, for display.
func (s *Step) EffectiveCommandPreview() string {
	v := s.qtVersion()

	qmake := "<no Qt version>"
	if v != nil && v.QmakeCommand != "" {
		qmake = v.QmakeCommand
	}
	makeCmd := s.MakeCommand()
	if makeCmd == "" {
		makeCmd = "<no Make step found>"
	}

	result := qmake
	if v != nil {
		result += " " + s.AllArguments(v, Expand)
		if v.AtLeast(5, 0, 0) {
			result += " && " + makeCmd + " " + JoinArgs(MakeArguments(s.bc.makefileName()))
		}
	}
	return result
}

// ParserArguments are the arguments the qmake output parser needs to know
// about: the extra parser arguments plus every plain expanded argument.
func (s *Step) ParserArguments() []string {
	result := s.ExtraParserArguments()
	for _, a := range s.Arguments(s.qtVersion(), Expand) {
		if a != "" && JoinArgs([]string{a}) == a {
			result = append(result, a)
		}
	}
	return result
}

func (s *Step) env() []string {
	if len(s.bc.Env) > 0 {
		return s.bc.Env
	}
	if s.kit != nil {
		return s.kit.Env
	}
	return nil
}

func (s *Step) setupError(reason string) error {
	s.out.AddOutput(reason, ErrorMessage)
	return &SetupError{Reason: reason}
}

// Init validates the setup, decides whether qmake needs to run and
// prepares the commands. It consumes the forced flag.
func (s *Step) Init(ctx context.Context) (*RunPlan, error) {
	v := s.qtVersion()
	if v == nil {
		return nil, s.setupError(noQtVersionMessage)
	}

	workingDir := s.bc.WorkingDir()
	env := s.env()
	plan := &RunPlan{
		ID:         uuid.New(),
		WorkingDir: workingDir,
		Makefile:   s.bc.MakefilePath(),
		ScriptOnly: s.bc.ProjectType == ScriptTemplate,
		Env:        env,
		Generation: process.Command{
			Path: v.QmakeCommand,
			Args: s.Arguments(v, Expand),
			Dir:  workingDir,
			Env:  env,
		},
	}

	if v.AtLeast(5, 0, 0) {
		makeCmd := s.MakeCommand()
		if makeCmd == "" {
			return nil, s.setupError(noMakeMessage)
		}
		plan.Downstream = process.Command{
			Path: makeCmd,
			Args: MakeArguments(plan.Makefile),
			Dir:  workingDir,
			Env:  env,
		}
	}

	if s.decider.Decide(s, s.compare(plan.Makefile, plan.Generation)) {
		s.setNeedToRun(true)
	}
	plan.NeedToRun = s.NeedToRun()

	tasks := v.ReportIssues(s.bc.ProFile(), workingDir)
	for _, t := range tasks {
		s.out.AddTask(t)
	}
	if diag.HasErrors(tasks) {
		s.out.AddOutput(faultyMessage, ErrorMessage)
		return nil, ErrFaultyConfiguration
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Run sets up the step and runs qmake and "make qmake_all" as needed.
func (s *Step) Run(ctx context.Context) (Outcome, error) {
	if !s.claim() {
		return Outcome{}, ErrBusy
	}
	defer s.release()

	plan, err := s.Init(ctx)
	if err != nil {
		return Outcome{}, err
	}

	regenerate := plan.NeedToRun && !plan.ScriptOnly
	if regenerate {
		s.setNeedToRun(false)
	}
	outcome, err := s.seq.Run(ctx, plan)
	if regenerate && (err != nil || !outcome.Success) {
		s.setNeedToRun(true)
	}
	return outcome, err
}

// claim marks the step as running. Only one run, setup included, may be
// active at a time.
func (s *Step) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.seq.Busy() {
		return false
	}
	s.running = true
	return true
}

func (s *Step) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Cancel stops a running step. The running child is asked to terminate.
func (s *Step) Cancel() {
	s.seq.Cancel()
}

func (s *Step) String() string {
	if s.kit == nil {
		return "qmake"
	}
	return "qmake (" + s.kit.Name + ")"
}
