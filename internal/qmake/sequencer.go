package qmake

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
	"github.com/qobs-build/qmakestep/internal/diag"
	"github.com/qobs-build/qmakestep/internal/process"
)

// State is a state of the run sequencer.
type State string

const (
	StateIdle                     State = "idle"
	StateRunGeneration            State = "run_generation"
	StateRunDownstreamToolIfStale State = "run_make_all"
	StatePostProcess              State = "post_process"
)

// ordinal orders the states for progress reporting.
func (s State) ordinal() int {
	switch s {
	case StateRunGeneration:
		return 1
	case StateRunDownstreamToolIfStale:
		return 2
	case StatePostProcess:
		return 3
	default:
		return 0
	}
}

// Events of the sequencer machine.
const (
	EventStart      = "START"
	EventRunMakeAll = "RUN_MAKE_ALL"
	EventFinish     = "FINISH"
	EventDone       = "DONE"
)

const skipMessage = "Configuration unchanged, skipping qmake step."

// Outcome is how a run ended.
type Outcome struct {
	Success  bool
	Canceled bool
}

// runContext is the statekit machine context.
type runContext struct {
	RunID string
}

// Sequencer runs qmake and then, if planned, "make qmake_all", one process
// at a time. Failure or cancellation of a process skips straight to post
// processing.
type Sequencer struct {
	runner process.Runner
	out    Output

	mu            sync.Mutex
	busy          bool
	cancel        context.CancelFunc
	current       State
	onStateChange func(from, to State)
	interp        *statekit.Interpreter[runContext]
}

func NewSequencer(runner process.Runner, out Output) *Sequencer {
	return &Sequencer{runner: runner, out: out, current: StateIdle}
}

// SetStateChangeHandler sets the callback for state changes.
func (q *Sequencer) SetStateChangeHandler(fn func(from, to State)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onStateChange = fn
}

func (q *Sequencer) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// State returns the current state; StateIdle between runs.
func (q *Sequencer) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.interp == nil {
		return StateIdle
	}
	return State(q.interp.State().Value)
}

// Cancel stops the current run, if any.
func (q *Sequencer) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
	}
}

func (q *Sequencer) entered(to State) {
	q.mu.Lock()
	from := q.current
	q.current = to
	hook := q.onStateChange
	q.mu.Unlock()

	if hook != nil && from != to {
		hook(from, to)
	}
	if to != StateIdle {
		q.out.Progress(to.ordinal() * 100 / StatePostProcess.ordinal())
	}
}

func (q *Sequencer) buildMachine(plan *RunPlan) (*statekit.Interpreter[runContext], error) {
	machine, err := statekit.NewMachine[runContext]("qmake-step").
		WithInitial("idle").
		WithContext(runContext{RunID: plan.ID.String()}).
		WithAction("enterIdle", func(_ *runContext, _ statekit.Event) {
			q.entered(StateIdle)
		}).
		WithAction("enterGeneration", func(_ *runContext, _ statekit.Event) {
			q.entered(StateRunGeneration)
		}).
		WithAction("enterMakeAll", func(_ *runContext, _ statekit.Event) {
			q.entered(StateRunDownstreamToolIfStale)
		}).
		WithAction("enterPostProcess", func(_ *runContext, _ statekit.Event) {
			q.entered(StatePostProcess)
		}).
		State("idle").
		OnEntry("enterIdle").
		On(EventStart).Target("run_generation").Done().
		State("run_generation").
		OnEntry("enterGeneration").
		On(EventRunMakeAll).Target("run_make_all").
		On(EventFinish).Target("post_process").Done().
		State("run_make_all").
		OnEntry("enterMakeAll").
		On(EventFinish).Target("post_process").Done().
		State("post_process").
		OnEntry("enterPostProcess").
		On(EventDone).Target("idle").Done().
		Build()
	if err != nil {
		return nil, err
	}
	return statekit.NewInterpreter(machine), nil
}

// Run executes plan. It returns ErrBusy if a run is already in progress.
func (q *Sequencer) Run(ctx context.Context, plan *RunPlan) (Outcome, error) {
	q.mu.Lock()
	if q.busy {
		q.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	q.busy = true
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.current = StateIdle
	q.mu.Unlock()

	defer func() {
		cancel()
		q.mu.Lock()
		q.busy = false
		q.cancel = nil
		q.interp = nil
		q.mu.Unlock()
	}()

	if plan.ScriptOnly {
		return Outcome{Success: true}, nil
	}
	if !plan.NeedToRun {
		q.out.AddOutput(skipMessage, NormalMessage)
		return Outcome{Success: true}, nil
	}

	interp, err := q.buildMachine(plan)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to build state machine: %w", err)
	}
	q.mu.Lock()
	q.interp = interp
	q.mu.Unlock()

	interp.Start()
	defer interp.Stop()

	r := &seqRun{q: q, ctx: ctx, interp: interp, success: true}
	r.send(EventStart)
	for {
		switch State(interp.State().Value) {
		case StateRunGeneration:
			r.success = q.runProcess(ctx, plan.Generation, diag.QMakeParser{})
			if plan.RunCompanionPass() {
				r.advance(EventRunMakeAll)
			} else {
				r.advance(EventFinish)
			}
		case StateRunDownstreamToolIfStale:
			r.success = q.runProcess(ctx, plan.Downstream, diag.NewGnuMakeParser(plan.WorkingDir))
			r.advance(EventFinish)
		case StatePostProcess:
			r.send(EventDone)
			return Outcome{Success: r.success, Canceled: r.canceled}, nil
		default:
			return Outcome{Canceled: r.canceled}, fmt.Errorf("unexpected sequencer state %q", interp.State().Value)
		}
	}
}

type seqRun struct {
	q        *Sequencer
	ctx      context.Context
	interp   *statekit.Interpreter[runContext]
	success  bool
	canceled bool
}

func (r *seqRun) send(event string) {
	r.interp.Send(statekit.Event{Type: statekit.EventType(event)})
}

// advance moves on, except that cancellation or failure always goes to
// post processing.
func (r *seqRun) advance(event string) {
	if r.ctx.Err() != nil {
		r.canceled = true
		r.success = false
	}
	if !r.success {
		event = EventFinish
	}
	r.send(event)
}

func (q *Sequencer) runProcess(ctx context.Context, cmd process.Command, parser diag.Parser) bool {
	q.out.AddOutput(fmt.Sprintf("Starting: %s", cmd), NormalMessage)

	res, err := q.runner.Run(ctx, cmd, func(line string, stderr bool) {
		format := Stdout
		if stderr {
			format = Stderr
		}
		q.out.AddOutput(line, format)
		if task, ok := parser.Parse(line, stderr); ok {
			q.out.AddTask(task)
		}
	})

	switch {
	case ctx.Err() != nil:
		q.out.AddOutput(fmt.Sprintf("The process %q was canceled.", cmd.Path), ErrorMessage)
		return false
	case err != nil:
		q.out.AddOutput(fmt.Sprintf("Could not start process %q: %v", cmd.Path, err), ErrorMessage)
		return false
	case res.Crashed:
		q.out.AddOutput(fmt.Sprintf("The process %q crashed.", cmd.Path), ErrorMessage)
		return false
	case res.ExitCode != 0:
		q.out.AddOutput(fmt.Sprintf("The process %q exited with code %d.", cmd.Path, res.ExitCode), ErrorMessage)
		return false
	}
	q.out.AddOutput(fmt.Sprintf("The process %q exited normally.", cmd.Path), NormalMessage)
	return true
}
