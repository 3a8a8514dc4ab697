// Package process runs external tools and streams their output line by line.
package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"
)

// Command is a program, its arguments, and where and how to run it.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // nil inherits the current environment
}

func (c Command) IsEmpty() bool { return c.Path == "" }

// String renders the command as a shell-quoted line.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.Path}, c.Args...)...)
}

// Result is how a finished process exited.
type Result struct {
	ExitCode int
	// Crashed is set when the process did not exit normally (killed by a
	// signal or by cancellation).
	Crashed bool
}

func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.Crashed
}

// LineHandler receives output lines without the trailing newline. Calls are
// serialized.
type LineHandler func(line string, stderr bool)

// Runner runs one command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command, onLine LineHandler) (Result, error)
}

// TerminateGrace is how long a canceled process gets between the interrupt
// and the kill.
var TerminateGrace = 5 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts cmd and waits for it. A non-zero exit is reported in the Result
// and is not an error; errors mean the process could not be started, or that
// ctx was canceled.
func (r *ExecRunner) Run(ctx context.Context, c Command, onLine LineHandler) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = TerminateGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, err
	}

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	var mu sync.Mutex
	emit := func(line string, isStderr bool) {
		if onLine == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onLine(line, isStderr)
	}

	var eg errgroup.Group
	eg.Go(func() error { return scanLines(stdout, false, emit) })
	eg.Go(func() error { return scanLines(stderr, true, emit) })
	readErr := eg.Wait()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{ExitCode: -1, Crashed: true}, ctxErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return Result{ExitCode: exitErr.ExitCode(), Crashed: exitErr.ExitCode() < 0}, nil
		}
		return Result{ExitCode: -1, Crashed: true}, waitErr
	}
	if readErr != nil {
		return Result{}, readErr
	}
	return Result{}, nil
}

func scanLines(r io.Reader, isStderr bool, emit func(string, bool)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		emit(sc.Text(), isStderr)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Ensure ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)
