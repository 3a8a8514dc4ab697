package cmd

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/qobs-build/qmakestep/internal/diag"
	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/qmake"
)

// consoleOutput prints a step's messages, child output and issues to the
// terminal.
type consoleOutput struct {
	mu    sync.Mutex
	bar   *msg.ProgressBar
	child *msg.IndentWriter
	// drawn is set while the bar owns the current terminal line.
	drawn bool
}

func newConsoleOutput() *consoleOutput {
	return &consoleOutput{
		bar:   msg.NewProgressBar("qmake", 0, msg.Out),
		child: &msg.IndentWriter{Indent: "    ", W: msg.Out},
	}
}

func (o *consoleOutput) AddOutput(text string, format qmake.OutputFormat) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.breakLine()
	switch format {
	case qmake.NormalMessage:
		msg.Info("%s", text)
	case qmake.ErrorMessage:
		msg.Error("%s", text)
	case qmake.Stderr:
		fmt.Fprintln(o.child, color.HiBlackString(text))
	default:
		fmt.Fprintln(o.child, text)
	}
}

func (o *consoleOutput) AddTask(t diag.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.breakLine()
	if t.Severity == diag.Error {
		msg.Error("%s", t)
	} else {
		msg.Warn("%s", t)
	}
}

func (o *consoleOutput) Progress(percent int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if percent >= 100 {
		o.bar.Finish()
		o.drawn = false
		return
	}
	o.bar.Set(percent)
	o.drawn = true
}

// breakLine moves past a bar that is still being redrawn in place.
func (o *consoleOutput) breakLine() {
	if o.drawn {
		fmt.Fprintln(o.bar.W)
		o.drawn = false
	}
}
