package qmake

import "github.com/qobs-build/qmakestep/internal/diag"

type OutputFormat int

const (
	NormalMessage OutputFormat = iota
	ErrorMessage
	Stdout
	Stderr
)

// Output receives everything a run reports: messages, child process output,
// parsed issues, and progress in percent.
type Output interface {
	AddOutput(text string, format OutputFormat)
	AddTask(t diag.Task)
	Progress(percent int)
}

type nopOutput struct{}

func (nopOutput) AddOutput(string, OutputFormat) {}
func (nopOutput) AddTask(diag.Task)              {}
func (nopOutput) Progress(int)                   {}
