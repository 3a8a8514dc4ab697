// Package diag classifies tool output into tasks (diagnostics).
package diag

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
)

type Severity int

const (
	Unknown Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "note"
	}
}

const (
	CategoryBuildSystem = "buildsystem"
	CategoryCompile     = "compile"
)

// Task is one diagnostic, optionally pointing at a file location.
type Task struct {
	Severity    Severity
	Description string
	File        string
	Line        int // 0 when unknown
	Category    string
}

func (t Task) String() string {
	switch {
	case t.File != "" && t.Line > 0:
		return t.File + ":" + strconv.Itoa(t.Line) + ": " + t.Description
	case t.File != "":
		return t.File + ": " + t.Description
	default:
		return t.Description
	}
}

// Sort orders tasks errors first, then by file, line and description.
func Sort(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.File, b.File); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Line, b.Line); c != 0 {
			return c
		}
		return cmp.Compare(a.Description, b.Description)
	})
}

func HasErrors(tasks []Task) bool {
	return slices.ContainsFunc(tasks, func(t Task) bool { return t.Severity == Error })
}

// Parser turns a single line of process output into a task.
type Parser interface {
	Parse(line string, stderr bool) (Task, bool)
}

func Errorf(format string, a ...any) Task {
	return Task{Severity: Error, Description: fmt.Sprintf(format, a...), Category: CategoryBuildSystem}
}

func Warningf(format string, a ...any) Task {
	return Task{Severity: Warning, Description: fmt.Sprintf(format, a...), Category: CategoryBuildSystem}
}
