package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Out is where all messages go. Tests swap it for a buffer.
var Out io.Writer = color.Output

// Verbose enables Debug messages.
var Verbose bool

func emit(label, format string, a ...any) {
	fmt.Fprint(Out, label)
	fmt.Fprint(Out, ": ")
	fmt.Fprintf(Out, format, a...)
	fmt.Fprint(Out, "\n")
}

func Error(format string, a ...any) {
	emit(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	emit(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	emit(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	emit(color.HiGreenString("info"), format, a...)
}

func Debug(format string, a ...any) {
	if !Verbose {
		return
	}
	emit(color.HiBlackString("debug"), format, a...)
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	buf := make([]byte, 0, len(p)+len(w.Indent))
	for _, c := range p {
		if !w.didIndent {
			buf = append(buf, w.Indent...)
			w.didIndent = true
		}
		buf = append(buf, c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
