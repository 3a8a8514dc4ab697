package qmake

import (
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
)

type ArgumentFlags uint8

const (
	// OmitProjectPath passes the bare project file name instead of its path.
	OmitProjectPath ArgumentFlags = 1 << iota
	// Expand substitutes %{...} macros.
	Expand
)

// ArgumentInput is everything that contributes to a qmake command line.
type ArgumentInput struct {
	ProjectPath string
	// LegacyRecursive adds -r, needed before Qt 5.
	LegacyRecursive bool
	// Mkspec is passed as -spec unless UserArgs already carry one.
	Mkspec     string
	ConfigArgs []string
	Generation GenerationConfig
	UserArgs   string
	ExtraArgs  []string
}

// BuildArguments assembles the qmake arguments in their fixed order:
// project, -r, -spec, build configuration, generation flags, user
// arguments, extra arguments.
func BuildArguments(in ArgumentInput) []string {
	args := []string{in.ProjectPath}

	if in.LegacyRecursive {
		args = append(args, "-r")
	}

	userArgs := Tokenize(in.UserArgs)
	if _, userSpec := specFrom(userArgs); !userSpec && in.Mkspec != "" {
		args = append(args, "-spec", filepath.FromSlash(in.Mkspec))
	}

	args = append(args, in.ConfigArgs...)
	args = append(args, in.Generation.ToArguments()...)
	args = append(args, userArgs...)
	for _, extra := range in.ExtraArgs {
		args = append(args, Tokenize(extra)...)
	}
	return args
}

// Tokenize splits s with shell quoting rules. Unbalanced quotes fall back
// to splitting on whitespace.
func Tokenize(s string) []string {
	words, err := shellquote.Split(s)
	if err != nil {
		return strings.Fields(s)
	}
	return words
}

// JoinArgs renders args as one shell-quoted string.
func JoinArgs(args []string) string {
	return shellquote.Join(args...)
}

// specFrom finds a "-spec <value>" pair.
func specFrom(args []string) (string, bool) {
	for i, a := range args {
		if a == "-spec" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

// MakeArguments are the arguments of the "make qmake_all" pass.
func MakeArguments(makefile string) []string {
	var args []string
	if makefile != "" {
		args = append(args, "-f", makefile)
	}
	return append(args, "qmake_all")
}
