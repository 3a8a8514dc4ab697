package qmake

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/sergi/go-diff/diffmatchpatch"
)

type MakefileComparison int

const (
	MakefileMatches MakefileComparison = iota
	MakefileDoesNotMatch
	MakefileCouldNotParse
)

func (c MakefileComparison) String() string {
	switch c {
	case MakefileMatches:
		return "matches"
	case MakefileDoesNotMatch:
		return "does not match"
	default:
		return "could not parse"
	}
}

// Comparer checks an existing Makefile against the qmake call about to run.
type Comparer func(makefile string, call process.Command) MakefileComparison

const (
	commandPrefix = "# Command: "
	headerLines   = 32
)

var errNoCommandLine = errors.New("no qmake command line recorded")

// RecordedCall is the qmake invocation stored in a Makefile header.
type RecordedCall struct {
	Qmake string
	Args  []string
	Line  string
}

// ReadRecordedCall reads the "# Command:" line qmake writes at the top of
// every generated Makefile.
func ReadRecordedCall(makefile string) (RecordedCall, error) {
	f, err := os.Open(makefile)
	if err != nil {
		return RecordedCall{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for i := 0; i < headerLines && sc.Scan(); i++ {
		line := sc.Text()
		if !strings.HasPrefix(line, commandPrefix) {
			continue
		}
		words := Tokenize(strings.TrimPrefix(line, commandPrefix))
		if len(words) == 0 {
			break
		}
		return RecordedCall{Qmake: words[0], Args: words[1:], Line: line[len(commandPrefix):]}, nil
	}
	if err := sc.Err(); err != nil {
		return RecordedCall{}, err
	}
	return RecordedCall{}, fmt.Errorf("%s: %w", makefile, errNoCommandLine)
}

// normalizeArgs drops what qmake rewrites on its own (output file, project
// path, recursion) and pulls out the mkspec.
func normalizeArgs(args []string) (spec string, rest []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-o" || a == "-spec":
			if i+1 < len(args) {
				if a == "-spec" {
					spec = args[i+1]
				}
				i++
			}
		case a == "-r" || a == "-recursive":
		case strings.HasSuffix(a, ".pro") && !strings.Contains(a, "="):
		default:
			rest = append(rest, a)
		}
	}
	return spec, rest
}

func sameFile(a, b string) bool {
	return filepath.Clean(filepath.FromSlash(a)) == filepath.Clean(filepath.FromSlash(b))
}

// CompareMakefile reports whether makefile was generated by call. A missing
// Makefile does not match, a Makefile without a recorded command line could
// not be parsed.
func CompareMakefile(makefile string, call process.Command) MakefileComparison {
	rec, err := ReadRecordedCall(makefile)
	if errors.Is(err, errNoCommandLine) {
		return MakefileCouldNotParse
	}
	if err != nil {
		return MakefileDoesNotMatch
	}

	if !sameFile(rec.Qmake, call.Path) {
		return MakefileDoesNotMatch
	}

	recSpec, recArgs := normalizeArgs(rec.Args)
	curSpec, curArgs := normalizeArgs(call.Args)
	if curSpec != "" && !sameFile(recSpec, curSpec) {
		return MakefileDoesNotMatch
	}
	if !slices.Equal(recArgs, curArgs) {
		return MakefileDoesNotMatch
	}
	return MakefileMatches
}

// MakefileDiff renders the difference between the recorded qmake call and
// call, colored for a terminal.
func MakefileDiff(makefile string, call process.Command) (string, error) {
	rec, err := ReadRecordedCall(makefile)
	if err != nil {
		return "", err
	}
	current := call.String()

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(rec.Line, current, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs), nil
}
