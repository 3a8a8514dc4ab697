package diag

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const makePrefix = `^(?:mingw32-|g|gnu)?make(?:\.exe)?(?:\[\d+\])?: `

var (
	makeErrorRegex    = regexp.MustCompile(makePrefix + `\*\*\* (.*)$`)
	makeEnterDirRegex = regexp.MustCompile(makePrefix + "Entering directory [`'\"](.+)['\"]$")
	makeLeaveDirRegex = regexp.MustCompile(makePrefix + "Leaving directory [`'\"](.+)['\"]$")
	makeWarningRegex  = regexp.MustCompile(makePrefix + `warning: (.*)$`)
	compilerRegex     = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(warning|error|fatal error):\s*(.*)$`)
)

// GnuMakeParser recognizes make's own diagnostics and compiler-style
// "file:line[:col]: error: message" lines. Relative file names are resolved
// against the directory make reports it entered, or the working directory.
type GnuMakeParser struct {
	workingDir string
	dirs       []string
}

func NewGnuMakeParser(workingDir string) *GnuMakeParser {
	return &GnuMakeParser{workingDir: workingDir}
}

func (p *GnuMakeParser) currentDir() string {
	if len(p.dirs) > 0 {
		return p.dirs[len(p.dirs)-1]
	}
	return p.workingDir
}

func (p *GnuMakeParser) Parse(line string, _ bool) (Task, bool) {
	line = strings.TrimRight(line, "\r\n")

	if m := makeEnterDirRegex.FindStringSubmatch(line); m != nil {
		p.dirs = append(p.dirs, m[1])
		return Task{}, false
	}
	if makeLeaveDirRegex.MatchString(line) {
		if len(p.dirs) > 0 {
			p.dirs = p.dirs[:len(p.dirs)-1]
		}
		return Task{}, false
	}
	if m := makeErrorRegex.FindStringSubmatch(line); m != nil {
		return Task{Severity: Error, Description: m[1], Category: CategoryBuildSystem}, true
	}
	if m := makeWarningRegex.FindStringSubmatch(line); m != nil {
		return Task{Severity: Warning, Description: m[1], Category: CategoryBuildSystem}, true
	}
	if m := compilerRegex.FindStringSubmatch(line); m != nil {
		lineNo, err := strconv.Atoi(m[2])
		if err != nil {
			return Task{}, false
		}
		severity := Error
		if m[4] == "warning" {
			severity = Warning
		}
		return Task{
			Severity:    severity,
			Description: m[5],
			File:        p.resolve(m[1]),
			Line:        lineNo,
			Category:    CategoryCompile,
		}, true
	}
	return Task{}, false
}

func (p *GnuMakeParser) resolve(file string) string {
	dir := p.currentDir()
	if filepath.IsAbs(file) || dir == "" {
		return filepath.Clean(file)
	}
	return filepath.Join(dir, file)
}
