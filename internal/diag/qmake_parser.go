package diag

import (
	"regexp"
	"strconv"
	"strings"
)

var qmakeLocationRegex = regexp.MustCompile(`^(.+?):(\d+?):\s(.+?)$`)

// QMakeParser recognizes qmake's "Project ERROR:" style messages and
// "file.pro:12: message" locations.
type QMakeParser struct{}

func (QMakeParser) Parse(line string, _ bool) (Task, bool) {
	line = strings.TrimRight(line, "\r\n")

	for _, p := range []struct {
		prefix   string
		severity Severity
	}{
		{"Project ERROR: ", Error},
		{"ERROR: ", Error},
		{"Project WARNING: ", Warning},
		{"WARNING: ", Warning},
	} {
		rest, ok := strings.CutPrefix(line, p.prefix)
		if !ok {
			continue
		}
		if t, ok := parseQMakeLocation(rest, p.severity); ok {
			return t, true
		}
		return Task{Severity: p.severity, Description: rest, Category: CategoryBuildSystem}, true
	}

	return parseQMakeLocation(line, Error)
}

func parseQMakeLocation(line string, severity Severity) (Task, bool) {
	m := qmakeLocationRegex.FindStringSubmatch(line)
	if m == nil {
		return Task{}, false
	}
	lineNo, err := strconv.Atoi(m[2])
	if err != nil {
		return Task{}, false
	}
	return Task{
		Severity:    severity,
		Description: m[3],
		File:        m[1],
		Line:        lineNo,
		Category:    CategoryBuildSystem,
	}, true
}
