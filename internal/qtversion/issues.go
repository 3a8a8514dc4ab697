package qtversion

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/qobs-build/qmakestep/internal/diag"
)

// ReportIssues lists problems with building proFile into buildDir using this
// Qt version. The result is sorted, errors first.
func (v *Version) ReportIssues(proFile, buildDir string) []diag.Task {
	var tasks []diag.Task

	if !v.IsValid() {
		tasks = append(tasks, diag.Errorf("The Qt version is invalid: %s", v.invalidReason()))
	}

	if v != nil && v.QmakeCommand != "" {
		if st, err := os.Stat(v.QmakeCommand); err != nil || st.IsDir() || !isExecutable(st) {
			tasks = append(tasks, diag.Errorf("The qmake command %q was not found or is not executable.", v.QmakeCommand))
		}
	}

	if _, err := os.Stat(proFile); err != nil {
		tasks = append(tasks, diag.Errorf("The project file %q does not exist.", proFile))
	}

	sourcePath := withSlash(filepath.Dir(absPath(proFile)))
	buildPath := withSlash(absPath(buildDir))
	if strings.HasPrefix(buildPath, sourcePath) && buildPath != sourcePath {
		tasks = append(tasks, diag.Warningf("Qmake does not support build directories below the source directory."))
	} else if strings.Count(buildPath, "/") != strings.Count(sourcePath, "/") && v.IsValid() && !v.AtLeast(4, 8, 0) {
		tasks = append(tasks, diag.Warningf("The build directory needs to be at the same level as the source directory."))
	}

	diag.Sort(tasks)
	return tasks
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func withSlash(p string) string {
	p = filepath.ToSlash(p)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func isExecutable(st os.FileInfo) bool {
	if filepath.Separator == '\\' {
		return true
	}
	return st.Mode()&0o111 != 0
}
