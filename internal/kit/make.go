package kit

import (
	"os"
	"os/exec"
)

var makeTools = map[ToolChainType][]string{
	ToolChainMSVC:  {"jom", "nmake"},
	ToolChainMinGW: {"mingw32-make", "make"},
	ToolChainGCC:   {"make", "gmake"},
	ToolChainClang: {"make", "gmake"},
}

// FindMake attempts to find the make tool for a toolchain. An explicitly
// configured tool wins, then $MAKE, then the first candidate on PATH.
func FindMake(configured string, tc ToolChainType) string {
	if configured != "" {
		if path, err := exec.LookPath(configured); err == nil {
			return path
		}
		return configured
	}

	if env := os.Getenv("MAKE"); env != "" {
		if path, err := exec.LookPath(env); err == nil {
			return path
		}
	}

	candidates, ok := makeTools[tc]
	if !ok {
		candidates = makeTools[ToolChainGCC]
	}
	for _, tool := range candidates {
		path, err := exec.LookPath(tool)
		if err == nil {
			return path
		}
	}

	return ""
}
