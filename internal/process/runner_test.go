package process

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

type collected struct {
	stdout []string
	stderr []string
}

func (c *collected) handle(line string, stderr bool) {
	if stderr {
		c.stderr = append(c.stderr, line)
	} else {
		c.stdout = append(c.stdout, line)
	}
}

func TestExecRunner_Success(t *testing.T) {
	skipOnWindows(t)
	var out collected

	res, err := NewExecRunner().Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo one; echo two; echo oops >&2"},
	}, out.handle)

	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, []string{"one", "two"}, out.stdout)
	assert.Equal(t, []string{"oops"}, out.stderr)
}

func TestExecRunner_ExitCode(t *testing.T) {
	skipOnWindows(t)

	res, err := NewExecRunner().Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "exit 3"},
	}, nil)

	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunner_WorkingDirAndEnv(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	var out collected

	_, err := NewExecRunner().Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "pwd; echo $QMAKESTEP_TEST"},
		Dir:  dir,
		Env:  []string{"QMAKESTEP_TEST=yes"},
	}, out.handle)

	require.NoError(t, err)
	require.Len(t, out.stdout, 2)
	assert.Equal(t, filepath.Base(dir), filepath.Base(out.stdout[0]))
	assert.Equal(t, "yes", out.stdout[1])
}

func TestExecRunner_NotFound(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), Command{Path: "qmakestep-no-such-tool-12345"}, nil)
	assert.Error(t, err)
}

func TestExecRunner_Cancel(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res, err := NewExecRunner().Run(ctx, Command{Path: "sleep", Args: []string{"10"}}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Crashed)
	assert.False(t, res.Success())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandString(t *testing.T) {
	c := Command{Path: "/opt/Qt/bin/qmake", Args: []string{"/src/my app.pro", "CONFIG+=debug"}}
	assert.Equal(t, `/opt/Qt/bin/qmake '/src/my app.pro' CONFIG+=debug`, c.String())
	assert.False(t, c.IsEmpty())
	assert.True(t, Command{}.IsEmpty())
}
