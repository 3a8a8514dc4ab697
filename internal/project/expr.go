package project

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ConfigEnv is what expressions in Qmakestep.toml and kit files can see.
type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewConfigEnv(basedir string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			environ[k] = v
		}
	}
	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

// within joins path onto the project directory and refuses to leave it.
func (env ConfigEnv) within(path string) (string, error) {
	full := filepath.Join(env.basedir, path)
	if rel, err := filepath.Rel(env.basedir, full); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}
	return full, nil
}

// ReadFile returns the trimmed contents of a file in the project directory,
// e.g. {{ ReadFile("VERSION") }}.
func (env ConfigEnv) ReadFile(path string) (string, error) {
	full, err := env.within(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Exists reports whether a file exists in the project directory.
func (env ConfigEnv) Exists(path string) bool {
	full, err := env.within(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

var placeholderRe = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluator compiles expressions against one ConfigEnv, once each.
type evaluator struct {
	env   ConfigEnv
	conds map[string]*vm.Program
	exprs map[string]*vm.Program
}

func newEvaluator(env ConfigEnv) *evaluator {
	return &evaluator{
		env:   env,
		conds: make(map[string]*vm.Program),
		exprs: make(map[string]*vm.Program),
	}
}

func (e *evaluator) compile(cache map[string]*vm.Program, src string, opts ...expr.Option) (*vm.Program, error) {
	if p, ok := cache[src]; ok {
		return p, nil
	}
	p, err := expr.Compile(src, append([]expr.Option{expr.Env(e.env)}, opts...)...)
	if err != nil {
		return nil, err
	}
	cache[src] = p
	return p, nil
}

// isCondition reports whether a table key is a boolean expression rather
// than a plain nested table.
func (e *evaluator) isCondition(key string) bool {
	_, err := e.compile(e.conds, key, expr.AsBool())
	return err == nil
}

func (e *evaluator) condition(src string) (bool, error) {
	p, err := e.compile(e.conds, src, expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("failed to compile expression: %w", err)
	}
	out, err := expr.Run(p, e.env)
	if err != nil {
		return false, fmt.Errorf("failed to run expression: %w", err)
	}
	return out.(bool), nil
}

// interpolate replaces every {{...}} in s with the value of its expression.
func (e *evaluator) interpolate(s string) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil {
			return m
		}
		src := strings.TrimSpace(m[2 : len(m)-2])
		p, err := e.compile(e.exprs, src)
		if err != nil {
			firstErr = fmt.Errorf("failed to compile expression %q: %w", src, err)
			return m
		}
		v, err := expr.Run(p, e.env)
		if err != nil {
			firstErr = fmt.Errorf("failed to run expression %q: %w", src, err)
			return m
		}
		return fmt.Sprint(v)
	})
	return out, firstErr
}

// walk interpolates every string inside decoded TOML data, in place.
func (e *evaluator) walk(data any) (any, error) {
	var err error
	switch v := data.(type) {
	case map[string]any:
		for k, item := range v {
			if v[k], err = e.walk(item); err != nil {
				return nil, err
			}
		}
	case []any:
		for i, item := range v {
			if v[i], err = e.walk(item); err != nil {
				return nil, err
			}
		}
	case string:
		return e.interpolate(v)
	}
	return data, nil
}
