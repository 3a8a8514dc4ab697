package qmake

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

var macroRegex = regexp.MustCompile(`%\{([^{}]+)\}`)

// MacroExpander substitutes %{name} placeholders. A name that is not a known
// macro is evaluated as an expression over the macros and the environment,
// e.g. %{env["HOME"]} or %{BuildConfig == "Debug" ? "d" : ""}. Anything that
// fails to evaluate is left untouched.
type MacroExpander struct {
	vars    map[string]string
	environ map[string]string
}

func NewMacroExpander(vars map[string]string) *MacroExpander {
	m := &MacroExpander{vars: make(map[string]string), environ: make(map[string]string)}
	maps.Copy(m.vars, vars)
	return m
}

func (m *MacroExpander) Set(name, value string) {
	m.vars[name] = value
}

func (m *MacroExpander) Value(name string) (string, bool) {
	v, ok := m.vars[name]
	return v, ok
}

// SetEnvironment sets what env[...] resolves to, from KEY=VALUE pairs.
func (m *MacroExpander) SetEnvironment(env []string) {
	m.environ = make(map[string]string, len(env))
	for _, e := range env {
		if k, v, ok := strings.Cut(e, "="); ok {
			m.environ[k] = v
		}
	}
}

func (m *MacroExpander) Expand(s string) string {
	if m == nil || !strings.Contains(s, "%{") {
		return s
	}
	return macroRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := m.vars[name]; ok {
			return v
		}
		v, err := m.eval(name)
		if err != nil {
			return match
		}
		return v
	})
}

func (m *MacroExpander) eval(expression string) (string, error) {
	env := make(map[string]any, len(m.vars)+1)
	for k, v := range m.vars {
		env[k] = v
	}
	env["env"] = m.environ

	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return "", err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return fmt.Sprint(out), nil
}
