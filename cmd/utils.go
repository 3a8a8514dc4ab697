package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/qobs-build/qmakestep/internal/kit"
	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/process"
	"github.com/qobs-build/qmakestep/internal/project"
	"github.com/qobs-build/qmakestep/internal/qmake"
	"github.com/spf13/cobra"
)

type EnumValue struct {
	value      string
	allowed    map[string]string // value -> help text
	defaultVal string
}

func NewEnumValue(defaultVal string, allowed map[string]string) EnumValue {
	if _, ok := allowed[defaultVal]; !ok {
		panic(fmt.Sprintf("default value %q not in allowed set", defaultVal))
	}
	return EnumValue{
		value:      defaultVal,
		allowed:    allowed,
		defaultVal: defaultVal,
	}
}

func (e *EnumValue) String() string     { return e.value }
func (e *EnumValue) HelpString() string { return "[" + strings.Join(e.AllowedKeys(), ", ") + "]" }
func (e *EnumValue) Type() string       { return "enum" }
func (e *EnumValue) Value() string      { return e.value }
func (e *EnumValue) IsDefault() bool    { return e.value == e.defaultVal }

func (e *EnumValue) Set(v string) error {
	if _, ok := e.allowed[v]; ok {
		e.value = v
		return nil
	}
	return fmt.Errorf("must be one of: %s", strings.Join(e.AllowedKeys(), ", "))
}

func (e *EnumValue) AllowedKeys() []string {
	keys := make([]string, 0, len(e.allowed))
	for k := range e.allowed {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (e *EnumValue) CompletionFunc() func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		items := make([]string, 0, len(e.allowed))
		for _, k := range e.AllowedKeys() {
			if help := e.allowed[k]; help != "" {
				items = append(items, fmt.Sprintf("%s\t%s", k, help))
			} else {
				items = append(items, k)
			}
		}
		return items, cobra.ShellCompDirectiveNoFileComp
	}
}

// session is a loaded project with its kit and qmake step.
type session struct {
	project   *project.Project
	kit       *kit.Kit
	bc        *qmake.BuildConfiguration
	step      *qmake.Step
	alwaysRun bool
}

func loadSession(ctx context.Context, dir string) *session {
	p, err := project.Load(dir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if !flagConfig.IsDefault() {
		p.Config.Build.Mode = flagConfig.Value()
	}
	if flagKit != "" {
		p.Config.Project.Kit = flagKit
	}

	spec, err := p.KitSpec()
	if err != nil {
		msg.Fatal("failed to load kit: %v", err)
	}
	runner := process.NewExecRunner()
	k, err := kit.Resolve(ctx, runner, spec)
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Debug("kit %s: %s, make %q", k.Name, k.Qt.DisplayName(), k.MakeCommand)

	bc, err := p.BuildConfiguration(k)
	if err != nil {
		msg.Fatal("%v", err)
	}

	s := &session{
		project:   p,
		kit:       k,
		bc:        bc,
		alwaysRun: p.Config.Settings.AlwaysRunQmake || flagAlwaysRun,
	}
	s.step = qmake.NewStep(bc, k,
		qmake.WithRunner(runner),
		qmake.WithOutput(newConsoleOutput()),
		qmake.WithAlwaysRun(s.alwaysRun),
	)

	settings, err := qmake.LoadSettings(bc.BuildDir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := s.step.FromMap(settings); err != nil {
		msg.Fatal("%s: %v", qmake.SettingsFilename, err)
	}
	return s
}

func (s *session) save() {
	if err := qmake.SaveSettings(s.bc.BuildDir, s.step.ToMap()); err != nil {
		msg.Fatal("failed to save settings: %v", err)
	}
}
