package project

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/qmakestep/internal/kit"
	"github.com/qobs-build/qmakestep/internal/qtversion"
)

type Config struct {
	Project  ProjectSection    `toml:"project"`
	Build    BuildSection      `toml:"build"`
	Kit      kit.Spec          `toml:"kit"`
	Settings SettingsSection   `toml:"settings"`
	Macros   map[string]string `toml:"macros"`
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	// File is the .pro file, relative to the project directory. Discovered
	// when empty.
	File string `toml:"file"`
	// SubProject is a .pro file or a glob matching exactly one, built on its
	// own instead of the whole tree.
	SubProject string `toml:"subproject"`
	BuildDir   string `toml:"build_dir"`
	Makefile   string `toml:"makefile"`
	// Kit names a kit file from the kit index. The [kit] section is merged
	// on top of it.
	Kit string `toml:"kit"`
}

// BuildSection defines the [build(.*)] section
type BuildSection struct {
	Mode              string `toml:"mode"`
	BuildAll          bool   `toml:"build_all"`
	QmlDebugging      string `toml:"qml_debugging"`
	QuickCompiler     string `toml:"quick_compiler"`
	SeparateDebugInfo string `toml:"separate_debug_info"`
}

// SettingsSection defines the [settings] section
type SettingsSection struct {
	AlwaysRunQmake bool `toml:"always_run_qmake"`
}

var errBadMode = errors.New(`build mode must be "debug" or "release"`)

// Flags are the build flags the user asked for.
func (b BuildSection) Flags() (qtversion.BuildFlags, error) {
	switch strings.ToLower(b.Mode) {
	case "", "debug":
		return qtversion.BuildFlags{Debug: true, BuildAll: b.BuildAll}, nil
	case "release":
		return qtversion.BuildFlags{BuildAll: b.BuildAll}, nil
	default:
		return qtversion.BuildFlags{}, fmt.Errorf("%w, got %q", errBadMode, b.Mode)
	}
}

// overlay copies the set fields of src onto dst, a pointer to the same
// struct type. Slices append, maps merge key by key, bools can only be
// switched on, and any other non-zero value replaces the old one.
func overlay(dst, src any) error {
	d := reflect.ValueOf(dst)
	if d.Kind() != reflect.Pointer || d.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("overlay target must be a struct pointer, got %T", dst)
	}
	d = d.Elem()
	s := reflect.Indirect(reflect.ValueOf(src))
	if s.Type() != d.Type() {
		return fmt.Errorf("cannot overlay %s onto %s", s.Type(), d.Type())
	}

	for i := range s.NumField() {
		from, to := s.Field(i), d.Field(i)
		if !to.CanSet() || from.IsZero() {
			continue
		}
		switch to.Kind() {
		case reflect.Slice:
			to.Set(reflect.AppendSlice(to, from))
		case reflect.Map:
			if to.IsNil() {
				to.Set(reflect.MakeMapWithSize(to.Type(), from.Len()))
			}
			iter := from.MapRange()
			for iter.Next() {
				to.SetMapIndex(iter.Key(), iter.Value())
			}
		default:
			to.Set(from)
		}
	}
	return nil
}

// recode turns loosely typed TOML data into dst by a marshal round trip.
func recode(data, dst any) error {
	b, err := toml.Marshal(data)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, dst)
}

// document is a decoded config file with all {{...}} placeholders resolved.
type document struct {
	raw  map[string]any
	eval *evaluator
}

func readDocument(rdr io.Reader, env ConfigEnv) (*document, error) {
	var raw map[string]any
	if err := toml.NewDecoder(rdr).Decode(&raw); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%d:%d: %s", row, col, derr.Error())
		}
		return nil, err
	}
	eval := newEvaluator(env)
	if _, err := eval.walk(raw); err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	return &document{raw: raw, eval: eval}, nil
}

// plainSection decodes [name] as is.
func (doc *document) plainSection(name string, dst any) error {
	data, ok := doc.raw[name]
	if !ok {
		return nil
	}
	if err := recode(data, dst); err != nil {
		return fmt.Errorf("failed to parse [%s] section: %w", name, err)
	}
	return nil
}

// section decodes [name], then overlays every [name.'<condition>'] table
// whose condition holds, in lexical order of the conditions.
func section[T any](doc *document, name string, dst *T) error {
	data, ok := doc.raw[name]
	if !ok {
		return nil
	}
	table, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	base := make(map[string]any, len(table))
	var conds []string
	for key, val := range table {
		if _, isTable := val.(map[string]any); isTable && doc.eval.isCondition(key) {
			conds = append(conds, key)
		} else {
			base[key] = val
		}
	}
	if err := recode(base, dst); err != nil {
		return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
	}

	slices.Sort(conds)
	for _, cond := range conds {
		ok, err := doc.eval.condition(cond)
		if err != nil {
			return fmt.Errorf("[%s.%q]: %w", name, cond, err)
		}
		if !ok {
			continue
		}
		var extra T
		if err := recode(table[cond], &extra); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, cond, err)
		}
		if err := overlay(dst, extra); err != nil {
			return fmt.Errorf("[%s.%q]: %w", name, cond, err)
		}
	}
	return nil
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	doc, err := readDocument(rdr, env)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)
	for _, err := range []error{
		section(doc, "project", &cfg.Project),
		section(doc, "build", &cfg.Build),
		section(doc, "kit", &cfg.Kit),
		doc.plainSection("settings", &cfg.Settings),
		doc.plainSection("macros", &cfg.Macros),
	} {
		if err != nil {
			return nil, err
		}
	}
	if _, err := cfg.Build.Flags(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfigFromFile parses and validates a Qmakestep.toml.
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseConfig(bufio.NewReader(f), env)
}

// ParseKitFile reads the [kit] section of a kit file from a kit index.
func ParseKitFile(path string, env ConfigEnv) (kit.Spec, error) {
	var spec kit.Spec
	f, err := os.Open(path)
	if err != nil {
		return spec, err
	}
	defer f.Close()

	doc, err := readDocument(bufio.NewReader(f), env)
	if err == nil {
		err = section(doc, "kit", &spec)
	}
	if err != nil {
		return spec, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}
