// Package project loads a qmake project directory: its Qmakestep.toml, its
// .pro file and the build configuration derived from both.
package project

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/qmakestep/internal/kit"
	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/qmake"
)

const ConfigFilename = "Qmakestep.toml"

var (
	errNoProFile   = errors.New("no .pro file found")
	errSubProject  = errors.New("subproject must match exactly one .pro file")
	errBadTriState = errors.New(`must be "enabled", "disabled" or "unset"`)
)

type Project struct {
	Dir     string
	ProFile string
	Config  *Config
	Env     ConfigEnv
}

// Load reads the project in dir. Qmakestep.toml is optional; without it
// the .pro file is discovered and defaults apply.
func Load(dir string) (*Project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	p := &Project{Dir: dir, Env: NewConfigEnv(dir), Config: new(Config)}
	cfgPath := filepath.Join(dir, ConfigFilename)
	switch _, err := os.Stat(cfgPath); {
	case err == nil:
		if p.Config, err = ParseConfigFromFile(cfgPath, p.Env); err != nil {
			return nil, fmt.Errorf("%s: %w", cfgPath, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	default:
		msg.Debug("no %s in %s, using defaults", ConfigFilename, dir)
	}

	if p.Config.Project.File != "" {
		p.ProFile = filepath.Join(dir, filepath.FromSlash(p.Config.Project.File))
	} else if p.ProFile, err = FindProFile(dir); err != nil {
		return nil, err
	}
	return p, nil
}

// FindProFile picks the project file of dir: a top-level .pro named after
// the directory, else the first top-level one, else the shallowest one in
// the tree.
func FindProFile(dir string) (string, error) {
	fsys := os.DirFS(dir)
	for _, pattern := range []string{"*.pro", "**/*.pro"} {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			continue
		}
		slices.SortFunc(matches, func(a, b string) int {
			if d := strings.Count(a, "/") - strings.Count(b, "/"); d != 0 {
				return d
			}
			return strings.Compare(a, b)
		})

		chosen := matches[0]
		want := filepath.Base(dir) + ".pro"
		for _, m := range matches {
			if path.Base(m) == want && strings.Count(m, "/") == strings.Count(chosen, "/") {
				chosen = m
				break
			}
		}
		if len(matches) > 1 {
			msg.Warn("found %d project files, using %s", len(matches), chosen)
		}
		return filepath.Join(dir, filepath.FromSlash(chosen)), nil
	}
	return "", fmt.Errorf("%w in %s", errNoProFile, dir)
}

// Name is the project file name without extension.
func (p *Project) Name() string {
	return strings.TrimSuffix(filepath.Base(p.ProFile), filepath.Ext(p.ProFile))
}

// SubProFile resolves [project] subproject, "" when the whole tree is built.
func (p *Project) SubProFile() (string, error) {
	pattern := p.Config.Project.SubProject
	if pattern == "" {
		return "", nil
	}
	pattern = filepath.ToSlash(pattern)
	matches, err := doublestar.Glob(os.DirFS(p.Dir), pattern)
	if err != nil {
		return "", fmt.Errorf("subproject %q: %w", pattern, err)
	}
	matches = slices.DeleteFunc(matches, func(m string) bool { return !strings.HasSuffix(m, ".pro") })
	if len(matches) != 1 {
		return "", fmt.Errorf("%w: %q matches %d", errSubProject, pattern, len(matches))
	}
	return filepath.Join(p.Dir, filepath.FromSlash(matches[0])), nil
}

var nonNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// BuildDir is [project] build_dir, or a shadow build directory next to the
// project: build-<project>-<kit>-<Debug|Release>.
func (p *Project) BuildDir(kitName string) string {
	if dir := p.Config.Project.BuildDir; dir != "" {
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(p.Dir, filepath.FromSlash(dir))
	}
	kitName = nonNameChars.ReplaceAllString(kitName, "_")
	return filepath.Join(filepath.Dir(p.Dir), "build-"+p.Name()+"-"+kitName+"-"+p.buildConfigName())
}

func (p *Project) buildConfigName() string {
	flags, _ := p.Config.Build.Flags()
	if flags.Debug {
		return "Debug"
	}
	return "Release"
}

// KitSpec is the kit file named by [project] kit, with the [kit] section
// merged on top.
func (p *Project) KitSpec() (kit.Spec, error) {
	name := p.Config.Project.Kit
	if name == "" {
		return p.Config.Kit, nil
	}
	path, err := kit.LookupKitFile(p.Dir, name)
	if err != nil {
		return kit.Spec{}, err
	}
	spec, err := ParseKitFile(path, p.Env)
	if err != nil {
		return kit.Spec{}, err
	}
	if spec.Name == "" {
		spec.Name = name
	}
	if err := overlay(&spec, p.Config.Kit); err != nil {
		return kit.Spec{}, err
	}
	return spec, nil
}

var templateRegex = regexp.MustCompile(`^\s*TEMPLATE\s*=\s*(\w+)`)

// ReadTemplate returns the TEMPLATE a .pro file sets, "app" if it sets none.
func ReadTemplate(proFile string) (qmake.ProjectType, error) {
	f, err := os.Open(proFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	template := qmake.AppTemplate
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		if m := templateRegex.FindStringSubmatch(line); m != nil {
			template = qmake.ProjectType(m[1])
		}
	}
	return template, sc.Err()
}

func parseTriState(name, value string) (qmake.TriState, error) {
	t, ok := qmake.ParseTriState(strings.ToLower(value))
	if !ok {
		return qmake.Unset, fmt.Errorf("[build] %s %w, got %q", name, errBadTriState, value)
	}
	return t, nil
}

// BuildConfiguration derives the qmake build configuration for kit k.
func (p *Project) BuildConfiguration(k *kit.Kit) (*qmake.BuildConfiguration, error) {
	flags, err := p.Config.Build.Flags()
	if err != nil {
		return nil, err
	}

	bc := &qmake.BuildConfiguration{
		ProjectFile: p.ProFile,
		BuildDir:    p.BuildDir(k.Name),
		Makefile:    p.Config.Project.Makefile,
		Flags:       flags,
		Env:         k.Env,
	}

	build := p.Config.Build
	if bc.QmlDebugging, err = parseTriState("qml_debugging", build.QmlDebugging); err != nil {
		return nil, err
	}
	if bc.QuickCompiler, err = parseTriState("quick_compiler", build.QuickCompiler); err != nil {
		return nil, err
	}
	if bc.SeparateDebugInfo, err = parseTriState("separate_debug_info", build.SeparateDebugInfo); err != nil {
		return nil, err
	}

	proFile := p.ProFile
	sub, err := p.SubProFile()
	if err != nil {
		return nil, err
	}
	if sub != "" {
		rel, err := filepath.Rel(filepath.Dir(p.ProFile), filepath.Dir(sub))
		if err != nil {
			return nil, err
		}
		bc.SubProject = &qmake.SubProject{
			ProFile:  sub,
			BuildDir: filepath.Join(bc.BuildDir, rel),
		}
		proFile = sub
	}

	if bc.ProjectType, err = ReadTemplate(proFile); err != nil {
		return nil, err
	}

	bc.Macros = p.macros(k, bc)
	return bc, nil
}

func (p *Project) macros(k *kit.Kit, bc *qmake.BuildConfiguration) *qmake.MacroExpander {
	m := qmake.NewMacroExpander(map[string]string{
		"ProjectName": p.Name(),
		"ProjectDir":  p.Dir,
		"BuildDir":    bc.WorkingDir(),
		"BuildConfig": p.buildConfigName(),
		"Kit:Name":    k.Name,
		"Kit:Mkspec":  k.Mkspec,
	})
	if k.Qt != nil {
		m.Set("Qt:Version", k.Qt.Number)
		m.Set("Qt:Prefix", k.Qt.Prefix)
	}
	for name, value := range p.Config.Macros {
		m.Set(name, value)
	}
	m.SetEnvironment(k.Env)
	return m
}
