package qmake

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// SettingsFilename is stored in the build directory.
const SettingsFilename = "qmakestep.user.toml"

const (
	KeyArguments       = "generation-arguments"
	KeyExtraArguments  = "generation-extra-arguments"
	KeyParserArguments = "generation-extra-parser-arguments"
	KeyForced          = "generation-forced"

	// Older settings kept these on the step. They now force the build
	// configuration's tri-states when present.
	keyLegacySeparateDebugInfo = "generation-separate-debug-info"
	keyLegacyQmlDebugging      = "generation-qml-debugging"
	keyLegacyQuickCompiler     = "generation-quick-compiler"
)

func (s *Step) ToMap() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := map[string]any{
		KeyArguments: s.userArgs,
		KeyForced:    s.forced,
	}
	if len(s.extraArgs) > 0 {
		m[KeyExtraArguments] = append([]string(nil), s.extraArgs...)
	}
	if len(s.extraParserArgs) > 0 {
		m[KeyParserArguments] = append([]string(nil), s.extraParserArgs...)
	}
	return m
}

// FromMap restores the step from a settings map. Listeners are not
// notified.
func (s *Step) FromMap(m map[string]any) error {
	userArgs, err := stringValue(m, KeyArguments)
	if err != nil {
		return err
	}
	forced, err := boolValue(m, KeyForced)
	if err != nil {
		return err
	}
	extra, err := stringsValue(m, KeyExtraArguments)
	if err != nil {
		return err
	}
	parserArgs, err := stringsValue(m, KeyParserArguments)
	if err != nil {
		return err
	}

	legacy := []struct {
		key string
		dst *TriState
	}{
		{keyLegacySeparateDebugInfo, &s.bc.SeparateDebugInfo},
		{keyLegacyQmlDebugging, &s.bc.QmlDebugging},
		{keyLegacyQuickCompiler, &s.bc.QuickCompiler},
	}
	for _, l := range legacy {
		if _, ok := m[l.key]; !ok {
			continue
		}
		on, err := boolValue(m, l.key)
		if err != nil {
			return err
		}
		*l.dst = TriStateFromBool(on)
	}

	s.mu.Lock()
	s.userArgs = userArgs
	s.forced = forced
	s.extraArgs = extra
	s.extraParserArgs = parserArgs
	s.mu.Unlock()
	return nil
}

func stringValue(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", nil
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("setting %q: expected a string, got %T", key, v)
	}
	return str, nil
}

func boolValue(m map[string]any, key string) (bool, error) {
	v, ok := m[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("setting %q: expected a boolean, got %T", key, v)
	}
	return b, nil
}

func stringsValue(m map[string]any, key string) ([]string, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("setting %q: expected strings, got %T", key, item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("setting %q: expected a list, got %T", key, v)
	}
}

// LoadSettings reads the settings map of a build directory. A missing file
// is an empty map.
func LoadSettings(buildDir string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(buildDir, SettingsFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	m := map[string]any{}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", SettingsFilename, err)
	}
	return m, nil
}

func SaveSettings(buildDir string, m map[string]any) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(buildDir, SettingsFilename), data, 0o644)
}
