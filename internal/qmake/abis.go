package qmake

import (
	"fmt"
	"slices"
	"strings"

	"github.com/qobs-build/qmakestep/internal/qtversion"
)

const androidAbisParam = "ANDROID_ABIS="

// AbisParam is the qmake variable that selects ABIs for a multi-ABI Qt, or
// "" when the ABIs cannot be selected.
func AbisParam(abis []qtversion.Abi) string {
	if len(abis) < 2 {
		return ""
	}
	for _, abi := range abis {
		if !abi.IsAndroid() {
			return ""
		}
	}
	return androidAbisParam
}

// PreferredAbi is the index of the ABI to build when nothing is selected.
func PreferredAbi(abis []qtversion.Abi) int {
	params := make([]string, len(abis))
	for i, abi := range abis {
		params[i] = abi.Param()
	}
	if i := slices.Index(params, "arm64-v8a"); i >= 0 {
		return i
	}
	if i := slices.Index(params, "armeabi-v7a"); i >= 0 {
		return i
	}
	return 0
}

// SelectedAbis reads the current selection back from the extra arguments.
func (s *Step) SelectedAbis() []string {
	v := s.qtVersion()
	if v == nil {
		return nil
	}
	param := AbisParam(v.Abis)
	if param == "" {
		return nil
	}
	for _, arg := range s.ExtraArguments() {
		if value, ok := strings.CutPrefix(arg, param); ok {
			return strings.Fields(strings.Trim(value, `"`))
		}
	}
	return nil
}

// SelectAbis replaces the ABI selection in the extra arguments. An empty
// selection picks the preferred ABI. It returns what was selected.
func (s *Step) SelectAbis(selected []string) ([]string, error) {
	v := s.qtVersion()
	if v == nil {
		return nil, &SetupError{Reason: noQtVersionMessage}
	}
	param := AbisParam(v.Abis)
	if param == "" {
		return nil, fmt.Errorf("%s does not support ABI selection", v.DisplayName())
	}

	var known []string
	for _, abi := range v.Abis {
		known = append(known, abi.Param())
	}
	for _, name := range selected {
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("unknown ABI %q, expected one of %s", name, strings.Join(known, ", "))
		}
	}

	// keep the Qt version's order
	var abis []string
	for _, name := range known {
		if slices.Contains(selected, name) {
			abis = append(abis, name)
		}
	}
	if len(abis) == 0 {
		abis = []string{known[PreferredAbi(v.Abis)]}
	}

	extra := slices.DeleteFunc(s.ExtraArguments(), func(arg string) bool {
		return strings.HasPrefix(arg, param)
	})
	extra = append(extra, param+`"`+strings.Join(abis, " ")+`"`)
	s.SetExtraArguments(extra)
	return abis, nil
}
