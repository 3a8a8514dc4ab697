package qmake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMacroExpander(t *testing.T) {
	m := NewMacroExpander(map[string]string{
		"BuildDir":    "/build",
		"BuildConfig": "Debug",
		"Kit:Name":    "Desktop",
		"ProjectName": "app",
	})
	m.SetEnvironment([]string{"SDK=/opt/sdk", "BROKEN"})

	tests := []struct {
		in, want string
	}{
		{"DESTDIR=%{BuildDir}/bin", "DESTDIR=/build/bin"},
		{"%{Kit:Name}", "Desktop"},
		{`%{env["SDK"]}/lib`, "/opt/sdk/lib"},
		{`TARGET=%{ProjectName + (BuildConfig == "Debug" ? "d" : "")}`, "TARGET=appd"},
		{"%{Unknown:Macro}", "%{Unknown:Macro}"},
		{"no macros", "no macros"},
		{"%{BuildDir}%{BuildDir}", "/build/build"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Expand(tt.in), tt.in)
	}

	m.Set("BuildDir", "/other")
	assert.Equal(t, "/other", m.Expand("%{BuildDir}"))
	v, ok := m.Value("ProjectName")
	assert.True(t, ok)
	assert.Equal(t, "app", v)
}

func TestNilMacroExpander(t *testing.T) {
	var m *MacroExpander
	assert.Equal(t, "%{BuildDir}", m.Expand("%{BuildDir}"))
}
