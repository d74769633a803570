package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestConfigUnmarshal(t *testing.T) {
	data := `
aliases:
  backtrace: ["where"]
max-backtrace-depth: 64
`
	var c Config
	err := yaml.Unmarshal([]byte(data), &c)
	require.NoError(t, err)
	require.Equal(t, []string{"where"}, c.Aliases["backtrace"])
	require.Equal(t, 64, c.MaxBacktraceDepth)
}

func TestConfigRoundTrip(t *testing.T) {
	c := Config{
		Aliases:           map[string][]string{"continue": {"go"}},
		MaxBacktraceDepth: 32,
	}
	out, err := yaml.Marshal(c)
	require.NoError(t, err)

	var c2 Config
	require.NoError(t, yaml.Unmarshal(out, &c2))
	require.Equal(t, c, c2)
}
