package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.yaml"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "jarvis", "config.yaml"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "jarvis", "config.yaml"), resolved)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.Equal(t, home, ExpandPath("~"))
	require.Equal(t, filepath.Join(home, "a", "b.gram"), ExpandPath(" ~/a/b.gram "))
	require.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	require.Equal(t, "~other/x", ExpandPath("~other/x"))
	require.Empty(t, ExpandPath(""))
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "missing.yaml")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)

	want := Default()
	expandPaths(&want)
	require.Equal(t, want, loaded.Config)
	require.Equal(t, filepath.Join(home, ".local", "share", "jarvis", "start.gram"), loaded.Config.Language.StartGrammar)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
language:
  start_grammar: /srv/jarvis/start.gram
  start_dictionary: /srv/jarvis/start.dic
  vocabulary: [" lights on ", "lights off", ""]
voices:
  primary: awb
  secondary: rms
synth:
  command: flite --setf "duration_stretch=1.2"
meter:
  track_peak: false
monitor:
  address: ""
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Empty(t, loaded.Warnings)

	cfg := loaded.Config
	require.Equal(t, "/srv/jarvis/start.gram", cfg.Language.StartGrammar)
	require.Equal(t, []string{"lights on", "lights off"}, cfg.Language.Vocabulary)
	require.Equal(t, "awb", cfg.Voices.Primary)
	require.Equal(t, "rms", cfg.Voices.Secondary)
	require.Equal(t, []string{"flite", "--setf", "duration_stretch=1.2"}, cfg.Synth.Argv)
	require.False(t, cfg.Meter.TrackPeak)
	require.Empty(t, cfg.Monitor.Address)
	require.Equal(t, Default().Health.Address, cfg.Health.Address)
	require.Equal(t, 100, cfg.Meter.IntervalMS)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))
	t.Setenv("JARVIS_LOG_LEVEL", "debug")
	t.Setenv("JARVIS_LANGUAGE_VOCABULARY", "open door,close door")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", loaded.Config.Log.Level)
	require.Equal(t, []string{"open door", "close door"}, loaded.Config.Language.Vocabulary)
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voices:\n  tertiary: rms\nriva_grpc: 127.0.0.1:50051\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	messages := make([]string, 0, len(loaded.Warnings))
	for _, w := range loaded.Warnings {
		messages = append(messages, w.Message)
	}
	require.Contains(t, messages, `unknown config key "riva_grpc" ignored`)
	require.Contains(t, messages, `unknown config key "voices.tertiary" ignored`)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voices: [unclosed\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("meter:\n  decay: 2\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "meter.decay")
}

func TestLoadRejectsBadSynthCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("synth:\n  command: 'flite \"oops'\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated quote")
}
