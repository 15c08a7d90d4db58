package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsPass(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty start grammar", mutate: func(c *Config) { c.Language.StartGrammar = " " }, wantErr: "language.start_grammar"},
		{name: "empty start dictionary", mutate: func(c *Config) { c.Language.StartDictionary = "" }, wantErr: "language.start_dictionary"},
		{name: "empty generated dir", mutate: func(c *Config) { c.Language.GeneratedDir = "" }, wantErr: "language.generated_dir"},
		{name: "empty primary voice", mutate: func(c *Config) { c.Voices.Primary = "" }, wantErr: "voices.primary"},
		{name: "empty engine", mutate: func(c *Config) { c.Engine.Backend = "" }, wantErr: "engine.backend"},
		{name: "bad sample rate", mutate: func(c *Config) { c.Engine.SampleRate = 0 }, wantErr: "engine.sample_rate"},
		{name: "vosk without model", mutate: func(c *Config) { c.Engine.Backend = "vosk" }, wantErr: "engine.vosk_model"},
		{name: "empty audio backend", mutate: func(c *Config) { c.Audio.Backend = "" }, wantErr: "audio.backend"},
		{name: "empty synth argv", mutate: func(c *Config) { c.Synth.Argv = nil }, wantErr: "synth.command"},
		{name: "negative render timeout", mutate: func(c *Config) { c.Synth.RenderTimeoutMS = -1 }, wantErr: "render_timeout"},
		{name: "zero meter interval", mutate: func(c *Config) { c.Meter.IntervalMS = 0 }, wantErr: "meter.interval_ms"},
		{name: "zero decay", mutate: func(c *Config) { c.Meter.Decay = 0 }, wantErr: "meter.decay"},
		{name: "indicator without app name", mutate: func(c *Config) { c.Indicator.AppName = "" }, wantErr: "indicator.app_name"},
		{name: "journal without path", mutate: func(c *Config) {
			c.Journal.Enable = true
			c.Journal.Path = ""
		}, wantErr: "journal.path"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Voices.Secondary = ""
	cfg.Meter.IntervalMS = 2000
	cfg.Language.Vocabulary = nil

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	require.Contains(t, warnings[0].Message, "voices.secondary")
	require.Contains(t, warnings[1].Message, "meter.interval_ms")
	require.Contains(t, warnings[2].Message, "switch_phrase")
}

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := ParseLevel(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}
