package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Language.StartGrammar) == "" {
		return nil, fmt.Errorf("language.start_grammar must not be empty")
	}
	if strings.TrimSpace(cfg.Language.StartDictionary) == "" {
		return nil, fmt.Errorf("language.start_dictionary must not be empty")
	}
	if strings.TrimSpace(cfg.Language.GeneratedDir) == "" {
		return nil, fmt.Errorf("language.generated_dir must not be empty")
	}
	if strings.TrimSpace(cfg.Voices.Primary) == "" {
		return nil, fmt.Errorf("voices.primary must not be empty")
	}
	if strings.TrimSpace(cfg.Engine.Backend) == "" {
		return nil, fmt.Errorf("engine.backend must not be empty")
	}
	if cfg.Engine.SampleRate <= 0 {
		return nil, fmt.Errorf("engine.sample_rate must be > 0")
	}
	if strings.EqualFold(cfg.Engine.Backend, "vosk") && strings.TrimSpace(cfg.Engine.VoskModel) == "" {
		return nil, fmt.Errorf("engine.vosk_model must not be empty when engine.backend=vosk")
	}
	if strings.TrimSpace(cfg.Audio.Backend) == "" {
		return nil, fmt.Errorf("audio.backend must not be empty")
	}
	if len(cfg.Synth.Argv) == 0 {
		return nil, fmt.Errorf("synth.command must not be empty")
	}
	if cfg.Synth.RenderTimeoutMS < 0 {
		return nil, fmt.Errorf("synth.render_timeout_ms must be >= 0")
	}
	if cfg.Meter.IntervalMS <= 0 {
		return nil, fmt.Errorf("meter.interval_ms must be > 0")
	}
	if cfg.Meter.Decay <= 0 || cfg.Meter.Decay > 1 {
		return nil, fmt.Errorf("meter.decay must be in (0, 1]")
	}
	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.AppName) == "" {
		return nil, fmt.Errorf("indicator.app_name must not be empty when indicator.enable=true")
	}
	if cfg.Journal.Enable && strings.TrimSpace(cfg.Journal.Path) == "" {
		return nil, fmt.Errorf("journal.path must not be empty when journal.enable=true")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Voices.Secondary) == "" {
		warnings = append(warnings, Warning{Message: "voices.secondary is empty; echo replies use voices.primary only"})
	}
	if cfg.Meter.IntervalMS > 1000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("meter.interval_ms=%d samples slower than once per second", cfg.Meter.IntervalMS)})
	}
	if strings.TrimSpace(cfg.Language.SwitchPhrase) != "" && len(cfg.Language.Vocabulary) == 0 {
		warnings = append(warnings, Warning{Message: "language.switch_phrase is set but language.vocabulary is empty; switching is disabled"})
	}

	return warnings, nil
}

// ParseLevel maps log.level to a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", raw)
	}
}
