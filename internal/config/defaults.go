package config

import "github.com/spf13/viper"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	flite := "flite"

	return Config{
		Language: LanguageConfig{
			StartGrammar:    "~/.local/share/jarvis/start.gram",
			StartDictionary: "~/.local/share/jarvis/start.dic",
			GeneratedDir:    "~/.cache/jarvis/vocabulary",
			Vocabulary: []string{
				"sunday", "monday", "tuesday", "wednesday",
				"thursday", "friday", "saturday", "change model",
			},
			SwitchPhrase: "change model",
		},
		Voices: VoicesConfig{Primary: "slt", Secondary: "kal"},
		Engine: EngineConfig{Backend: "monitor", SampleRate: 16000},
		Audio: AudioConfig{
			Backend:  "pulse",
			Input:    "default",
			Fallback: "default",
		},
		Synth: SynthConfig{
			Command:         flite,
			Argv:            mustParseArgv(flite),
			RenderTimeoutMS: 20000,
		},
		Meter:     MeterConfig{IntervalMS: 100, Decay: 0.05, TrackPeak: true},
		Indicator: IndicatorConfig{Enable: true, SoundEnable: true, AppName: "jarvis"},
		Monitor:   MonitorConfig{Address: "127.0.0.1:7071"},
		Health:    HealthConfig{Address: "127.0.0.1:7072"},
		Journal:   JournalConfig{Enable: false, Path: "~/.local/state/jarvis/events.jsonl"},
		Responder: ResponderConfig{Echo: true},
		Log:       LogConfig{Level: "info"},
	}
}

// setDefaults registers every key so env overrides and unknown-key detection see the full tree.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("language.start_grammar", cfg.Language.StartGrammar)
	v.SetDefault("language.start_dictionary", cfg.Language.StartDictionary)
	v.SetDefault("language.generated_dir", cfg.Language.GeneratedDir)
	v.SetDefault("language.base_dictionary", cfg.Language.BaseDictionary)
	v.SetDefault("language.vocabulary", cfg.Language.Vocabulary)
	v.SetDefault("language.switch_phrase", cfg.Language.SwitchPhrase)
	v.SetDefault("voices.primary", cfg.Voices.Primary)
	v.SetDefault("voices.secondary", cfg.Voices.Secondary)
	v.SetDefault("engine.backend", cfg.Engine.Backend)
	v.SetDefault("engine.vosk_model", cfg.Engine.VoskModel)
	v.SetDefault("engine.sample_rate", cfg.Engine.SampleRate)
	v.SetDefault("audio.backend", cfg.Audio.Backend)
	v.SetDefault("audio.input", cfg.Audio.Input)
	v.SetDefault("audio.fallback", cfg.Audio.Fallback)
	v.SetDefault("synth.command", cfg.Synth.Command)
	v.SetDefault("synth.voice_dir", cfg.Synth.VoiceDir)
	v.SetDefault("synth.render_timeout_ms", cfg.Synth.RenderTimeoutMS)
	v.SetDefault("meter.interval_ms", cfg.Meter.IntervalMS)
	v.SetDefault("meter.decay", cfg.Meter.Decay)
	v.SetDefault("meter.track_peak", cfg.Meter.TrackPeak)
	v.SetDefault("indicator.enable", cfg.Indicator.Enable)
	v.SetDefault("indicator.sound_enable", cfg.Indicator.SoundEnable)
	v.SetDefault("indicator.app_name", cfg.Indicator.AppName)
	v.SetDefault("monitor.address", cfg.Monitor.Address)
	v.SetDefault("health.address", cfg.Health.Address)
	v.SetDefault("journal.enable", cfg.Journal.Enable)
	v.SetDefault("journal.path", cfg.Journal.Path)
	v.SetDefault("responder.echo", cfg.Responder.Echo)
	v.SetDefault("log.level", cfg.Log.Level)
}
