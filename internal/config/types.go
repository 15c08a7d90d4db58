// Package config resolves, loads, validates, and defaults jarvis configuration.
package config

// Config is the fully materialized runtime configuration used by jarvis.
type Config struct {
	Language  LanguageConfig  `mapstructure:"language"`
	Voices    VoicesConfig    `mapstructure:"voices"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Synth     SynthConfig     `mapstructure:"synth"`
	Meter     MeterConfig     `mapstructure:"meter"`
	Indicator IndicatorConfig `mapstructure:"indicator"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Health    HealthConfig    `mapstructure:"health"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Responder ResponderConfig `mapstructure:"responder"`
	Log       LogConfig       `mapstructure:"log"`
}

// LanguageConfig names the start grammar set and the dynamic vocabulary inputs.
type LanguageConfig struct {
	StartGrammar    string   `mapstructure:"start_grammar"`
	StartDictionary string   `mapstructure:"start_dictionary"`
	GeneratedDir    string   `mapstructure:"generated_dir"`
	BaseDictionary  string   `mapstructure:"base_dictionary"`
	Vocabulary      []string `mapstructure:"vocabulary"`
	SwitchPhrase    string   `mapstructure:"switch_phrase"`
}

// VoicesConfig holds the two synthesis voices; Primary is the default for say.
type VoicesConfig struct {
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
}

// EngineConfig selects the recognizer backend.
type EngineConfig struct {
	Backend    string `mapstructure:"backend"`
	VoskModel  string `mapstructure:"vosk_model"`
	SampleRate int    `mapstructure:"sample_rate"`
}

// AudioConfig controls capture backend and preferred/fallback input selection.
type AudioConfig struct {
	Backend  string `mapstructure:"backend"`
	Input    string `mapstructure:"input"`
	Fallback string `mapstructure:"fallback"`
}

// SynthConfig configures the flite command line.
type SynthConfig struct {
	Command         string   `mapstructure:"command"`
	Argv            []string `mapstructure:"-"`
	VoiceDir        string   `mapstructure:"voice_dir"`
	RenderTimeoutMS int      `mapstructure:"render_timeout_ms"`
}

// MeterConfig controls level sampling.
type MeterConfig struct {
	IntervalMS int     `mapstructure:"interval_ms"`
	Decay      float64 `mapstructure:"decay"`
	TrackPeak  bool    `mapstructure:"track_peak"`
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable      bool   `mapstructure:"enable"`
	SoundEnable bool   `mapstructure:"sound_enable"`
	AppName     string `mapstructure:"app_name"`
}

// MonitorConfig controls the websocket event feed. An empty address disables it.
type MonitorConfig struct {
	Address string `mapstructure:"address"`
}

// HealthConfig controls the grpc health service. An empty address disables it.
type HealthConfig struct {
	Address string `mapstructure:"address"`
}

// JournalConfig controls the JSONL event journal.
type JournalConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// ResponderConfig controls the built-in utterance behaviors.
type ResponderConfig struct {
	Echo bool `mapstructure:"echo"`
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}
