package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.yaml location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "jarvis", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "jarvis", "config.yaml"), nil
}

// ExpandPath resolves a leading "~" against the user's home directory.
func ExpandPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw, "~"))
}

func expandPaths(cfg *Config) {
	cfg.Language.StartGrammar = ExpandPath(cfg.Language.StartGrammar)
	cfg.Language.StartDictionary = ExpandPath(cfg.Language.StartDictionary)
	cfg.Language.GeneratedDir = ExpandPath(cfg.Language.GeneratedDir)
	cfg.Language.BaseDictionary = ExpandPath(cfg.Language.BaseDictionary)
	cfg.Engine.VoskModel = ExpandPath(cfg.Engine.VoskModel)
	cfg.Synth.VoiceDir = ExpandPath(cfg.Synth.VoiceDir)
	cfg.Journal.Path = ExpandPath(cfg.Journal.Path)
}
