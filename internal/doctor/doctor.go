// Package doctor runs runtime readiness diagnostics for config, tools, audio, resources, and the coordinator.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/engine"
	"github.com/rbright/jarvis/internal/health"
	"github.com/rbright/jarvis/internal/resource"
	"github.com/rbright/jarvis/internal/synth"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// voiceChecker reports whether a synthesizer knows a voice.
type voiceChecker interface {
	HasVoice(ctx context.Context, voice string) (bool, error)
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	checks := []Check{{Name: "config", Pass: true, Message: message}}

	synthCheck := checkCommand(cfg.Synth.Argv, "synth.command")
	checks = append(checks, synthCheck)
	if synthCheck.Pass {
		flite := synth.NewFlite(synth.Config{Command: cfg.Synth.Argv, VoiceDir: cfg.Synth.VoiceDir}, nil, nil, nil)
		checks = append(checks, checkVoice(ctx, flite, "voices.primary", cfg.Voices.Primary))
		if strings.TrimSpace(cfg.Voices.Secondary) != "" {
			checks = append(checks, checkVoice(ctx, flite, "voices.secondary", cfg.Voices.Secondary))
		}
	}

	checks = append(checks, checkBackend("engine.backend", cfg.Engine.Backend, engine.Backends()))
	checks = append(checks, checkBackend("audio.backend", cfg.Audio.Backend, audio.Backends()))
	checks = append(checks, checkStartResource(cfg.Language))
	if strings.TrimSpace(cfg.Language.BaseDictionary) != "" {
		checks = append(checks, checkDictionary("language.base_dictionary", cfg.Language.BaseDictionary))
	}
	if strings.EqualFold(cfg.Audio.Backend, "pulse") {
		checks = append(checks, checkAudioSelection(ctx, cfg))
	}
	if strings.TrimSpace(cfg.Health.Address) != "" {
		checks = append(checks, checkCoordinator(ctx, cfg.Health.Address, time.Second))
	}

	return Report{Checks: checks}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkVoice(ctx context.Context, vc voiceChecker, name, voice string) Check {
	ok, err := vc.HasVoice(ctx, voice)
	switch {
	case err != nil:
		return Check{Name: name, Pass: false, Message: err.Error()}
	case !ok:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("voice %q is not installed", voice)}
	default:
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("voice %q available", voice)}
	}
}

// checkBackend validates that a named backend is compiled into this binary.
func checkBackend(name, backend string, available []string) Check {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if slices.Contains(available, backend) {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%q available", backend)}
	}
	return Check{
		Name:    name,
		Pass:    false,
		Message: fmt.Sprintf("%q not built in (available: %s)", backend, strings.Join(available, ", ")),
	}
}

// checkStartResource loads the start grammar and confirms the dictionary covers it.
func checkStartResource(lang config.LanguageConfig) Check {
	const name = "language.start"
	start := resource.Static("start", lang.StartGrammar, lang.StartDictionary)
	if err := start.IsReadable(); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	phrases, err := engine.LoadGrammar(start.GrammarPath())
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	dict, err := engine.LoadDictionary(start.DictionaryPath())
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if missing := dict.Missing(phrases); len(missing) > 0 {
		return Check{Name: name, Pass: false, Message: "no pronunciation for " + strings.Join(missing, ", ")}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%d phrases, %d words", len(phrases), len(dict))}
}

func checkDictionary(name, path string) Check {
	dict, err := engine.LoadDictionary(path)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%d words", len(dict))}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkCoordinator probes a running coordinator. Not running is not a failure; faulted is.
func checkCoordinator(ctx context.Context, addr string, timeout time.Duration) Check {
	const name = "coordinator"
	status, err := health.Probe(ctx, addr, timeout)
	if err != nil {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("not running at %s", addr)}
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s at %s; run `jarvis reset`", status, addr)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("serving at %s", addr)}
}
