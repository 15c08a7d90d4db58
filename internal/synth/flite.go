// Package synth speaks text through the flite command-line synthesizer.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/session"
)

// ErrBusy is returned when Speak is called while a previous utterance still plays.
var ErrBusy = fmt.Errorf("synthesizer is already speaking: %w", session.ErrEngineBusy)

const voiceFileExt = ".flitevox"

// Runner executes argv and returns combined output.
type Runner func(ctx context.Context, argv []string) ([]byte, error)

// Config configures the flite synthesizer.
type Config struct {
	// Command is the flite argv prefix, e.g. ["flite"].
	Command []string
	// VoiceDir holds additional *.flitevox voices addressable by basename.
	VoiceDir string
	// RenderTimeout bounds one flite invocation.
	RenderTimeout time.Duration
}

// Flite renders speech with flite into a temporary WAV and plays it.
type Flite struct {
	cfg    Config
	logger *slog.Logger
	run    Runner
	player Player
	level  audio.LevelTracker

	mu      sync.Mutex
	current *utterance
	voices  []string
}

// utterance is the render-and-play slot. done closes once the slot is free again.
type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFlite constructs a synthesizer; nil runner and player select exec and Pulse.
func NewFlite(cfg Config, logger *slog.Logger, run Runner, player Player) *Flite {
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"flite"}
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if run == nil {
		run = execRunner
	}
	if player == nil {
		player = PulsePlayer{}
	}
	return &Flite{cfg: cfg, logger: logger, run: run, player: player}
}

// Speak renders text synchronously, then plays it in the background and calls done.
func (f *Flite) Speak(ctx context.Context, text, voice string, done func(error)) error {
	f.mu.Lock()
	if f.current != nil {
		f.mu.Unlock()
		return ErrBusy
	}
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	u := &utterance{cancel: cancel, done: make(chan struct{})}
	f.current = u
	f.mu.Unlock()

	pcm, err := f.render(ctx, text, voice)
	if err != nil {
		f.release(u)
		return err
	}

	go func() {
		err := f.player.Play(playCtx, pcm, &f.level)
		f.level.Clear()
		f.release(u)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if done != nil {
			done(err)
		}
	}()
	return nil
}

// Cancel stops the current playback and waits until the synthesizer can speak again.
func (f *Flite) Cancel(ctx context.Context) error {
	f.mu.Lock()
	u := f.current
	f.mu.Unlock()
	if u == nil {
		return nil
	}
	u.cancel()
	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OutputLevel reports the RMS level of the buffer most recently handed to the sink.
func (f *Flite) OutputLevel() (float32, bool) {
	return f.level.Level()
}

// HasVoice reports whether voice is a built-in voice, a VoiceDir voice, or a voice file path.
func (f *Flite) HasVoice(ctx context.Context, voice string) (bool, error) {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return false, nil
	}
	if strings.HasSuffix(voice, voiceFileExt) {
		_, err := os.Stat(voice)
		return err == nil, nil
	}
	voices, err := f.Voices(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range voices {
		if v == voice {
			return true, nil
		}
	}
	return false, nil
}

// Voices lists built-in voices plus VoiceDir voices. The list is cached after the first success.
func (f *Flite) Voices(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	cached := f.voices
	f.mu.Unlock()
	if cached != nil {
		return append([]string(nil), cached...), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := f.run(runCtx, append(append([]string(nil), f.cfg.Command...), "-lv"))
	if err != nil {
		return nil, fmt.Errorf("list flite voices: %w", err)
	}

	voices := ParseVoiceList(string(out))
	voices = append(voices, f.dirVoices()...)
	slices.Sort(voices)
	voices = slices.Compact(voices)

	f.mu.Lock()
	f.voices = voices
	f.mu.Unlock()
	return append([]string(nil), voices...), nil
}

func (f *Flite) render(ctx context.Context, text, voice string) (PCM, error) {
	tmp, err := os.CreateTemp("", "jarvis-speech-*.wav")
	if err != nil {
		return PCM{}, fmt.Errorf("create speech file: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	renderCtx, cancel := context.WithTimeout(ctx, f.cfg.RenderTimeout)
	defer cancel()

	argv := append(append([]string(nil), f.cfg.Command...), "-voice", f.voiceArg(voice), "-t", text, "-o", path)
	if out, err := f.run(renderCtx, argv); err != nil {
		return PCM{}, fmt.Errorf("flite render: %w: %s", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return PCM{}, fmt.Errorf("read speech file: %w", err)
	}
	pcm, err := ParseWAV(data)
	if err != nil {
		return PCM{}, fmt.Errorf("decode speech file: %w", err)
	}
	f.logger.Debug("speech rendered", "voice", voice, "samples", len(pcm.Samples), "rate", pcm.SampleRate)
	return pcm, nil
}

// voiceArg maps VoiceDir voice names to their file path.
func (f *Flite) voiceArg(voice string) string {
	if f.cfg.VoiceDir == "" || strings.ContainsRune(voice, os.PathSeparator) {
		return voice
	}
	candidate := filepath.Join(f.cfg.VoiceDir, voice+voiceFileExt)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return voice
}

func (f *Flite) dirVoices() []string {
	if f.cfg.VoiceDir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(f.cfg.VoiceDir, "*"+voiceFileExt))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), voiceFileExt))
	}
	return names
}

func (f *Flite) release(u *utterance) {
	u.cancel()
	f.mu.Lock()
	if f.current == u {
		f.current = nil
	}
	f.mu.Unlock()
	close(u.done)
}

// ParseVoiceList extracts names from `flite -lv` output ("Voices available: kal slt ...").
func ParseVoiceList(out string) []string {
	var voices []string
	for _, line := range strings.Split(out, "\n") {
		_, rest, ok := strings.Cut(line, "Voices available:")
		if !ok {
			continue
		}
		voices = append(voices, strings.Fields(rest)...)
	}
	return voices
}

func execRunner(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, errors.New("command argv cannot be empty")
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}
