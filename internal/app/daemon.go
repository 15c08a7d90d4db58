package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dimiro1/banner"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/engine"
	"github.com/rbright/jarvis/internal/fsm"
	"github.com/rbright/jarvis/internal/health"
	"github.com/rbright/jarvis/internal/indicator"
	"github.com/rbright/jarvis/internal/ipc"
	"github.com/rbright/jarvis/internal/journal"
	"github.com/rbright/jarvis/internal/logging"
	"github.com/rbright/jarvis/internal/meter"
	"github.com/rbright/jarvis/internal/monitor"
	"github.com/rbright/jarvis/internal/resource"
	"github.com/rbright/jarvis/internal/responder"
	"github.com/rbright/jarvis/internal/session"
	"github.com/rbright/jarvis/internal/synth"
	"github.com/rbright/jarvis/internal/version"
)

const bannerTemplate = `{{ .Title "JARVIS" "" 0 }}
`

// EngineFactory builds the recognizer and synthesizer for a run.
type EngineFactory func(cfg config.Config, logger *slog.Logger) (session.Recognizer, session.Synthesizer, error)

// DefaultEngines builds the configured recognizer backend and the flite synthesizer.
func DefaultEngines(cfg config.Config, logger *slog.Logger) (session.Recognizer, session.Synthesizer, error) {
	rec, err := engine.New(engine.Options{
		Backend:   cfg.Engine.Backend,
		ModelPath: cfg.Engine.VoskModel,
		Audio: audio.Config{
			Backend:    cfg.Audio.Backend,
			Input:      cfg.Audio.Input,
			Fallback:   cfg.Audio.Fallback,
			SampleRate: cfg.Engine.SampleRate,
		},
		Logger: logging.Component(logger, "engine"),
	})
	if err != nil {
		return nil, nil, err
	}
	tts := synth.NewFlite(synth.Config{
		Command:       cfg.Synth.Argv,
		VoiceDir:      cfg.Synth.VoiceDir,
		RenderTimeout: time.Duration(cfg.Synth.RenderTimeoutMS) * time.Millisecond,
	}, logging.Component(logger, "synth"), nil, nil)
	return rec, tts, nil
}

func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: jarvis is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	printBanner(r.Stdout)

	engines := r.Engines
	if engines == nil {
		engines = DefaultEngines
	}
	rec, tts, err := engines(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build engines failed", "error", err.Error())
		return 1
	}

	d, err := newDaemon(cfg, logger, rec, tts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build coordinator failed", "error", err.Error())
		return 1
	}
	defer d.close()

	if err := d.run(ctx, listener, r.Stdout, r.Stderr); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printBanner(out io.Writer) {
	banner.Init(out, true, false, bytes.NewBufferString(bannerTemplate))
	fmt.Fprintln(out, version.String())
}

// daemon is one running coordinator plus every event consumer attached to it.
type daemon struct {
	cfg    config.Config
	logger *slog.Logger

	coord     *session.Coordinator
	notifier  *indicator.Notifier
	hub       *monitor.Hub
	health    *health.Server
	journal   *journal.Journal
	responder *responder.Responder
}

func newDaemon(cfg config.Config, logger *slog.Logger, rec session.Recognizer, tts session.Synthesizer) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger}

	var sinks session.Sinks
	if cfg.Journal.Enable {
		j, err := journal.Open(cfg.Journal.Path, logging.Component(logger, "journal"))
		if err != nil {
			return nil, err
		}
		d.journal = j
		sinks = append(sinks, j)
	}

	d.notifier = indicator.New(cfg.Indicator, logging.Component(logger, "indicator"))
	sinks = append(sinks, d.notifier)

	var onLevel func(meter.Sample)
	if cfg.Monitor.Address != "" {
		d.hub = monitor.New(logging.Component(logger, "monitor"))
		sinks = append(sinks, d.hub)
		onLevel = d.hub.PublishLevel
	}
	if cfg.Health.Address != "" {
		d.health = health.NewServer(logging.Component(logger, "health"))
		sinks = append(sinks, d.health)
	}

	primary := resource.NewVoice(cfg.Voices.Primary)
	d.responder = responder.New(responder.Options{
		SwitchPhrase: cfg.Language.SwitchPhrase,
		Vocabulary:   cfg.Language.Vocabulary,
		Echo:         cfg.Responder.Echo,
		Primary:      primary,
		Secondary:    resource.NewVoice(cfg.Voices.Secondary),
	}, logging.Component(logger, "responder"))
	sinks = append(sinks, d.responder)

	coord, err := session.New(
		logging.Component(logger, "session"),
		rec,
		tts,
		resource.Generator{Dir: cfg.Language.GeneratedDir, BaseDictionary: cfg.Language.BaseDictionary},
		sinks,
		session.Options{
			Start:       resource.Static("start", cfg.Language.StartGrammar, cfg.Language.StartDictionary),
			Voice:       primary,
			MeterPeriod: time.Duration(cfg.Meter.IntervalMS) * time.Millisecond,
			Meter:       meter.Options{Decay: cfg.Meter.Decay, DisablePeak: !cfg.Meter.TrackPeak},
			OnLevel:     onLevel,
		},
	)
	if err != nil {
		d.close()
		return nil, err
	}
	d.coord = coord
	return d, nil
}

// run serves every surface until ctx ends or one of them fails.
func (d *daemon) run(ctx context.Context, listener net.Listener, stdout, stderr io.Writer) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 5)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil && runCtx.Err() == nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	spawn("coordinator", d.coord.Run)
	ipcServer := &ipc.Server{Handler: d.coord, Logger: logging.Component(d.logger, "ipc")}
	spawn("ipc server", func(ctx context.Context) error { return ipcServer.Serve(ctx, listener) })
	spawn("responder", func(ctx context.Context) error { return d.responder.Run(ctx, d.coord) })
	if d.hub != nil {
		spawn("monitor", func(ctx context.Context) error { return d.hub.Serve(ctx, d.cfg.Monitor.Address) })
	}
	if d.health != nil {
		spawn("health", func(ctx context.Context) error { return d.health.Serve(ctx, d.cfg.Health.Address) })
	}

	start := d.coord.StartResource()
	if err := d.coord.StartListening(runCtx, start); err != nil {
		fmt.Fprintf(stderr, "warning: start listening: %v\n", err)
		d.logger.Warn("initial listen failed", "error", err.Error(), "reason", session.Reason(err))
	} else {
		fmt.Fprintf(stdout, "listening on %s\n", start)
	}
	d.logger.Info("coordinator running",
		"resource", start.Name(),
		"monitor", d.cfg.Monitor.Address,
		"health", d.cfg.Health.Address,
		"journal", d.journal != nil,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		d.logger.Error("coordinator surface failed", "error", runErr.Error())
	}

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer stopCancel()
	switch d.coord.State() {
	case fsm.StateListening:
		if err := d.coord.StopListening(stopCtx); err != nil {
			d.logger.Warn("stop on shutdown failed", "error", err.Error())
		}
	case fsm.StateSpeaking:
		// Reset cancels playback; StopListening only drops a pending resume.
		if err := d.coord.Reset(stopCtx); err != nil {
			d.logger.Warn("cancel speech on shutdown failed", "error", err.Error())
		}
	}

	cancel()
	wg.Wait()
	d.logger.Info("coordinator stopped")
	return runErr
}

func (d *daemon) close() {
	if d.notifier != nil {
		d.notifier.Wait()
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.logger.Warn("close journal failed", "error", err.Error())
		}
	}
}
