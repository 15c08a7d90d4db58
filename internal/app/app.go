package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/cli"
	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/doctor"
	"github.com/rbright/jarvis/internal/ipc"
	"github.com/rbright/jarvis/internal/journal"
	"github.com/rbright/jarvis/internal/logging"
	"github.com/rbright/jarvis/internal/version"
)

const (
	queryTimeout   = 500 * time.Millisecond
	commandTimeout = 15 * time.Second
	defaultHistory = 20
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Engines overrides recognizer and synthesizer construction for run.
	Engines EngineFactory
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("jarvis"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("jarvis"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(slog.LevelInfo)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if level, err := config.ParseLevel(cfgLoaded.Config.Log.Level); err == nil {
		logRuntime.Level.Set(level)
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandHistory:
		return r.commandHistory(cfgLoaded.Config, parsed.Args)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandLevel, cli.CommandVoices:
		return r.forwardOrFail(ctx, ipc.Request{Command: string(parsed.Command)}, queryTimeout)
	case cli.CommandListen, cli.CommandSwitch:
		req := ipc.Request{Command: string(parsed.Command), Args: absResourceArgs(parsed.Args)}
		return r.forwardOrFail(ctx, req, commandTimeout)
	case cli.CommandStop, cli.CommandSay, cli.CommandVocab, cli.CommandReset:
		req := ipc.Request{Command: string(parsed.Command), Args: parsed.Args}
		return r.forwardOrFail(ctx, req, commandTimeout)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}

	return 0
}

func (r Runner) commandHistory(cfg config.Config, args []string) int {
	n := defaultHistory
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 0 {
			fmt.Fprintf(r.Stderr, "error: history count must be a non-negative integer, got %q\n", args[0])
			return 2
		}
		n = parsed
	}

	records, err := journal.Tail(cfg.Journal.Path, n)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(r.Stdout, "no journal events recorded")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: read journal: %v\n", err)
		return 1
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s %-20s state=%s", rec.At.Local().Format(time.DateTime), rec.Kind, rec.State)
		if rec.Resource != "" {
			line += " resource=" + rec.Resource
		}
		if rec.Voice != "" {
			line += " voice=" + rec.Voice
		}
		if rec.Text != "" {
			line += fmt.Sprintf(" text=%q", rec.Text)
		}
		if rec.Detail != "" {
			line += fmt.Sprintf(" detail=%q", rec.Detail)
		}
		fmt.Fprintln(r.Stdout, line)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"}, queryTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}
	if err != nil {
		return r.printError(resp, err)
	}
	r.printResponse("status", resp)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request, timeout time.Duration) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: jarvis is not running (start it with `jarvis run`)\n")
		return 1
	}
	if err != nil {
		return r.printError(resp, err)
	}
	r.printResponse(req.Command, resp)
	return 0
}

func (r Runner) printResponse(command string, resp ipc.Response) {
	switch command {
	case "status":
		fmt.Fprintf(r.Stdout, "%s resource=%s start=%t\n", resp.State, resp.Resource, resp.UsingStart)
	case "level":
		fmt.Fprintf(r.Stdout, "current=%.3f peak=%.3f\n", resp.Current, resp.Peak)
	case "voices":
		for _, voice := range resp.Items {
			fmt.Fprintln(r.Stdout, voice)
		}
	default:
		fmt.Fprintf(r.Stdout, "%s (state=%s resource=%s)\n", resp.Message, resp.State, resp.Resource)
	}
}

func (r Runner) printError(resp ipc.Response, err error) int {
	if resp.Reason != "" {
		fmt.Fprintf(r.Stderr, "error: %v (reason=%s)\n", err, resp.Reason)
		return 1
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}

// absResourceArgs resolves GRAMMAR DICTIONARY paths against the caller's cwd,
// since the coordinator runs elsewhere.
func absResourceArgs(args []string) []string {
	if len(args) != 2 {
		return args
	}
	out := make([]string, len(args))
	for i, arg := range args {
		path := config.ExpandPath(arg)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		out[i] = path
	}
	return out
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if errors.Is(err, ipc.ErrNotRunning) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
