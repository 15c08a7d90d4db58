// Package cli parses jarvis command lines.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandStatus  Command = "status"
	CommandLevel   Command = "level"
	CommandListen  Command = "listen"
	CommandStop    Command = "stop"
	CommandSay     Command = "say"
	CommandSwitch  Command = "switch"
	CommandVocab   Command = "vocab"
	CommandReset   Command = "reset"
	CommandVoices  Command = "voices"
	CommandHistory Command = "history"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// unlimited marks a command that accepts any number of trailing arguments.
const unlimited = -1

type arity struct {
	min, max int
}

var validCommands = map[Command]arity{
	CommandRun:     {0, 0},
	CommandStatus:  {0, 0},
	CommandLevel:   {0, 0},
	CommandListen:  {0, 2},
	CommandStop:    {0, 0},
	CommandSay:     {1, 2},
	CommandSwitch:  {1, 2},
	CommandVocab:   {1, unlimited},
	CommandReset:   {0, 0},
	CommandVoices:  {0, 0},
	CommandHistory: {0, 1},
	CommandDevices: {0, 0},
	CommandDoctor:  {0, 0},
	CommandVersion: {0, 0},
	CommandHelp:    {0, 0},
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

// Parse reads global flags, then one command and its trailing arguments.
// Flags are only recognized before the command.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			want, ok := validCommands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			rest := args[i+1:]
			if err := checkArity(cmd, want, len(rest)); err != nil {
				return Parsed{}, err
			}
			parsed.Command = cmd
			parsed.Args = append([]string(nil), rest...)
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

func checkArity(cmd Command, want arity, got int) error {
	switch {
	case want.max == 0 && got > 0:
		return fmt.Errorf("unexpected arguments after command %q", cmd)
	case got < want.min:
		return fmt.Errorf("command %q requires at least %d argument(s)", cmd, want.min)
	case want.max != unlimited && got > want.max:
		return fmt.Errorf("command %q accepts at most %d argument(s)", cmd, want.max)
	case cmd == CommandListen && got == 1:
		return fmt.Errorf("command %q takes no arguments or GRAMMAR DICTIONARY", cmd)
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  run                          Start the coordinator and listen on the start vocabulary
  status                       Print coordinator state and active vocabulary
  level                        Print current and peak audio level
  listen [GRAMMAR DICTIONARY]  Start listening (default: active vocabulary)
  stop                         Stop listening
  say TEXT [VOICE]             Speak TEXT (default voice: voices.primary)
  switch start|GRAMMAR DICT    Switch the recognizer vocabulary
  vocab WORD...                Generate a vocabulary from WORDs and switch to it
  reset                        Clear a fault and return to idle
  voices                       List synthesizer voices
  history [N]                  Print the last N journal events
  devices                      List available input devices
  doctor                       Run configuration and environment checks
  version                      Print version information
  help                         Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/jarvis/config.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
