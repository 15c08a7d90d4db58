package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/jarvis/internal/ipc"
	"github.com/rbright/jarvis/internal/resource"
)

// voiceLister is implemented by synthesizers that can enumerate their voices.
type voiceLister interface {
	Voices(context.Context) ([]string, error)
}

// Handle serves IPC commands against the running coordinator.
func (c *Coordinator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return c.respond("status", nil)
	case "level":
		resp := c.respond("level", nil)
		sample := c.CurrentLevel()
		resp.Current = sample.Current
		resp.Peak = sample.Peak
		return resp
	case "listen":
		res, err := c.resourceArgs(req.Args, true)
		if err != nil {
			return c.respond("", err)
		}
		return c.respond("listening", c.StartListening(ctx, res))
	case "stop":
		return c.respond("stopped", c.StopListening(ctx))
	case "say":
		if len(req.Args) == 0 || len(req.Args) > 2 {
			return c.usage("say TEXT [VOICE]")
		}
		voice := resource.Voice{}
		if len(req.Args) == 2 {
			voice = resource.NewVoice(req.Args[1])
		}
		return c.respond("speaking", c.Speak(ctx, req.Args[0], voice))
	case "switch":
		res, err := c.resourceArgs(req.Args, false)
		if err != nil {
			return c.respond("", err)
		}
		return c.respond("switched", c.SwitchLanguageResource(ctx, res))
	case "vocab":
		if len(req.Args) == 0 {
			return c.usage("vocab WORD...")
		}
		return c.respond("switched", c.SwitchVocabulary(ctx, req.Args))
	case "reset":
		return c.respond("reset", c.Reset(ctx))
	case "voices":
		lister, ok := c.synth.(voiceLister)
		if !ok {
			return c.respond("", errors.New("synthesizer cannot list voices"))
		}
		voices, err := lister.Voices(ctx)
		resp := c.respond("voices", err)
		resp.Items = voices
		return resp
	default:
		resp := c.respond("", nil)
		resp.OK = false
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		return resp
	}
}

// resourceArgs maps "start", "GRAMMAR DICTIONARY", or (when allowed) nothing to a resource.
func (c *Coordinator) resourceArgs(args []string, allowEmpty bool) (resource.Language, error) {
	switch {
	case len(args) == 0 && allowEmpty:
		return c.ActiveResource(), nil
	case len(args) == 1 && strings.EqualFold(args[0], "start"):
		return c.start, nil
	case len(args) == 2:
		return resource.Static("", args[0], args[1]), nil
	default:
		return resource.Language{}, errors.New("usage: start | GRAMMAR DICTIONARY")
	}
}

func (c *Coordinator) usage(text string) ipc.Response {
	return c.respond("", fmt.Errorf("usage: %s", text))
}

// respond snapshots coordinator state into a response.
func (c *Coordinator) respond(message string, err error) ipc.Response {
	c.mu.RLock()
	resp := ipc.Response{
		OK:         err == nil,
		State:      string(c.state),
		Resource:   c.active.Name(),
		UsingStart: c.active.Equal(c.start),
	}
	c.mu.RUnlock()

	if err != nil {
		resp.Error = err.Error()
		resp.Reason = Reason(KindOf(err))
		return resp
	}
	resp.Message = message
	return resp
}
