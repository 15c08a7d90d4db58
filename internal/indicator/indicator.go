// Package indicator surfaces coordinator events as desktop notifications and audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/session"
)

const (
	maxBodyLen  = 100
	cueTimeout  = 2 * time.Second
	noIconPath  = ""
	defaultName = "jarvis"
)

// Notifier is a session.EventSink. Dispatch happens on background goroutines
// so Publish never blocks the coordinator.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	notify func(title, body string) error
	cue    func(context.Context, cueKind) error

	notifyMu sync.Mutex
	soundMu  sync.Mutex
	wg       sync.WaitGroup
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		notify: func(title, body string) error {
			return beeep.Notify(title, body, noIconPath)
		},
		cue: emitCue,
	}
}

// Publish maps one coordinator event to its notification and cue.
func (n *Notifier) Publish(ctx context.Context, event session.Event) {
	switch event.Kind {
	case session.EventListeningStarted:
		n.playCue(ctx, cueListen)
		n.show(n.messages.listening, resourceName(event))
	case session.EventListeningStopped:
		n.playCue(ctx, cueStop)
	case session.EventResourceSwitched:
		n.playCue(ctx, cueSwitch)
		n.show(n.messages.switched, resourceName(event))
	case session.EventUtterance:
		n.show(n.messages.heard, event.Text)
	case session.EventFaulted:
		n.playCue(ctx, cueFault)
		detail := event.Detail
		if detail == "" {
			detail = n.messages.errorText
		}
		n.show(n.messages.errorTitle, detail)
	case session.EventReset:
		n.show(n.messages.reset, "")
	}
}

// Wait blocks until every dispatched notification and cue has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// show serializes desktop notifications and sends them asynchronously.
func (n *Notifier) show(title, body string) {
	if !n.cfg.Enable {
		return
	}
	appName := strings.TrimSpace(n.cfg.AppName)
	if appName == "" {
		appName = defaultName
	}
	title = appName + ": " + title
	body = truncate(body)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.notifyMu.Lock()
		defer n.notifyMu.Unlock()
		if err := n.notify(title, body); err != nil {
			n.log("indicator notification failed", err)
		}
	}()
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	cueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cueTimeout)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := n.cue(cueCtx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func resourceName(event session.Event) string {
	if event.Resource == nil {
		return ""
	}
	return event.Resource.Name()
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBodyLen {
		return text
	}
	return string(runes[:maxBodyLen]) + "..."
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
