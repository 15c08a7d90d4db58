package indicator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/resource"
	"github.com/rbright/jarvis/internal/session"
)

type recorder struct {
	mu      sync.Mutex
	notes   []string
	cues    []cueKind
	failing bool
}

func (r *recorder) notify(title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, title+"|"+body)
	if r.failing {
		return errors.New("no notification daemon")
	}
	return nil
}

func (r *recorder) cue(_ context.Context, kind cueKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, kind)
	return nil
}

func newTestNotifier(cfg config.IndicatorConfig) (*Notifier, *recorder) {
	rec := &recorder{}
	n := New(cfg, nil)
	n.messages = indicatorMessages(localeEnglish)
	n.notify = rec.notify
	n.cue = rec.cue
	return n, rec
}

func TestPublishMapsEventsToNotificationsAndCues(t *testing.T) {
	n, rec := newTestNotifier(config.Default().Indicator)
	ctx := context.Background()
	start := resource.Static("start", "/a.gram", "/a.dic")

	// Each dispatch is asynchronous; waiting between events keeps the order stable.
	for _, ev := range []session.Event{
		{Kind: session.EventListeningStarted, Resource: &start},
		{Kind: session.EventUtterance, Text: "hello computer"},
		{Kind: session.EventSpeechStarted, Text: "ignored"},
		{Kind: session.EventResourceSwitched, Resource: &start},
		{Kind: session.EventListeningStopped},
		{Kind: session.EventFaulted, Detail: "device unplugged"},
		{Kind: session.EventFaulted},
		{Kind: session.EventReset},
	} {
		n.Publish(ctx, ev)
		n.Wait()
	}

	require.Equal(t, []string{
		"jarvis: Listening…|start",
		"jarvis: Heard|hello computer",
		"jarvis: Vocabulary switched|start",
		"jarvis: Speech engine error|device unplugged",
		"jarvis: Speech engine error|The speech engine stopped unexpectedly",
		"jarvis: Session reset|",
	}, rec.notes)
	require.Equal(t, []cueKind{cueListen, cueSwitch, cueStop, cueFault, cueFault}, rec.cues)
}

func TestPublishDisabledSkipsDispatch(t *testing.T) {
	n, rec := newTestNotifier(config.IndicatorConfig{Enable: false, SoundEnable: false})

	n.Publish(context.Background(), session.Event{Kind: session.EventListeningStarted})
	n.Publish(context.Background(), session.Event{Kind: session.EventFaulted, Detail: "x"})
	n.Wait()

	require.Empty(t, rec.notes)
	require.Empty(t, rec.cues)
}

func TestPublishTruncatesLongBodiesAndUsesAppName(t *testing.T) {
	n, rec := newTestNotifier(config.IndicatorConfig{Enable: true, AppName: "assistant"})

	n.Publish(context.Background(), session.Event{Kind: session.EventUtterance, Text: strings.Repeat("é", 150)})
	n.Wait()

	require.Len(t, rec.notes, 1)
	title, body, _ := strings.Cut(rec.notes[0], "|")
	require.Equal(t, "assistant: Heard", title)
	require.Equal(t, strings.Repeat("é", maxBodyLen)+"...", body)
}

func TestNotificationFailureIsTolerated(t *testing.T) {
	n, rec := newTestNotifier(config.IndicatorConfig{Enable: true})
	rec.failing = true

	require.NotPanics(t, func() {
		n.Publish(context.Background(), session.Event{Kind: session.EventReset})
		n.Wait()
	})
	require.Equal(t, []string{"jarvis: Session reset|"}, rec.notes)
}
