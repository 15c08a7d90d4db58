package session

import (
	"context"
	"time"

	"github.com/rbright/jarvis/internal/fsm"
	"github.com/rbright/jarvis/internal/resource"
)

// EventKind names one outward coordinator notification.
type EventKind string

const (
	EventListeningStarted   EventKind = "listening_started"
	EventListeningStopped   EventKind = "listening_stopped"
	EventListeningSuspended EventKind = "listening_suspended"
	EventListeningResumed   EventKind = "listening_resumed"
	EventSpeechStarted      EventKind = "speech_started"
	EventSpeechCompleted    EventKind = "speech_completed"
	EventResourceSwitched   EventKind = "resource_switched"
	EventUtterance          EventKind = "utterance_recognized"
	EventFaulted            EventKind = "faulted"
	EventReset              EventKind = "reset"
)

// Event is one state-change report. Resource is set for listening and switch
// events, Voice and Text for speech, Text for utterances, Detail for faults
// and rolled-back switches.
type Event struct {
	ID       string
	Kind     EventKind
	At       time.Time
	State    fsm.State
	Resource *resource.Language
	Voice    string
	Text     string
	Detail   string
}

// EventSink receives coordinator events. Publish is called outside the
// coordinator lock and should return quickly.
type EventSink interface {
	Publish(context.Context, Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(context.Context, Event)

func (f SinkFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}

// Sinks fans each event out to every non-nil sink in order.
type Sinks []EventSink

func (s Sinks) Publish(ctx context.Context, event Event) {
	for _, sink := range s {
		if sink == nil {
			continue
		}
		sink.Publish(ctx, event)
	}
}

// noopSink preserves coordinator flow when no sink is wired.
type noopSink struct{}

func (noopSink) Publish(context.Context, Event) {}
