// Package fsm defines the speech session state table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
	StateSwitching State = "switching"
	StateError     State = "error"
)

const (
	EventListen        Event = "listen"
	EventStop          Event = "stop"
	EventSpeak         Event = "speak"
	EventSpoken        Event = "spoken"
	EventResume        Event = "resume"
	EventSwitch        Event = "switch"
	EventSwitched      Event = "switched"
	EventSettleIdle    Event = "settle_idle"
	EventSettleSpeaker Event = "settle_speaking"
	EventFail          Event = "fail"
	EventReset         Event = "reset"
)

// Transition returns the state reached by applying event to current.
//
// EventFail is accepted from every state. EventReset is accepted from every
// state except switching, which only settles through its own events.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		if !Known(current) {
			return current, fmt.Errorf("unknown state %q", current)
		}
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventListen:
			return StateListening, nil
		case EventSpeak:
			return StateSpeaking, nil
		case EventSwitch:
			return StateSwitching, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventStop:
			return StateIdle, nil
		case EventSpeak:
			return StateSpeaking, nil
		case EventSwitch:
			return StateSwitching, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventSpoken:
			return StateIdle, nil
		case EventResume:
			return StateListening, nil
		case EventSwitch:
			return StateSwitching, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSwitching:
		switch event {
		case EventSwitched:
			return StateListening, nil
		case EventSettleIdle:
			return StateIdle, nil
		case EventSettleSpeaker:
			return StateSpeaking, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventListen:
			return StateListening, nil
		case EventSwitch:
			return StateSwitching, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Known reports whether state is one of the defined session states.
func Known(state State) bool {
	switch state {
	case StateIdle, StateListening, StateSpeaking, StateSwitching, StateError:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
