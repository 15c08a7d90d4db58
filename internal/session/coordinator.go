// Package session coordinates recognizer and synthesizer lifecycles behind one state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/jarvis/internal/fsm"
	"github.com/rbright/jarvis/internal/meter"
	"github.com/rbright/jarvis/internal/resource"
)

type callbackKind int

const (
	callbackUtterance callbackKind = iota + 1
	callbackEngineFailed
	callbackSpeechDone
)

// callback is one asynchronous engine report queued for the Run loop.
// token is the listen epoch for recognizer reports and the speech id for synth reports.
type callback struct {
	kind  callbackKind
	token uint64
	text  string
	err   error
}

// Options configures a Coordinator.
type Options struct {
	// Start is the start language resource; it must be readable.
	Start resource.Language
	// Voice is used when Speak is called without one.
	Voice resource.Voice

	MeterPeriod time.Duration
	Meter       meter.Options
	// OnLevel observes every meter tick. Optional.
	OnLevel func(meter.Sample)
	Now     func() time.Time
}

// Coordinator owns session state, the active language resource, and the level meter.
//
// Operations claim state under mu, call engines outside it, then settle under mu.
// Events are always published after mu is released.
type Coordinator struct {
	logger *slog.Logger
	rec    Recognizer
	synth  Synthesizer
	gen    Generator
	sink   EventSink

	meter   *meter.Meter
	period  time.Duration
	onLevel func(meter.Sample)
	now     func() time.Time

	mu          sync.RWMutex
	state       fsm.State
	inflight    string
	start       resource.Language
	active      resource.Language
	voice       resource.Voice
	speakVoice  resource.Voice
	resume      bool
	// rollback is what a switch deferred during speech replaced; nil otherwise.
	rollback    *rollbackPoint
	listenEpoch uint64
	speechID    uint64
	fault       error
	// deferred holds speech completions that arrived mid-switch.
	deferred []callback

	callbacks chan callback
}

// rollbackPoint records the resource the engine last held and whether speech
// was going to resume on it.
type rollbackPoint struct {
	previous resource.Language
	resume   bool
}

// New constructs a coordinator in idle with the start resource active.
func New(
	logger *slog.Logger,
	rec Recognizer,
	synth Synthesizer,
	gen Generator,
	sink EventSink,
	opts Options,
) (*Coordinator, error) {
	if err := opts.Start.IsReadable(); err != nil {
		return nil, newError(ErrResourceInvalid, "new coordinator", "", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if rec == nil {
		rec = PlaceholderRecognizer{}
	}
	if synth == nil {
		synth = PlaceholderSynthesizer{}
	}
	if sink == nil {
		sink = noopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Coordinator{
		logger:    logger,
		rec:       rec,
		synth:     synth,
		gen:       gen,
		sink:      sink,
		period:    opts.MeterPeriod,
		onLevel:   opts.OnLevel,
		now:       now,
		state:     fsm.StateIdle,
		start:     opts.Start,
		active:    opts.Start,
		voice:     opts.Voice,
		callbacks: make(chan callback, 64),
	}
	meterOpts := opts.Meter
	if meterOpts.Now == nil {
		meterOpts.Now = now
	}
	c.meter = meter.New(meter.SourceFunc(c.rawLevel), meterOpts)
	return c, nil
}

// State returns the current FSM state snapshot.
func (c *Coordinator) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ActiveResource returns the language resource the recognizer is (or was last) bound to.
func (c *Coordinator) ActiveResource() resource.Language {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// StartResource returns the resource fixed at construction.
func (c *Coordinator) StartResource() resource.Language {
	return c.start
}

// UsingStartLanguageModel reports whether the active resource is the start resource.
func (c *Coordinator) UsingStartLanguageModel() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active.Equal(c.start)
}

// DefaultVoice returns the voice used when Speak gets none.
func (c *Coordinator) DefaultVoice() resource.Voice {
	return c.voice
}

// Fault returns the engine fault that put the coordinator in error, if any.
func (c *Coordinator) Fault() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fault
}

// CurrentLevel returns the latest meter sample without blocking on engines.
func (c *Coordinator) CurrentLevel() meter.Sample {
	return c.meter.Snapshot()
}

// Run drives the meter and applies queued engine callbacks until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.meter.Run(ctx, c.period, c.onLevel)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cb := <-c.callbacks:
			c.apply(ctx, cb)
		}
	}
}

// StartListening binds res to the recognizer and begins listening.
func (c *Coordinator) StartListening(ctx context.Context, res resource.Language) error {
	const op = "start listening"
	if err := res.IsReadable(); err != nil {
		return newError(ErrResourceInvalid, op, c.State(), err)
	}

	c.mu.Lock()
	prior := c.state
	if c.inflight != "" || (prior != fsm.StateIdle && prior != fsm.StateError) {
		c.mu.Unlock()
		return newError(ErrEngineBusy, op, prior, nil)
	}
	c.inflight = op
	c.listenEpoch++
	epoch := c.listenEpoch
	c.mu.Unlock()

	err := c.rec.StartListening(ctx, res.DictionaryPath(), res.GrammarPath(), c.listener(epoch))

	c.mu.Lock()
	c.inflight = ""
	if err != nil {
		if errors.Is(err, ErrResourceInvalid) {
			c.mu.Unlock()
			return newError(ErrResourceInvalid, op, prior, err)
		}
		events := c.faultLocked(err)
		c.mu.Unlock()
		c.publish(ctx, events...)
		return newError(ErrEngineFault, op, prior, err)
	}
	c.transitionLocked(fsm.EventListen)
	c.active = res
	c.fault = nil
	events := []Event{c.eventLocked(EventListeningStarted, withResource(res))}
	c.mu.Unlock()

	c.logger.Info("listening started", "resource", res.Name())
	c.publish(ctx, events...)
	return nil
}

// StopListening ends recognition. It is a no-op when already idle and cancels a
// pending resume while speaking.
func (c *Coordinator) StopListening(ctx context.Context) error {
	const op = "stop listening"

	c.mu.Lock()
	prior := c.state
	if c.inflight != "" {
		c.mu.Unlock()
		return newError(ErrEngineBusy, op, prior, nil)
	}
	switch {
	case prior == fsm.StateIdle:
		c.mu.Unlock()
		return nil
	case prior == fsm.StateSpeaking && c.resume:
		c.resume = false
		events := []Event{c.eventLocked(EventListeningStopped)}
		c.mu.Unlock()
		c.publish(ctx, events...)
		return nil
	case prior != fsm.StateListening:
		c.mu.Unlock()
		return newError(ErrEngineBusy, op, prior, nil)
	}
	c.inflight = op
	c.listenEpoch++
	c.mu.Unlock()

	err := c.rec.StopListening(ctx)

	c.mu.Lock()
	c.inflight = ""
	if err != nil {
		events := c.faultLocked(err)
		c.mu.Unlock()
		c.publish(ctx, events...)
		return newError(ErrEngineFault, op, prior, err)
	}
	c.transitionLocked(fsm.EventStop)
	c.meter.Reset()
	events := []Event{c.eventLocked(EventListeningStopped)}
	c.mu.Unlock()

	c.logger.Info("listening stopped")
	c.publish(ctx, events...)
	return nil
}

// Speak synthesizes text with voice (the default voice when zero). Listening is
// suspended for the duration and resumed on the active resource afterwards.
func (c *Coordinator) Speak(ctx context.Context, text string, voice resource.Voice) error {
	const op = "speak"
	text = strings.TrimSpace(text)
	if text == "" {
		return newError(ErrEmptyText, op, c.State(), nil)
	}
	if voice.IsZero() {
		voice = c.voice
	}
	if voice.IsZero() {
		return newError(ErrVoiceInvalid, op, c.State(), errors.New("no voice given and no default voice configured"))
	}

	c.mu.Lock()
	prior := c.state
	if c.inflight != "" || (prior != fsm.StateIdle && prior != fsm.StateListening) {
		c.mu.Unlock()
		return newError(ErrEngineBusy, op, prior, nil)
	}
	c.inflight = op
	c.mu.Unlock()

	ok, err := c.synth.HasVoice(ctx, voice.Name())
	if err != nil {
		return c.abortSpeak(ctx, prior, err)
	}
	if !ok {
		c.clearInflight()
		return newError(ErrVoiceInvalid, op, prior, fmt.Errorf("unknown voice %q", voice.Name()))
	}

	var events []Event
	if prior == fsm.StateListening {
		c.mu.Lock()
		c.listenEpoch++
		c.mu.Unlock()
		if err := c.rec.StopListening(ctx); err != nil {
			return c.abortSpeak(ctx, prior, err)
		}
	}

	c.mu.Lock()
	c.inflight = ""
	c.transitionLocked(fsm.EventSpeak)
	c.resume = prior == fsm.StateListening
	c.speakVoice = voice
	c.speechID++
	id := c.speechID
	if c.resume {
		events = append(events, c.eventLocked(EventListeningSuspended, withResource(c.active)))
	}
	events = append(events, c.eventLocked(EventSpeechStarted, func(e *Event) {
		e.Voice = voice.Name()
		e.Text = text
	}))
	c.mu.Unlock()
	c.publish(ctx, events...)

	c.logger.Info("speech started", "voice", voice.Name(), "resume", prior == fsm.StateListening)
	if err := c.synth.Speak(ctx, text, voice.Name(), c.speechDone(id)); err != nil {
		if errors.Is(err, ErrEngineBusy) {
			return c.undoSpeak(ctx, id, prior, err)
		}
		c.mu.Lock()
		if c.speechID != id || c.state != fsm.StateSpeaking {
			c.mu.Unlock()
			return newError(ErrEngineFault, op, fsm.StateSpeaking, err)
		}
		events := c.faultLocked(err)
		c.mu.Unlock()
		c.publish(ctx, events...)
		return newError(ErrEngineFault, op, fsm.StateSpeaking, err)
	}
	return nil
}

// undoSpeak returns to prior after the synthesizer refused the utterance as busy.
func (c *Coordinator) undoSpeak(ctx context.Context, id uint64, prior fsm.State, cause error) error {
	const op = "speak"

	c.mu.Lock()
	if c.speechID != id || c.state != fsm.StateSpeaking || c.inflight != "" {
		c.mu.Unlock()
		return newError(ErrEngineBusy, op, prior, cause)
	}
	c.speechID++
	resume := c.resume
	c.resume = false
	c.rollback = nil
	active := c.active
	if !resume {
		c.transitionLocked(fsm.EventSpoken)
		c.meter.Reset()
		events := []Event{c.eventLocked(EventSpeechCompleted, func(e *Event) { e.Detail = cause.Error() })}
		c.mu.Unlock()
		c.publish(ctx, events...)
		return newError(ErrEngineBusy, op, prior, cause)
	}
	c.inflight = "resume"
	c.listenEpoch++
	epoch := c.listenEpoch
	c.mu.Unlock()

	err := c.rec.StartListening(ctx, active.DictionaryPath(), active.GrammarPath(), c.listener(epoch))

	c.mu.Lock()
	c.inflight = ""
	var events []Event
	if err != nil {
		events = c.faultLocked(err)
		c.mu.Unlock()
		c.publish(ctx, events...)
		return newError(ErrEngineFault, op, prior, errors.Join(cause, err))
	}
	c.transitionLocked(fsm.EventResume)
	events = []Event{
		c.eventLocked(EventSpeechCompleted, func(e *Event) { e.Detail = cause.Error() }),
		c.eventLocked(EventListeningResumed, withResource(active)),
	}
	c.mu.Unlock()
	c.publish(ctx, events...)
	return newError(ErrEngineBusy, op, prior, cause)
}

// abortSpeak records an engine fault raised before speech began.
func (c *Coordinator) abortSpeak(ctx context.Context, prior fsm.State, cause error) error {
	c.mu.Lock()
	c.inflight = ""
	events := c.faultLocked(cause)
	c.mu.Unlock()
	c.publish(ctx, events...)
	return newError(ErrEngineFault, "speak", prior, cause)
}

// SwitchLanguageResource rebinds the recognizer to res and ends listening on
// it. While speaking the swap is deferred to the post-speech resume.
func (c *Coordinator) SwitchLanguageResource(ctx context.Context, res resource.Language) error {
	const op = "switch language resource"
	if err := res.IsReadable(); err != nil {
		return newError(ErrResourceInvalid, op, c.State(), err)
	}
	prior, previous, err := c.beginSwitch(op)
	if err != nil {
		return err
	}
	return c.finishSwitch(ctx, op, prior, previous, res)
}

// SwitchVocabulary generates a dynamic resource from words and switches to it.
func (c *Coordinator) SwitchVocabulary(ctx context.Context, words []string) error {
	const op = "switch vocabulary"
	if c.gen == nil {
		return newError(ErrGeneration, op, c.State(), errors.New("no vocabulary generator configured"))
	}
	prior, previous, err := c.beginSwitch(op)
	if err != nil {
		return err
	}

	res, err := c.gen.Generate(ctx, words)
	if err == nil {
		err = res.IsReadable()
	}
	if err != nil {
		c.mu.Lock()
		c.settleLocked(prior)
		c.inflight = ""
		c.mu.Unlock()
		return newError(ErrGeneration, op, prior, err)
	}
	c.logger.Info("vocabulary generated", "words", len(words), "grammar", res.GrammarPath())
	return c.finishSwitch(ctx, op, prior, previous, res)
}

// beginSwitch claims the switching state.
func (c *Coordinator) beginSwitch(op string) (fsm.State, resource.Language, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior := c.state
	if c.inflight != "" || prior == fsm.StateSwitching {
		return prior, resource.Language{}, newError(ErrEngineBusy, op, prior, nil)
	}
	c.transitionLocked(fsm.EventSwitch)
	c.inflight = op
	return prior, c.active, nil
}

// finishSwitch binds res from the switching state, restoring prior on rejection.
func (c *Coordinator) finishSwitch(ctx context.Context, op string, prior fsm.State, previous, res resource.Language) error {
	if prior == fsm.StateSpeaking {
		c.mu.Lock()
		if c.rollback == nil {
			c.rollback = &rollbackPoint{previous: previous, resume: c.resume}
		}
		c.active = res
		c.resume = true
		c.transitionLocked(fsm.EventSettleSpeaker)
		c.inflight = ""
		c.flushDeferredLocked()
		events := []Event{c.eventLocked(EventResourceSwitched, withResource(res))}
		c.mu.Unlock()
		c.logger.Info("resource switch deferred until speech completes", "resource", res.Name())
		c.publish(ctx, events...)
		return nil
	}

	if prior == fsm.StateListening {
		c.mu.Lock()
		c.listenEpoch++
		c.mu.Unlock()
		if err := c.rec.StopListening(ctx); err != nil {
			return c.failSwitch(ctx, op, prior, err)
		}
	}

	c.mu.Lock()
	c.listenEpoch++
	epoch := c.listenEpoch
	c.mu.Unlock()

	startErr := c.rec.StartListening(ctx, res.DictionaryPath(), res.GrammarPath(), c.listener(epoch))
	if startErr != nil {
		if !errors.Is(startErr, ErrResourceInvalid) {
			return c.failSwitch(ctx, op, prior, startErr)
		}
		c.logger.Warn("language resource rejected", "resource", res.Name(), "error", startErr.Error())
		return c.rollbackSwitch(ctx, op, prior, previous, startErr)
	}

	c.mu.Lock()
	c.active = res
	c.fault = nil
	c.transitionLocked(fsm.EventSwitched)
	c.inflight = ""
	events := []Event{c.eventLocked(EventResourceSwitched, withResource(res))}
	if prior != fsm.StateListening {
		events = append(events, c.eventLocked(EventListeningStarted, withResource(res)))
	}
	c.mu.Unlock()

	c.logger.Info("resource switched", "resource", res.Name(), "dynamic", res.IsDynamic())
	c.publish(ctx, events...)
	return nil
}

// rollbackSwitch restores the pre-switch state after the engine rejected a resource.
func (c *Coordinator) rollbackSwitch(ctx context.Context, op string, prior fsm.State, previous resource.Language, cause error) error {
	if prior == fsm.StateListening {
		c.mu.Lock()
		c.listenEpoch++
		epoch := c.listenEpoch
		c.mu.Unlock()
		if err := c.rec.StartListening(ctx, previous.DictionaryPath(), previous.GrammarPath(), c.listener(epoch)); err != nil {
			return c.failSwitch(ctx, op, prior, errors.Join(cause, err))
		}
	}

	c.mu.Lock()
	c.settleLocked(prior)
	c.inflight = ""
	c.mu.Unlock()
	return newError(ErrResourceInvalid, op, prior, cause)
}

// failSwitch moves a switch whose engine calls failed into error.
func (c *Coordinator) failSwitch(ctx context.Context, op string, prior fsm.State, cause error) error {
	c.mu.Lock()
	c.inflight = ""
	events := c.faultLocked(cause)
	c.mu.Unlock()
	c.publish(ctx, events...)
	return newError(ErrEngineFault, op, prior, cause)
}

// Reset returns to idle from any settled state, clears any fault, and zeroes the meter.
func (c *Coordinator) Reset(ctx context.Context) error {
	const op = "reset"

	c.mu.Lock()
	prior := c.state
	if c.inflight != "" || prior == fsm.StateSwitching {
		c.mu.Unlock()
		return newError(ErrEngineBusy, op, prior, nil)
	}
	c.inflight = op
	c.listenEpoch++
	c.speechID++
	c.resume = false
	if c.rollback != nil {
		c.active = c.rollback.previous
		c.rollback = nil
	}
	c.mu.Unlock()

	switch prior {
	case fsm.StateListening, fsm.StateError:
		if err := c.rec.StopListening(ctx); err != nil {
			c.logger.Debug("reset: stop recognizer", "error", err.Error())
		}
	case fsm.StateSpeaking:
		if err := c.synth.Cancel(ctx); err != nil {
			c.logger.Debug("reset: cancel speech", "error", err.Error())
		}
	}

	c.mu.Lock()
	c.transitionLocked(fsm.EventReset)
	c.fault = nil
	c.inflight = ""
	c.meter.Reset()
	events := []Event{c.eventLocked(EventReset)}
	c.mu.Unlock()

	c.logger.Info("coordinator reset", "from", string(prior))
	c.publish(ctx, events...)
	return nil
}

// apply handles one queued engine callback on the Run goroutine.
func (c *Coordinator) apply(ctx context.Context, cb callback) {
	switch cb.kind {
	case callbackUtterance:
		c.mu.Lock()
		if cb.token != c.listenEpoch || c.state != fsm.StateListening {
			c.mu.Unlock()
			return
		}
		events := []Event{c.eventLocked(EventUtterance, func(e *Event) { e.Text = cb.text })}
		c.mu.Unlock()
		c.publish(ctx, events...)

	case callbackEngineFailed:
		c.mu.Lock()
		if cb.token != c.listenEpoch || c.state != fsm.StateListening || c.inflight != "" {
			c.mu.Unlock()
			return
		}
		c.listenEpoch++
		events := c.faultLocked(cb.err)
		c.mu.Unlock()
		c.publish(ctx, events...)
		if err := c.rec.StopListening(ctx); err != nil {
			c.logger.Debug("stop failed recognizer", "error", err.Error())
		}

	case callbackSpeechDone:
		c.speechFinished(ctx, cb.token, cb.err)
	}
}

// speechFinished settles speaking once the synthesizer reports completion.
func (c *Coordinator) speechFinished(ctx context.Context, id uint64, speakErr error) {
	c.mu.Lock()
	if id != c.speechID {
		c.mu.Unlock()
		return
	}
	if c.state == fsm.StateSwitching {
		c.deferred = append(c.deferred, callback{kind: callbackSpeechDone, token: id, err: speakErr})
		c.mu.Unlock()
		return
	}
	if c.state != fsm.StateSpeaking || c.inflight != "" {
		c.mu.Unlock()
		return
	}
	voice := c.speakVoice.Name()
	completed := c.eventLocked(EventSpeechCompleted, func(e *Event) { e.Voice = voice })
	rb := c.rollback
	c.rollback = nil
	if speakErr != nil {
		if rb != nil {
			c.active = rb.previous
		}
		events := c.faultLocked(speakErr)
		c.mu.Unlock()
		c.publish(ctx, events...)
		return
	}
	if !c.resume {
		c.transitionLocked(fsm.EventSpoken)
		c.meter.Reset()
		completed.State = c.state
		c.mu.Unlock()
		c.publish(ctx, completed)
		return
	}

	c.resume = false
	c.inflight = "resume"
	c.listenEpoch++
	epoch := c.listenEpoch
	active := c.active
	c.mu.Unlock()

	err := c.rec.StartListening(ctx, active.DictionaryPath(), active.GrammarPath(), c.listener(epoch))
	if err != nil && rb != nil {
		c.restoreDeferredSwitch(ctx, completed, rb, err)
		return
	}

	c.mu.Lock()
	c.inflight = ""
	var events []Event
	if err != nil {
		events = append([]Event{completed}, c.faultLocked(err)...)
	} else {
		c.transitionLocked(fsm.EventResume)
		completed.State = c.state
		events = []Event{completed, c.eventLocked(EventListeningResumed, withResource(active))}
	}
	c.mu.Unlock()
	c.publish(ctx, events...)
}

// restoreDeferredSwitch puts back the resource a switch made during speech
// replaced, after the engine refused the new one on resume. Callers hold the
// "resume" inflight claim.
func (c *Coordinator) restoreDeferredSwitch(ctx context.Context, completed Event, rb *rollbackPoint, cause error) {
	c.logger.Warn("deferred language resource rejected; restoring previous",
		"resource", rb.previous.Name(), "error", cause.Error())

	var startErr error
	if rb.resume {
		c.mu.Lock()
		c.listenEpoch++
		epoch := c.listenEpoch
		c.mu.Unlock()
		startErr = c.rec.StartListening(ctx, rb.previous.DictionaryPath(), rb.previous.GrammarPath(), c.listener(epoch))
	}

	c.mu.Lock()
	c.inflight = ""
	c.active = rb.previous
	events := []Event{completed}
	if startErr != nil {
		events = append(events, c.faultLocked(errors.Join(cause, startErr))...)
		c.mu.Unlock()
		c.publish(ctx, events...)
		return
	}
	if rb.resume {
		c.transitionLocked(fsm.EventResume)
	} else {
		c.transitionLocked(fsm.EventSpoken)
		c.meter.Reset()
	}
	events[0].State = c.state
	events = append(events, c.eventLocked(EventResourceSwitched, withResource(rb.previous), func(e *Event) {
		e.Detail = "rolled back: " + cause.Error()
	}))
	if rb.resume {
		events = append(events, c.eventLocked(EventListeningResumed, withResource(rb.previous)))
	}
	c.mu.Unlock()
	c.publish(ctx, events...)
}

// rawLevel feeds the meter: synthesizer output while speaking, recognizer
// input while listening, silence when idle or faulted.
func (c *Coordinator) rawLevel() (float32, bool) {
	switch c.State() {
	case fsm.StateSpeaking:
		return c.synth.OutputLevel()
	case fsm.StateListening:
		return c.rec.RawLevel()
	case fsm.StateSwitching:
		return 0, false
	default:
		return 0, true
	}
}

// transitionLocked applies event; callers hold mu. Coordinator paths only use
// edges the FSM defines, so a rejected edge is logged and state kept.
func (c *Coordinator) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Error("state transition rejected", "error", err.Error())
		return
	}
	c.state = next
}

// settleLocked returns a switching coordinator to prior.
func (c *Coordinator) settleLocked(prior fsm.State) {
	switch prior {
	case fsm.StateListening:
		c.transitionLocked(fsm.EventSwitched)
	case fsm.StateSpeaking:
		c.transitionLocked(fsm.EventSettleSpeaker)
		c.flushDeferredLocked()
	case fsm.StateError:
		c.transitionLocked(fsm.EventFail)
	default:
		c.transitionLocked(fsm.EventSettleIdle)
	}
}

// faultLocked enters error and returns the event to publish.
func (c *Coordinator) faultLocked(cause error) []Event {
	c.transitionLocked(fsm.EventFail)
	c.fault = cause
	c.resume = false
	c.rollback = nil
	c.meter.Reset()
	c.logger.Error("engine fault", "error", cause.Error())
	return []Event{c.eventLocked(EventFaulted, func(e *Event) { e.Detail = cause.Error() })}
}

// flushDeferredLocked requeues deferred callbacks for the Run loop; callers hold mu.
func (c *Coordinator) flushDeferredLocked() {
	if len(c.deferred) == 0 {
		return
	}
	pending := c.deferred
	c.deferred = nil
	go func() {
		for _, cb := range pending {
			c.callbacks <- cb
		}
	}()
}

func (c *Coordinator) clearInflight() {
	c.mu.Lock()
	c.inflight = ""
	c.mu.Unlock()
}

func withResource(res resource.Language) func(*Event) {
	return func(e *Event) {
		r := res
		e.Resource = &r
	}
}

// eventLocked stamps an event with the current state; callers hold mu.
func (c *Coordinator) eventLocked(kind EventKind, opts ...func(*Event)) Event {
	event := Event{
		ID:    uuid.NewString(),
		Kind:  kind,
		At:    c.now(),
		State: c.state,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

func (c *Coordinator) publish(ctx context.Context, events ...Event) {
	for _, event := range events {
		c.sink.Publish(ctx, event)
	}
}

// listener scopes recognizer callbacks to one listen epoch.
func (c *Coordinator) listener(epoch uint64) RecognitionListener {
	return epochListener{c: c, epoch: epoch}
}

func (c *Coordinator) speechDone(id uint64) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			c.callbacks <- callback{kind: callbackSpeechDone, token: id, err: err}
		})
	}
}

type epochListener struct {
	c     *Coordinator
	epoch uint64
}

func (l epochListener) UtteranceRecognized(text string) {
	l.c.callbacks <- callback{kind: callbackUtterance, token: l.epoch, text: text}
}

func (l epochListener) EngineFailed(err error) {
	if err == nil {
		return
	}
	l.c.callbacks <- callback{kind: callbackEngineFailed, token: l.epoch, err: err}
}
