package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/jarvis/internal/fsm"
	"github.com/rbright/jarvis/internal/resource"
)

type fakeRecognizer struct {
	mu        sync.Mutex
	startErrs []error
	stopErr   error
	listener  RecognitionListener
	grammars  []string
	gate      chan struct{}
	level     float32

	starts atomic.Int32
	stops  atomic.Int32
}

func (f *fakeRecognizer) StartListening(_ context.Context, _ string, grammarPath string, l RecognitionListener) error {
	f.starts.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.grammars = append(f.grammars, grammarPath)
	var err error
	if len(f.startErrs) > 0 {
		err = f.startErrs[0]
		f.startErrs = f.startErrs[1:]
	}
	if err == nil {
		f.listener = l
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeRecognizer) StopListening(context.Context) error {
	f.stops.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopErr
}

func (f *fakeRecognizer) RawLevel() (float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, true
}

func (f *fakeRecognizer) current() RecognitionListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener
}

func (f *fakeRecognizer) lastGrammar() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.grammars) == 0 {
		return ""
	}
	return f.grammars[len(f.grammars)-1]
}

type fakeSynth struct {
	mu       sync.Mutex
	voices   map[string]bool
	voiceErr error
	speakErr error
	done     func(error)
	texts    []string
	level    float32

	cancels atomic.Int32
}

func newFakeSynth(voices ...string) *fakeSynth {
	f := &fakeSynth{voices: map[string]bool{}}
	for _, v := range voices {
		f.voices[v] = true
	}
	return f
}

func (f *fakeSynth) Speak(_ context.Context, text, _ string, done func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.speakErr != nil {
		return f.speakErr
	}
	f.texts = append(f.texts, text)
	f.done = done
	return nil
}

func (f *fakeSynth) Cancel(context.Context) error {
	f.cancels.Add(1)
	return nil
}

func (f *fakeSynth) HasVoice(_ context.Context, voice string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voiceErr != nil {
		return false, f.voiceErr
	}
	return f.voices[voice], nil
}

func (f *fakeSynth) Voices(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.voices))
	for v := range f.voices {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeSynth) OutputLevel() (float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, true
}

// finish simulates playback completion.
func (f *fakeSynth) finish(err error) {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	done(err)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func (s *recordingSink) texts(kind EventKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e.Text)
		}
	}
	return out
}

func (s *recordingSink) last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return Event{}
	}
	return s.events[len(s.events)-1]
}

func writeLanguage(t *testing.T, name string) resource.Language {
	t.Helper()

	dir := t.TempDir()
	grammar := filepath.Join(dir, name+".gram")
	dictionary := filepath.Join(dir, name+".dic")
	require.NoError(t, os.WriteFile(grammar, []byte(`["hello computer"]`+"\n"), 0o600))
	require.NoError(t, os.WriteFile(dictionary, []byte("hello\tHH AH L OW\n"), 0o600))
	return resource.Static(name, grammar, dictionary)
}

type harness struct {
	coord *Coordinator
	rec   *fakeRecognizer
	synth *fakeSynth
	sink  *recordingSink
	start resource.Language
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		rec:   &fakeRecognizer{},
		synth: newFakeSynth("kal", "slt"),
		sink:  &recordingSink{},
		start: writeLanguage(t, "start"),
	}
	coord, err := New(nil, h.rec, h.synth, resource.Generator{Dir: t.TempDir()}, h.sink, Options{
		Start:       h.start,
		Voice:       resource.NewVoice("kal"),
		MeterPeriod: time.Hour,
	})
	require.NoError(t, err)
	h.coord = coord

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coord.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) listen(t *testing.T) {
	t.Helper()
	require.NoError(t, h.coord.StartListening(context.Background(), h.start))
	require.Equal(t, fsm.StateListening, h.coord.State())
}

func waitForState(t *testing.T, coord *Coordinator, want fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if coord.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", want, coord.State())
}

func waitForEvent(t *testing.T, sink *recordingSink, kind EventKind) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, k := range sink.kinds() {
			if k == kind {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "event %s", kind)
}
