package audio

import (
	"io"
	"sync"
	"sync/atomic"
)

// frameSink cuts arbitrary PCM writes into fixed-size frames and queues them
// for a Stream consumer. Frames are dropped when the consumer falls behind.
type frameSink struct {
	size  int
	out   chan []byte
	level LevelTracker
	total atomic.Int64

	mu      sync.Mutex
	buf     []byte
	closed  bool
	writers sync.WaitGroup
}

func newFrameSink(size int) *frameSink {
	return &frameSink{size: size, out: make(chan []byte, 128)}
}

// Write implements io.Writer. It returns io.EOF once the sink is closed.
func (s *frameSink) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}
	s.writers.Add(1)
	defer s.writers.Done()
	s.buf = append(s.buf, p...)
	var frames [][]byte
	for len(s.buf) >= s.size {
		frames = append(frames, append([]byte(nil), s.buf[:s.size]...))
		s.buf = s.buf[s.size:]
	}
	s.mu.Unlock()

	s.total.Add(int64(len(p)))
	for _, frame := range frames {
		s.level.Observe(frame)
		select {
		case s.out <- frame:
		default:
		}
	}
	return len(p), nil
}

func (s *frameSink) Chunks() <-chan []byte { return s.out }

func (s *frameSink) Level() (float32, bool) { return s.level.Level() }

func (s *frameSink) BytesCaptured() int64 { return s.total.Load() }

// close rejects further writes, queues any partial frame, and closes Chunks once.
func (s *frameSink) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.writers.Wait()
	s.level.Clear()

	s.mu.Lock()
	rest := s.buf
	s.buf = nil
	s.mu.Unlock()
	if len(rest) > 0 {
		select {
		case s.out <- rest:
		default:
		}
	}
	close(s.out)
}
