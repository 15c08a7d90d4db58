// Package journal appends coordinator events to a JSONL file, one protobuf
// Struct per line in protojson form.
package journal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/jarvis/internal/session"
)

// Record is one decoded journal line.
type Record struct {
	ID       string
	Kind     string
	At       time.Time
	State    string
	Resource string
	Voice    string
	Text     string
	Detail   string
}

// Journal is a session.EventSink that appends encoded events to a writer.
type Journal struct {
	logger *slog.Logger

	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// New wraps w; the caller owns its lifecycle.
func New(w io.Writer, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Journal{w: w, logger: logger}
}

// Open appends to path, creating it and its directory when missing.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := New(f, logger)
	j.closer = f
	return j, nil
}

// Publish implements session.EventSink. Write failures are logged, not returned.
func (j *Journal) Publish(_ context.Context, event session.Event) {
	line, err := Encode(event)
	if err != nil {
		j.logger.Error("journal encode failed", "kind", string(event.Kind), "error", err.Error())
		return
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(line); err != nil {
		j.logger.Error("journal write failed", "error", err.Error())
	}
}

// Close closes the underlying file when the journal opened it.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closer == nil {
		return nil
	}
	err := j.closer.Close()
	j.closer = nil
	return err
}

// Encode renders one event as a single-line protojson Struct.
func Encode(event session.Event) ([]byte, error) {
	fields := map[string]any{
		"id":    event.ID,
		"kind":  string(event.Kind),
		"at":    event.At.UTC().Format(time.RFC3339Nano),
		"state": string(event.State),
	}
	if event.Resource != nil {
		fields["resource"] = event.Resource.Name()
		fields["grammar"] = event.Resource.GrammarPath()
		fields["dynamic"] = event.Resource.IsDynamic()
	}
	for key, value := range map[string]string{"voice": event.Voice, "text": event.Text, "detail": event.Detail} {
		if value != "" {
			fields[key] = value
		}
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(msg)
}

// Decode parses a single journal line.
func Decode(line []byte) (Record, error) {
	var msg structpb.Struct
	if err := protojson.Unmarshal(line, &msg); err != nil {
		return Record{}, err
	}
	fields := msg.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }

	rec := Record{
		ID:       str("id"),
		Kind:     str("kind"),
		State:    str("state"),
		Resource: str("resource"),
		Voice:    str("voice"),
		Text:     str("text"),
		Detail:   str("detail"),
	}
	if raw := str("at"); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Record{}, fmt.Errorf("journal timestamp: %w", err)
		}
		rec.At = at
	}
	return rec, nil
}

// Tail returns the last n records in path; n <= 0 returns all of them.
func Tail(path string, n int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		rec, err := Decode(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		records = append(records, rec)
		if n > 0 && len(records) > n {
			records = records[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
