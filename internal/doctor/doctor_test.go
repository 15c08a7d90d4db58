package doctor

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/health"
	"github.com/rbright/jarvis/internal/session"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "synth.command")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-flite")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-flite", "--setf", "x=1"}, "synth.command")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "synth.command command is available")
}

type stubVoices map[string]bool

func (s stubVoices) HasVoice(_ context.Context, voice string) (bool, error) {
	if voice == "broken" {
		return false, errors.New("flite crashed")
	}
	return s[voice], nil
}

func TestCheckVoice(t *testing.T) {
	voices := stubVoices{"slt": true}

	require.True(t, checkVoice(context.Background(), voices, "voices.primary", "slt").Pass)

	missing := checkVoice(context.Background(), voices, "voices.secondary", "awb")
	require.False(t, missing.Pass)
	require.Contains(t, missing.Message, "not installed")

	broken := checkVoice(context.Background(), voices, "voices.primary", "broken")
	require.False(t, broken.Pass)
	require.Contains(t, broken.Message, "flite crashed")
}

func TestCheckBackend(t *testing.T) {
	require.True(t, checkBackend("engine.backend", " Monitor ", []string{"monitor", "vosk"}).Pass)

	check := checkBackend("engine.backend", "vosk", []string{"monitor"})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "available: monitor")
}

func writeStart(t *testing.T, grammar, dictionary string) config.LanguageConfig {
	t.Helper()
	dir := t.TempDir()
	lang := config.LanguageConfig{
		StartGrammar:    filepath.Join(dir, "start.gram"),
		StartDictionary: filepath.Join(dir, "start.dic"),
	}
	require.NoError(t, os.WriteFile(lang.StartGrammar, []byte(grammar), 0o600))
	require.NoError(t, os.WriteFile(lang.StartDictionary, []byte(dictionary), 0o600))
	return lang
}

func TestCheckStartResource(t *testing.T) {
	good := writeStart(t, `["hello computer", "change model"]`, "hello HH AH L OW\ncomputer K AH M P Y UW T ER\nchange CH EY N JH\nmodel M AA D AH L\n")
	check := checkStartResource(good)
	require.True(t, check.Pass, check.Message)
	require.Equal(t, "2 phrases, 4 words", check.Message)

	uncovered := writeStart(t, `["hello computer"]`, "hello HH AH L OW\n")
	check = checkStartResource(uncovered)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "computer")

	notJSON := writeStart(t, "hello computer", "hello HH AH L OW\n")
	require.False(t, checkStartResource(notJSON).Pass)

	missing := config.LanguageConfig{StartGrammar: "/nope/start.gram", StartDictionary: "/nope/start.dic"}
	require.False(t, checkStartResource(missing).Pass)
}

func TestCheckCoordinator(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := health.NewServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	addr := listener.Addr().String()

	check := checkCoordinator(context.Background(), addr, 2*time.Second)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "serving")

	srv.Publish(context.Background(), session.Event{Kind: session.EventFaulted})
	check = checkCoordinator(context.Background(), addr, 2*time.Second)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "NOT_SERVING")
}

func TestCheckCoordinatorNotRunningPasses(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	check := checkCoordinator(context.Background(), addr, 200*time.Millisecond)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "not running")
}
