package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startServer serves srv on a fresh socket. The returned stop is idempotent and also runs at cleanup.
func startServer(t *testing.T, srv *Server) (string, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jarvis.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			require.NoError(t, <-done)
		})
	}
	t.Cleanup(stop)
	return path, stop
}

// replyOnce accepts one connection, consumes its request line, and hands the conn to reply.
func replyOnce(t *testing.T, reply func(net.Conn)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jarvis.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		reply(conn)
	}()
	return path
}

// rawExchange writes payload directly and decodes the single response line.
func rawExchange(t *testing.T, path string, payload []byte) Response {
	t.Helper()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	if len(payload) > 0 {
		_, err = conn.Write(payload)
		require.NoError(t, err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func TestSendCarriesArgsAndResponseFields(t *testing.T) {
	got := make(chan Request, 1)
	path, _ := startServer(t, &Server{Handler: HandlerFunc(func(_ context.Context, req Request) Response {
		got <- req
		return Response{OK: true, State: "speaking", Message: "speaking", Resource: "start", UsingStart: true, Peak: 0.5, Items: []string{"kal"}}
	})})

	resp, err := Send(context.Background(), path, Request{Command: "say", Args: []string{"hello there", "slt"}}, time.Second)
	require.NoError(t, err)
	require.Equal(t, Request{Command: "say", Args: []string{"hello there", "slt"}}, <-got)
	require.Equal(t, Response{OK: true, State: "speaking", Message: "speaking", Resource: "start", UsingStart: true, Peak: 0.5, Items: []string{"kal"}}, resp)
}

func TestSendFailures(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
		notRun  bool
	}{
		{
			name:    "missing socket",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.sock") },
			wantErr: "not running",
			notRun:  true,
		},
		{
			name: "garbage reply",
			path: func(t *testing.T) string {
				return replyOnce(t, func(c net.Conn) { _, _ = c.Write([]byte("not-json\n")) })
			},
			wantErr: "decode response",
		},
		{
			name:    "hangup before reply",
			path:    func(t *testing.T) string { return replyOnce(t, func(net.Conn) {}) },
			wantErr: "read response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Send(context.Background(), tc.path(t), Request{Command: "status"}, 200*time.Millisecond)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
			require.Equal(t, tc.notRun, errors.Is(err, ErrNotRunning))
		})
	}
}

func TestServerRejectsMalformedRequests(t *testing.T) {
	path, _ := startServer(t, &Server{
		ReadTimeout: 50 * time.Millisecond,
		Handler: HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == "boom" {
				panic("kaboom")
			}
			return Response{OK: true}
		}),
	})

	tests := []struct {
		name    string
		payload []byte
		wantErr string
	}{
		{name: "not json", payload: []byte("not-json\n"), wantErr: "decode request"},
		{name: "empty command", payload: []byte("{}\n"), wantErr: "command is empty"},
		{name: "handler panic", payload: []byte(`{"command":"boom"}` + "\n"), wantErr: `internal error handling "boom"`},
		{name: "silent client", wantErr: "read request"},
		{name: "oversized line", payload: bytes.Repeat([]byte("a"), maxRequestBytes), wantErr: "read request"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := rawExchange(t, path, tc.payload)
			require.False(t, resp.OK)
			require.Contains(t, resp.Error, tc.wantErr)
		})
	}

	resp, err := Send(context.Background(), path, Request{Command: "status"}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
}

func TestProbeFollowsServerLifetime(t *testing.T) {
	path, stop := startServer(t, &Server{Handler: HandlerFunc(func(_ context.Context, req Request) Response {
		return Response{OK: req.Command == "status", State: "idle"}
	})})

	alive, err := Probe(context.Background(), path, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	stop()

	alive, err = Probe(context.Background(), path, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}
