// Package testutil holds helpers for tests that run a real popsci server.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

// Logger returns a logger that discards output unless the test runs with -v.
func Logger(t testing.TB) *slog.Logger {
	t.Helper()
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}

// WaitForServer polls /api/health until the server answers "ok".
func WaitForServer(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/api/health")
		if err == nil {
			var health struct {
				Status string `json:"status"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if decodeErr == nil && health.Status == "ok" {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

// WaitForShutdown waits for a channel to receive a value or timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for shutdown")
	}
}

// StartServer runs start in a goroutine and returns a handle to stop it.
// Stop is registered as a test cleanup.
//
//	srv, _ := server.New(ctx, cfg)
//	s := testutil.StartServer(t, srv.Start)
//	defer s.Stop()
func StartServer(t testing.TB, start func(context.Context) error) *Started {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- start(ctx) }()

	s := &Started{Cancel: cancel, Done: done}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// Started is a running server goroutine.
type Started struct {
	Cancel context.CancelFunc
	Done   <-chan error

	stopped bool
	err     error
}

// Stop cancels the server context and waits up to ten seconds for it to return.
func (s *Started) Stop() error {
	if s.stopped {
		return s.err
	}
	s.stopped = true
	s.Cancel()
	s.err = WaitForShutdown(s.Done, 10*time.Second)
	return s.err
}
