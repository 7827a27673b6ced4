// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// net/http keep-alive connections from the default client.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

func quietServer(ready ReadinessChecker) *Server {
	return NewServer("127.0.0.1:0", ready, WithLogger(slog.New(slog.DiscardHandler)))
}

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := quietServer(ready)
	_, err := server.Start()
	require.NoError(t, err, "failed to start server")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
		http.DefaultClient.CloseIdleConnections()
	})
	require.NotEmpty(t, server.Addr(), "server address is empty")
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err, "GET %s", path)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
}

func TestServer_MetricsIncrement(t *testing.T) {
	server := startServer(t, func() bool { return true })

	m := server.Metrics()
	m.RecordRegistration("success")
	m.RecordRegistration("success")
	m.RecordLoginInitiation("not_found")
	m.RecordLoginVerification("mismatch")
	m.RecordTokenIssued()
	m.ObserveHTTPRequest(http.MethodPost, "/api/users/register", http.StatusCreated, 20*time.Millisecond)

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, `otpgate_registrations_total{outcome="success"} 2`)
	assert.Contains(t, body, `otpgate_login_initiations_total{outcome="not_found"} 1`)
	assert.Contains(t, body, `otpgate_login_verifications_total{outcome="mismatch"} 1`)
	assert.Contains(t, body, "otpgate_tokens_issued_total 1")
	assert.Contains(t, body, `otpgate_http_requests_total{method="POST",route="/api/users/register",status="201"} 1`)
	assert.Contains(t, body, "otpgate_http_request_duration_seconds_bucket")
}

func TestServer_LivenessReturns200(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{name: "ready", ready: func() bool { return true }, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "not ready", ready: func() bool { return false }, wantStatus: http.StatusServiceUnavailable, wantBody: "not ready"},
		{name: "nil checker", ready: nil, wantStatus: http.StatusOK, wantBody: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)

			status, body := get(t, server, "/healthz/readiness")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StartFailsOnBadAddress(t *testing.T) {
	server := NewServer("256.0.0.1:bad", nil, WithLogger(slog.New(slog.DiscardHandler)))

	_, err := server.Start()
	require.Error(t, err)

	// A failed start leaves the server restartable.
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_StopIdempotent(t *testing.T) {
	server := quietServer(nil)

	assert.NoError(t, server.Stop(context.Background()))
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := quietServer(nil)

	errCh, err := server.Start()
	require.NoError(t, err)

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error on error channel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	server := quietServer(nil)

	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
