package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsDefaults(t *testing.T) {
	srv := New(":8080", http.NewServeMux())

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 60*time.Second, srv.IdleTimeout)
	assert.Equal(t, DefaultShutdownTimeout, srv.shutdownTimeout)
}

func TestShutdownBoundsUndeadlinedContext(t *testing.T) {
	srv := New(":0", http.NewServeMux())
	srv.shutdownTimeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- srv.Shutdown(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err, "shutdown of an unstarted server drains nothing")
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return within the window")
	}
}

func TestShutdownKeepsCallerDeadline(t *testing.T) {
	srv := New(":0", http.NewServeMux())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
