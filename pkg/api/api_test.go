package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/pixelforge/pkg/config"
	"github.com/cuemby/pixelforge/pkg/events"
	"github.com/cuemby/pixelforge/pkg/manager"
	"github.com/cuemby/pixelforge/pkg/provider"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/templates"
	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/cuemby/pixelforge/pkg/worker"
	"github.com/stretchr/testify/require"
)

// newTestServer wires a Server over an in-memory-backed Storage and a
// worker Pool fed by a stub adapter, mirroring pkg/manager's own test
// harness so handler tests exercise the real Create/Finalize path
// rather than mocks.
func newTestServer(t *testing.T, factory provider.Factory) (*Server, *storage.Storage) {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := provider.NewRegistry(st)
	reg.Register("stub", factory)
	require.NoError(t, st.UpsertProviderConfig(&types.ProviderConfig{Name: "stub", Enabled: true, MaxRetries: 1}))
	require.NoError(t, reg.Reload())

	bus := events.NewBus(20 * time.Millisecond)
	mgr := manager.New(st, reg, bus)
	pool := worker.NewPool(worker.Config{Workers: 2, QueueCapacity: 4}, reg, mgr)
	mgr.SetPool(pool)
	pool.Start()
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	cfg := config.Default()
	cfg.Storage.AllowedRefRoots = []string{t.TempDir()}
	catalog := templates.New("")

	return New(cfg, mgr, st.Blobs, catalog), st
}

func stubFactory(bytes []byte) provider.Factory {
	return func(cfg types.ProviderConfig) (provider.Adapter, error) {
		return &provider.StubAdapter{AdapterName: "stub", FixedBytes: bytes, FixedMIME: "image/png"}, nil
	}
}

func waitForTerminal(t *testing.T, st *storage.Storage, taskID string) *types.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := st.GetTask(taskID)
		require.NoError(t, err)
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state in time")
	return nil
}

// decodeEnvelope unmarshals a recorded response body into the uniform
// envelope shape, with Data further decoded into out when non-nil.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if out != nil && env.Data != nil {
		raw, err := json.Marshal(env.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return env
}
