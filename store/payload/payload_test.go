package payload_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/pandodao/anchor-store/core"
	"github.com/pandodao/anchor-store/service/kvstore"
	"github.com/pandodao/anchor-store/service/kvstore/kvstoretest"
	"github.com/pandodao/anchor-store/store/payload"
	"github.com/pandodao/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, cfg payload.Config) (core.PayloadStore, *kvstoretest.Server) {
	t.Helper()

	srv := kvstoretest.New(t, kvstoretest.DefaultAPIKey)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kv, err := kvstore.New(kvstore.Config{APIKey: kvstoretest.DefaultAPIKey, Endpoint: srv.URL}, logger)
	require.NoError(t, err)

	return payload.New(kv, logger, cfg), srv
}

func makePayloads(n int) []*core.Payload {
	payloads := make([]*core.Payload, 0, n)
	for i := 0; i < n; i++ {
		payloads = append(payloads, &core.Payload{
			ID:   fmt.Sprintf("anchor-%02d", i),
			Blob: []byte{byte(i), 0xff, 0x00, byte(i * 7)},
		})
	}

	return payloads
}

func blobsOf(payloads []*core.Payload) [][]byte {
	return generic.MapSlice(payloads, func(p *core.Payload) []byte { return p.Blob })
}

func TestStore_PersistRestore(t *testing.T) {
	strategies := []payload.Config{
		{Strategy: payload.StrategySequential},
		{Strategy: payload.StrategyConcurrent, Concurrency: 3},
	}

	for _, cfg := range strategies {
		t.Run(cfg.Strategy.String(), func(t *testing.T) {
			tests := []struct {
				name     string
				payloads []*core.Payload
			}{
				{"single", makePayloads(1)},
				{"many", makePayloads(17)},
				{"empty blob", []*core.Payload{{ID: "empty", Blob: []byte{}}}},
				{"text blob", []*core.Payload{{ID: "text", Blob: []byte("wayspot anchor payload")}}},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					store, _ := newStore(t, cfg)
					ctx := context.Background()

					require.NoError(t, store.Clear(ctx))
					require.NoError(t, store.Persist(ctx, tt.payloads))

					blobs, err := store.Restore(ctx)
					require.NoError(t, err)
					assert.ElementsMatch(t, blobsOf(tt.payloads), blobs)
				})
			}
		})
	}
}

func TestStore_EmptyRestore(t *testing.T) {
	store, _ := newStore(t, payload.Config{})
	ctx := context.Background()

	require.NoError(t, store.Persist(ctx, makePayloads(3)))
	require.NoError(t, store.Clear(ctx))

	blobs, err := store.Restore(ctx)
	require.NoError(t, err)
	assert.NotNil(t, blobs)
	assert.Empty(t, blobs)
}

func TestStore_PersistNothing(t *testing.T) {
	store, srv := newStore(t, payload.Config{})

	require.NoError(t, store.Persist(context.Background(), nil))
	assert.False(t, srv.HasCollection(kvstore.DefaultCollection))
}

func TestStore_PartialFailure(t *testing.T) {
	store, srv := newStore(t, payload.Config{Strategy: payload.StrategySequential})
	ctx := context.Background()

	payloads := makePayloads(5)
	const k = 2
	srv.FailSet(kvstore.DefaultCollection, payloads[k].ID, http.StatusInternalServerError)

	err := store.Persist(ctx, payloads)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProtocol)
	assert.Contains(t, err.Error(), payloads[k].ID)

	stored := srv.Values(kvstore.DefaultCollection)
	for i, p := range payloads {
		_, ok := stored[p.ID]
		assert.Equal(t, i < k, ok, "payload %s", p.ID)
	}
}

func TestStore_ConcurrentFailure(t *testing.T) {
	store, srv := newStore(t, payload.Config{Strategy: payload.StrategyConcurrent, Concurrency: 2})

	payloads := makePayloads(6)
	srv.FailSet(kvstore.DefaultCollection, payloads[3].ID, http.StatusServiceUnavailable)

	err := store.Persist(context.Background(), payloads)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProtocol)
	assert.NotContains(t, srv.Values(kvstore.DefaultCollection), payloads[3].ID)
}

func TestStore_ConcurrentDuplicateIDs(t *testing.T) {
	store, srv := newStore(t, payload.Config{Strategy: payload.StrategyConcurrent, Concurrency: 4})

	payloads := []*core.Payload{
		{ID: "a", Blob: []byte("1")},
		{ID: "b", Blob: []byte("2")},
		{ID: "a", Blob: []byte("3")},
	}

	require.NoError(t, store.Persist(context.Background(), payloads))
	assert.Equal(t, map[string]string{
		"a": payload.EncodeBlob([]byte("3")),
		"b": payload.EncodeBlob([]byte("2")),
	}, srv.Values(kvstore.DefaultCollection))
}

func TestStore_InvalidPayload(t *testing.T) {
	store, srv := newStore(t, payload.Config{})

	tests := []struct {
		name     string
		payloads []*core.Payload
	}{
		{"empty id", []*core.Payload{{ID: "ok", Blob: []byte("x")}, {ID: "", Blob: []byte("y")}}},
		{"nil payload", []*core.Payload{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Persist(context.Background(), tt.payloads)
			assert.ErrorIs(t, err, core.ErrInvalidPayload)
		})
	}

	assert.False(t, srv.HasCollection(kvstore.DefaultCollection), "no write happens for an invalid batch")
}

func TestStore_RestoreCorrupted(t *testing.T) {
	store, srv := newStore(t, payload.Config{})
	srv.Seed(kvstore.DefaultCollection, map[string]string{"broken": "%%% not base64"})

	_, err := store.Restore(context.Background())
	assert.ErrorIs(t, err, core.ErrDeserialization)
}

func TestReplace(t *testing.T) {
	store, srv := newStore(t, payload.Config{})
	ctx := context.Background()

	srv.Seed(kvstore.DefaultCollection, map[string]string{"stale": payload.EncodeBlob([]byte("old"))})

	payloads := makePayloads(3)
	require.NoError(t, payload.Replace(ctx, store, payloads))

	blobs, err := store.Restore(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, blobsOf(payloads), blobs)
}
