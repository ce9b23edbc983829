package realtime

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deferredCall struct {
	address   string
	eventType string
	data      string
}

type recordingDeferrer struct {
	mu    sync.Mutex
	calls []deferredCall
}

func (r *recordingDeferrer) Defer(ctx context.Context, address, eventType string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, deferredCall{address: address, eventType: eventType, data: string(data)})
}

func TestDispatcher_DeliversToLiveChannel(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(time.Hour, 4)
	sub := registry.Subscribe("bob@example.com")
	t.Cleanup(func() { registry.Unsubscribe(sub) })
	deferred := &recordingDeferrer{}
	dispatcher := NewDispatcher(registry, deferred, discardLogger())

	err := dispatcher.Notify(context.Background(), "Bob@Example.com", EventSwapRequest, map[string]string{"id": "swap-1"})
	require.NoError(t, err)

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, EventSwapRequest, msg.Event)
		assert.JSONEq(t, `{"id":"swap-1"}`, string(msg.Data))
	default:
		t.Fatal("expected queued message")
	}
	assert.Empty(t, deferred.calls)
}

func TestDispatcher_DefersUnknownAddress(t *testing.T) {
	t.Parallel()

	deferred := &recordingDeferrer{}
	dispatcher := NewDispatcher(newTestRegistry(time.Hour, 4), deferred, discardLogger())

	err := dispatcher.Notify(context.Background(), "nobody@example.com", EventSwapResponse, map[string]string{"status": "ACCEPTED"})
	require.NoError(t, err)

	require.Len(t, deferred.calls, 1)
	assert.Equal(t, "nobody@example.com", deferred.calls[0].address)
	assert.Equal(t, EventSwapResponse, deferred.calls[0].eventType)
}

func TestDispatcher_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(time.Hour, 1)
	sub := registry.Subscribe("bob@example.com")
	t.Cleanup(func() { registry.Unsubscribe(sub) })
	dispatcher := NewDispatcher(registry, nil, discardLogger())

	require.NoError(t, dispatcher.Notify(context.Background(), "bob@example.com", EventSwapRequest, 1))
	require.NoError(t, dispatcher.Notify(context.Background(), "bob@example.com", EventSwapRequest, 2))

	msg := <-sub.Messages()
	assert.Equal(t, "1", string(msg.Data))
	select {
	case extra := <-sub.Messages():
		t.Fatalf("expected second message to be dropped, got %q", extra.Data)
	default:
	}
}

func TestDispatcher_EncodingFailure(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(newTestRegistry(time.Hour, 1), &recordingDeferrer{}, discardLogger())
	err := dispatcher.Notify(context.Background(), "bob@example.com", EventSwapRequest, make(chan int))
	assert.Error(t, err)
}

func TestWriteEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteEvent(&buf, Message{Event: EventSwapResponse, Data: []byte(`{"status":"REJECTED"}`)}))
	assert.Equal(t, "event: swapResponse\ndata: {\"status\":\"REJECTED\"}\n\n", buf.String())
}
