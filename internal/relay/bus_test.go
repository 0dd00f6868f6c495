package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "http://127.0.0.1:8787"

func TestMessageTypes(t *testing.T) {
	assert.Equal(t, "GITHUB_AUTH_SUCCESS", SuccessType("github"))
	assert.Equal(t, "GITHUB_AUTH_ERROR", ErrorType("github"))

	msg := Message{Type: "GITHUB_AUTH_ERROR"}
	assert.True(t, msg.IsFor("github"))
	assert.False(t, msg.IsFor("google"))
	assert.True(t, msg.IsError())
	assert.False(t, Message{Type: "GITHUB_AUTH_SUCCESS"}.IsError())
}

func TestAwait_ReceivesMatchingMessage(t *testing.T) {
	bus := NewBus(origin)

	done := make(chan Message, 1)
	ready := make(chan struct{})
	go func() {
		close(ready)
		msg, err := bus.Await(context.Background(), func(m Message) bool { return m.IsFor("github") })
		require.NoError(t, err)
		done <- msg
	}()
	<-ready

	// Give the goroutine a moment to subscribe.
	require.Eventually(t, func() bool {
		return bus.HasPending(Message{Type: SuccessType("github"), Origin: origin})
	}, time.Second, 5*time.Millisecond)

	n := bus.Publish(Message{Type: SuccessType("github"), Origin: origin, Code: "auth-code"})
	assert.Equal(t, 1, n)

	select {
	case msg := <-done:
		assert.Equal(t, "auth-code", msg.Code)
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestPublish_UntrustedOriginIgnored(t *testing.T) {
	bus := NewBus(origin)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go func() {
		// A message from a different origin must never deliver.
		bus.Publish(Message{Type: SuccessType("github"), Origin: "https://evil.example", Code: "stolen"})
	}()

	_, err := bus.Await(ctx, func(m Message) bool { return m.IsFor("github") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublish_DuplicateDeliversOnce(t *testing.T) {
	bus := NewBus(origin)

	received := make(chan Message, 2)
	ready := make(chan struct{})
	go func() {
		close(ready)
		msg, err := bus.Await(context.Background(), func(m Message) bool { return m.IsFor("github") })
		require.NoError(t, err)
		received <- msg
	}()
	<-ready

	require.Eventually(t, func() bool {
		return bus.HasPending(Message{Type: SuccessType("github"), Origin: origin})
	}, time.Second, 5*time.Millisecond)

	msg := Message{Type: SuccessType("github"), Origin: origin, Code: "auth-code"}
	first := bus.Publish(msg)
	second := bus.Publish(msg)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "duplicate delivery must find no listener")

	<-received
	// Late delivery after the awaiter returned also finds nothing.
	assert.Equal(t, 0, bus.Publish(msg))
}

func TestAwait_ContextCancelDeregisters(t *testing.T) {
	bus := NewBus(origin)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := bus.Await(ctx, func(m Message) bool { return true })
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return bus.HasPending(Message{Type: "X_AUTH_SUCCESS", Origin: origin})
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	assert.False(t, bus.HasPending(Message{Type: "X_AUTH_SUCCESS", Origin: origin}))
}

func TestHasPending(t *testing.T) {
	bus := NewBus(origin)
	msg := Message{Type: SuccessType("github"), Origin: origin}

	assert.False(t, bus.HasPending(msg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_, _ = bus.Await(ctx, func(m Message) bool { return m.IsFor("github") })
	}()

	require.Eventually(t, func() bool { return bus.HasPending(msg) }, time.Second, 5*time.Millisecond)
	assert.False(t, bus.HasPending(Message{Type: SuccessType("google"), Origin: origin}))
}
