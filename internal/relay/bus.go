// Package relay carries authorization results from the popup callback
// surface back to the flow that opened the popup. It is the in-process
// equivalent of window.postMessage between a popup and its opener.
package relay

import (
	"context"
	"strings"
	"sync"

	"github.com/winningcv/authgate/internal/log"
)

// Message is a cross-window auth payload. Type is the provider-tagged
// discriminator; Code, State and Error are the provider-specific fields.
type Message struct {
	Type   string
	Origin string
	Code   string
	State  string
	Error  string
}

// SuccessType returns the success discriminator for a provider,
// e.g. "GITHUB_AUTH_SUCCESS".
func SuccessType(provider string) string {
	return strings.ToUpper(provider) + "_AUTH_SUCCESS"
}

// ErrorType returns the error discriminator for a provider,
// e.g. "GITHUB_AUTH_ERROR".
func ErrorType(provider string) string {
	return strings.ToUpper(provider) + "_AUTH_ERROR"
}

// IsFor reports whether the message belongs to the given provider's flow.
func (m Message) IsFor(provider string) bool {
	return m.Type == SuccessType(provider) || m.Type == ErrorType(provider)
}

// IsError reports whether the message is an error delivery.
func (m Message) IsError() bool {
	return strings.HasSuffix(m.Type, "_AUTH_ERROR")
}

type subscriber struct {
	pred      func(Message) bool
	ch        chan Message
	delivered bool
}

// Bus fans messages out to one-shot subscribers. Messages from an origin
// other than the trusted one are dropped before any subscriber sees them.
type Bus struct {
	trustedOrigin string

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

// NewBus creates a bus trusting exactly one origin.
func NewBus(trustedOrigin string) *Bus {
	return &Bus{
		trustedOrigin: trustedOrigin,
		subs:          make(map[int]*subscriber),
	}
}

// Publish delivers the message to every matching subscriber that has not
// already received one. Returns how many subscribers accepted it; zero for
// foreign-origin, duplicate, or unawaited messages.
func (b *Bus) Publish(msg Message) int {
	if msg.Origin != b.trustedOrigin {
		log.LogWarnWithFields("relay", "Dropping message from untrusted origin", map[string]any{
			"origin": msg.Origin,
			"type":   msg.Type,
		})
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, sub := range b.subs {
		if sub.delivered || !sub.pred(msg) {
			continue
		}
		select {
		case sub.ch <- msg:
			sub.delivered = true
			delivered++
		default:
			// Subscriber is gone mid-unsubscribe; treat as undelivered.
		}
	}

	if delivered == 0 {
		log.LogDebugWithFields("relay", "Message had no pending listener", map[string]any{
			"type": msg.Type,
		})
	}
	return delivered
}

// HasPending reports whether any live subscriber would accept the message.
// The popup callback uses this to detect a direct hit with no opener flow.
func (b *Bus) HasPending(msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.delivered && sub.pred(msg) {
			return true
		}
	}
	return false
}

// Await blocks until a message matching pred arrives or ctx ends. The
// subscription is one-shot and always deregistered on return, so duplicate
// or late deliveries find no listener.
func (b *Bus) Await(ctx context.Context, pred func(Message) bool) (Message, error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{pred: pred, ch: make(chan Message, 1)}
	b.subs[id] = sub
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()

	select {
	case msg := <-sub.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
