package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/winningcv/authgate/internal/log"
	"github.com/winningcv/authgate/internal/relay"
)

// awaitPopup opens the provider page in a popup and blocks until its
// callback relays a message carrying the expected state nonce, the popup is
// closed, or the context ends. Returns the message on success, or a
// terminal Result when the flow resolved without one.
func awaitPopup(ctx context.Context, nav Navigator, bus *relay.Bus, authURL, provider, state string, watchInterval time.Duration) (relay.Message, *Result) {
	popup, err := nav.OpenPopup(authURL)
	if err != nil {
		r := Failed(fmt.Errorf("failed to open %s popup: %w", provider, err))
		return relay.Message{}, &r
	}
	defer func() { _ = popup.Close() }()

	flowCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go watchPopup(flowCtx, cancel, popup, watchInterval)

	msg, err := bus.Await(flowCtx, func(m relay.Message) bool {
		if !m.IsFor(provider) {
			return false
		}
		// Error deliveries carry no state echo; success deliveries must
		// match this attempt's nonce or they belong to someone else.
		return m.IsError() || m.State == state
	})
	if err != nil {
		if cancelledCause(flowCtx) {
			log.LogDebugWithFields("flow", "Popup flow abandoned", map[string]any{
				"provider": provider,
				"cause":    context.Cause(flowCtx).Error(),
			})
			r := Cancelled()
			return relay.Message{}, &r
		}
		r := Failed(err)
		return relay.Message{}, &r
	}

	if msg.IsError() {
		// A closed window or SDK dismissal resolves silently, but an
		// error the provider posted back is a real failure.
		if msg.Error == "user_cancelled" {
			r := Cancelled()
			return relay.Message{}, &r
		}
		r := Failed(fmt.Errorf("%s provider error: %s", provider, msg.Error))
		return relay.Message{}, &r
	}

	return msg, nil
}
