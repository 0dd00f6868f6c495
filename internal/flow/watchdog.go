package flow

import (
	"context"
	"errors"
	"time"
)

var errPopupClosed = errors.New("popup closed")

// watchPopup polls the popup until it is dismissed, then cancels the flow
// context with errPopupClosed so the waiter can tell a user dismissal from
// a timeout. Returns when the context ends.
func watchPopup(ctx context.Context, cancel context.CancelCauseFunc, popup Popup, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if popup.Closed() {
				cancel(errPopupClosed)
				return
			}
		}
	}
}

// cancelledCause reports whether the context ended for a reason that should
// resolve the flow silently: the user closed the popup, the wait timed out,
// or the caller cancelled.
func cancelledCause(ctx context.Context) bool {
	cause := context.Cause(ctx)
	return errors.Is(cause, errPopupClosed) ||
		errors.Is(cause, context.DeadlineExceeded) ||
		errors.Is(cause, context.Canceled)
}
