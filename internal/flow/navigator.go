package flow

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/winningcv/authgate/internal/log"
)

// Popup is a handle on an opened provider window.
type Popup interface {
	// Closed reports whether the user has dismissed the window. Polled by
	// the watchdog.
	Closed() bool
	Close() error
}

// Navigator opens provider pages: popups for the popup strategies and
// whole-page navigation for the redirect fallback.
type Navigator interface {
	OpenPopup(url string) (Popup, error)
	Navigate(url string) error
}

// SystemNavigator opens URLs in the user's default browser. A system
// browser tab gives no closed signal, so Closed always reports false and
// the flow relies on the bounded wait instead.
type SystemNavigator struct{}

type systemPopup struct{}

func (systemPopup) Closed() bool { return false }
func (systemPopup) Close() error { return nil }

// OpenPopup opens the URL in a new browser window.
func (SystemNavigator) OpenPopup(url string) (Popup, error) {
	if err := openBrowser(url); err != nil {
		return nil, err
	}
	return systemPopup{}, nil
}

// Navigate opens the URL in the browser; the redirect flow resumes through
// the callback surface.
func (SystemNavigator) Navigate(url string) error {
	return openBrowser(url)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	log.LogDebugWithFields("navigator", "Opened browser", map[string]any{"url": url})
	return nil
}
