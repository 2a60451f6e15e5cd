package oauth

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// browserLauncher starts the platform browser. Tests replace it.
var browserLauncher = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenBrowser opens the specified URL in the default web browser.
// Only http and https URLs are accepted.
func OpenBrowser(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid authorization URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open non-http URL scheme %q", u.Scheme)
	}

	var name string
	var args []string
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		name, args = "xdg-open", []string{rawURL}
	case "darwin":
		name, args = "open", []string{rawURL}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	// The browser opens in the background.
	if err := browserLauncher(name, args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
