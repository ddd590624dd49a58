package dashboard

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Navigator shows a URL to the user.
type Navigator interface {
	Open(ctx context.Context, url string) error
}

// BrowserNavigator opens URLs in the default browser.
type BrowserNavigator struct{}

// The opener outlives ctx; it is only reaped in the background.
func (BrowserNavigator) Open(_ context.Context, url string) error {
	name, args := openCommand(runtime.GOOS, url)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		return "open", []string{url}
	default:
		return "xdg-open", []string{url}
	}
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }
