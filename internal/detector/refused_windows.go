//go:build windows

package detector

import (
	"errors"
	"time"

	"golang.org/x/sys/windows"
)

// DefaultProbeTimeout bounds one TCP connect attempt. Windows retries a SYN
// answered by RST for about two seconds before reporting the refusal.
const DefaultProbeTimeout = 2500 * time.Millisecond

func isRefused(err error) bool {
	return errors.Is(err, windows.WSAECONNREFUSED)
}
