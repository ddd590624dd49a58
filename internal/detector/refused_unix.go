//go:build !windows

package detector

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultProbeTimeout bounds one TCP connect attempt.
const DefaultProbeTimeout = 500 * time.Millisecond

func isRefused(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED)
}
