// Package logtail reads the tail of the gateway log files.
package logtail

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
)

// DefaultLines is the tail length when the caller does not ask for one.
const DefaultLines = 100

// Placeholder is returned when the log file does not exist yet.
const Placeholder = "No logs available yet. Start the gateway to see logs."

const chunkSize = 64 << 10

// Tail returns at most maxLines of the most recent lines of path, joined
// with "\n". It never fails: a missing file yields Placeholder and other
// read errors yield a readable message.
func Tail(path string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Placeholder
		}
		return "Unable to read logs: " + err.Error()
	}
	defer func() { _ = f.Close() }()

	lines, err := tailLines(f, maxLines)
	if err != nil {
		return "Unable to read logs: " + err.Error()
	}
	return strings.Join(lines, "\n")
}

// tailLines reads r backwards in chunks until it has maxLines complete lines
// or reaches the start.
func tailLines(r io.ReadSeeker, maxLines int) ([]string, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	var (
		buf []byte
		pos = end
	)
	for pos > 0 {
		n := int64(chunkSize)
		if pos < n {
			n = pos
		}
		pos -= n
		chunk := make([]byte, n)
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, err
		}
		buf = append(chunk, buf...)
		// one extra separator guarantees the first kept line is complete
		if bytes.Count(buf, []byte{'\n'}) > maxLines {
			break
		}
	}
	return lastLines(string(buf), maxLines, pos == 0), nil
}

// lastLines splits s into lines the way a line reader would (no empty line
// after a trailing newline, CRLF tolerated) and keeps the last n. When s does
// not start at the beginning of the file its first line is partial and dropped.
func lastLines(s string, n int, fromStart bool) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if !fromStart && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Clear truncates the log at path. A missing file is left missing.
func Clear(path string) error {
	err := os.Truncate(path, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
