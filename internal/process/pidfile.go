package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type pidMeta struct {
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	StartUnix int64     `json:"start_unix,omitempty"`
}

// WritePIDFile records h as "<pid>\n<meta json>\n".
func WritePIDFile(path string, h *Handle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	meta, err := json.Marshal(pidMeta{RunID: h.RunID, StartedAt: h.StartedAt, StartUnix: h.StartUnix})
	if err != nil {
		return err
	}
	data := strconv.Itoa(h.PID) + "\n" + string(meta) + "\n"
	return os.WriteFile(path, []byte(data), 0o600)
}

// ReadPIDFile returns an adopted handle for the PID file at path.
// Files holding only a PID are accepted; their start time is unknown.
func ReadPIDFile(path string) (*Handle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pidLine, rest, _ := strings.Cut(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return nil, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid in %s: %d", path, pid)
	}
	h := NewHandle(pid, time.Time{})
	if rest = strings.TrimSpace(rest); rest != "" {
		var m pidMeta
		if err := json.Unmarshal([]byte(rest), &m); err == nil {
			h.RunID = m.RunID
			h.StartedAt = m.StartedAt
			h.StartUnix = m.StartUnix
		}
	}
	return h, nil
}

// RemovePIDFile deletes path, ignoring a missing file.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
