package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Record is the per-worker state persisted in a pid file. The first line is
// the pid; the second line is JSON metadata. StartUnix is the process start
// time used to detect pid reuse, LogPath the log file of that run.
type Record struct {
	PID       int       `json:"-"`
	StartUnix int64     `json:"start_unix,omitempty"`
	LogPath   string    `json:"log_path,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// ReadRecord parses a pid file. Files holding only a pid line are accepted;
// their metadata fields stay zero.
func ReadRecord(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	pidLine, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return Record{}, err
	}
	rec := Record{PID: pid}
	if rest = strings.TrimSpace(rest); rest != "" {
		// Metadata is best-effort: a pid with unparseable meta is still a pid.
		_ = json.Unmarshal([]byte(rest), &rec)
	}
	return rec, nil
}

// WriteRecord persists rec at path, creating the parent directory if needed.
func WriteRecord(path string, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	meta, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data := strconv.Itoa(rec.PID) + "\n" + string(meta) + "\n"
	return os.WriteFile(path, []byte(data), 0o600)
}
